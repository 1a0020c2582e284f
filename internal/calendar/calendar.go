// Package calendar groups tasks into the days of a visible month.
package calendar

import (
	"time"

	"sapaboard/internal/analytics"
	"sapaboard/internal/domain"
)

// Day is one cell of the month grid.
type Day struct {
	Date    time.Time     `json:"-"`
	Key     string        `json:"date" format:"date"`
	Number  int           `json:"day"`
	IsToday bool          `json:"is_today"`
	IsPast  bool          `json:"is_past"`
	Tasks   []domain.Task `json:"tasks"`
}

type Month struct {
	Year               int                          `json:"year"`
	Month              time.Month                   `json:"month"`
	DaysInMonth        int                          `json:"days_in_month"`
	FirstWeekdayOffset int                          `json:"first_weekday_offset"`
	WeekStart          time.Weekday                 `json:"week_start"`
	TasksByDay         map[string][]domain.Task     `json:"tasks_by_day"`
	Days               []Day                        `json:"days"`
	DataQuality        []analytics.DataQualityError `json:"data_quality,omitempty"`
}

// Build buckets tasks by start_date for the given month. Days without tasks
// are absent from TasksByDay and carry an empty, non-nil Tasks slice in Days.
// today is compared at day granularity in its own location, which is also the
// location for the grid.
func Build(tasks []domain.Task, year int, month time.Month, today time.Time, weekStart time.Weekday) Month {
	loc := today.Location()
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	// normalise out-of-range month numbers
	year, month = first.Year(), first.Month()

	m := Month{
		Year:               year,
		Month:              month,
		DaysInMonth:        DaysIn(year, month),
		FirstWeekdayOffset: (int(first.Weekday()) - int(weekStart) + 7) % 7,
		WeekStart:          weekStart,
		TasksByDay:         map[string][]domain.Task{},
	}

	for _, t := range tasks {
		start, err := domain.ParseTimestamp(t.StartDate, loc)
		if err != nil {
			m.DataQuality = append(m.DataQuality, analytics.DataQualityError{TaskID: t.ID, Field: "start_date", Value: t.StartDate, Err: err})
			continue
		}
		start = start.In(loc)
		if start.Year() != year || start.Month() != month {
			continue
		}
		key := start.Format(domain.DateLayout)
		m.TasksByDay[key] = append(m.TasksByDay[key], t)
	}

	todayDay := domain.Day(today)
	m.Days = make([]Day, 0, m.DaysInMonth)
	for d := 1; d <= m.DaysInMonth; d++ {
		date := time.Date(year, month, d, 0, 0, 0, 0, loc)
		key := date.Format(domain.DateLayout)
		tasks := m.TasksByDay[key]
		if tasks == nil {
			tasks = []domain.Task{}
		}
		m.Days = append(m.Days, Day{
			Date:    date,
			Key:     key,
			Number:  d,
			IsToday: date.Equal(todayDay),
			IsPast:  date.Before(todayDay),
			Tasks:   tasks,
		})
	}
	return m
}

// DaysIn returns the number of days in the month, accounting for leap years.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Weeks lays the days out in 7-column rows. Padding cells are nil.
func (m Month) Weeks() [][]*Day {
	var weeks [][]*Day
	week := make([]*Day, m.FirstWeekdayOffset, 7)
	for i := range m.Days {
		week = append(week, &m.Days[i])
		if len(week) == 7 {
			weeks = append(weeks, week)
			week = make([]*Day, 0, 7)
		}
	}
	if len(week) > 0 {
		for len(week) < 7 {
			week = append(week, nil)
		}
		weeks = append(weeks, week)
	}
	return weeks
}

// WeekdayHeaders returns abbreviated weekday names starting at WeekStart.
func (m Month) WeekdayHeaders() []string {
	out := make([]string, 7)
	for i := range out {
		out[i] = time.Weekday((int(m.WeekStart) + i) % 7).String()[:3]
	}
	return out
}

// Navigate moves delta months from year/month.
func Navigate(year int, month time.Month, delta int) (int, time.Month) {
	t := time.Date(year, month+time.Month(delta), 1, 0, 0, 0, 0, time.UTC)
	return t.Year(), t.Month()
}

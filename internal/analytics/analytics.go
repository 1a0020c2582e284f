// Package analytics derives dashboard statistics from a list of tasks.
package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"sapaboard/internal/domain"
)

// DefaultUrgentWithinDays is the due-date window that marks an open task urgent.
const DefaultUrgentWithinDays = 3

const monthKeyLayout = "2006-01"

// DataQualityError reports a record whose date could not be parsed.
type DataQualityError struct {
	TaskID string `json:"task_id"`
	Field  string `json:"field"`
	Value  string `json:"value"`
	Err    error  `json:"-"`
}

func (e DataQualityError) Error() string {
	return fmt.Sprintf("task %s: unparseable %s %q", e.TaskID, e.Field, e.Value)
}

func (e DataQualityError) Unwrap() error { return e.Err }

type MonthBucket struct {
	Total            int            `json:"total"`
	DepartmentCounts map[string]int `json:"department_counts"`
}

type TopDepartment struct {
	Month      string `json:"month"`
	Department string `json:"department"`
	Count      int    `json:"count"`
}

// Snapshot is the result of one aggregation pass.
type Snapshot struct {
	TotalTasks           int                    `json:"total_tasks"`
	StatusCounts         map[string]int         `json:"status_counts"`
	DepartmentCounts     map[string]int         `json:"department_counts"`
	UrgentCount          int                    `json:"urgent_count"`
	OverdueCount         int                    `json:"overdue_count"`
	Monthly              map[string]MonthBucket `json:"monthly"`
	SortedMonthKeys      []string               `json:"sorted_month_keys"`
	TopDepartmentByMonth []TopDepartment        `json:"top_department_by_month"`
	CompletionRate       int                    `json:"completion_rate"`
	DataQuality          []DataQualityError     `json:"data_quality,omitempty"`
}

// Completed returns the number of completed tasks.
func (s Snapshot) Completed() int {
	return s.StatusCounts[string(domain.StatusCompleted)]
}

// TopDepartment returns the leading department for month, if the month is known.
func (s Snapshot) TopDepartment(month string) (TopDepartment, bool) {
	for _, td := range s.TopDepartmentByMonth {
		if td.Month == month {
			return td, true
		}
	}
	return TopDepartment{}, false
}

type Options struct {
	UrgentWithinDays int
}

// Aggregate computes a Snapshot with default options.
func Aggregate(tasks []domain.Task, now time.Time) Snapshot {
	return AggregateWith(tasks, now, Options{})
}

// AggregateWith computes a Snapshot. now is used for the urgent and overdue
// checks and as the location for date-only values and month keys.
func AggregateWith(tasks []domain.Task, now time.Time, opts Options) Snapshot {
	window := opts.UrgentWithinDays
	if window <= 0 {
		window = DefaultUrgentWithinDays
	}
	loc := now.Location()
	snap := Snapshot{
		TotalTasks:           len(tasks),
		StatusCounts:         map[string]int{},
		DepartmentCounts:     map[string]int{},
		Monthly:              map[string]MonthBucket{},
		SortedMonthKeys:      []string{},
		TopDepartmentByMonth: []TopDepartment{},
	}
	// first-seen department order per month, for tie-breaking
	seen := map[string][]string{}

	for _, t := range tasks {
		snap.StatusCounts[t.Status]++
		snap.DepartmentCounts[t.AssignedDepartment]++

		due, err := domain.ParseTimestamp(t.DueDate, loc)
		if err != nil {
			snap.DataQuality = append(snap.DataQuality, DataQualityError{TaskID: t.ID, Field: "due_date", Value: t.DueDate, Err: err})
			continue
		}
		created, err := domain.ParseTimestamp(t.CreatedAt, loc)
		if err != nil {
			snap.DataQuality = append(snap.DataQuality, DataQualityError{TaskID: t.ID, Field: "created_at", Value: t.CreatedAt, Err: err})
			continue
		}

		if !t.Completed() {
			if DaysUntil(now, due) <= window {
				snap.UrgentCount++
			}
			if due.Before(now) {
				snap.OverdueCount++
			}
		}

		key := created.In(loc).Format(monthKeyLayout)
		bucket, ok := snap.Monthly[key]
		if !ok {
			bucket = MonthBucket{DepartmentCounts: map[string]int{}}
		}
		bucket.Total++
		if bucket.DepartmentCounts[t.AssignedDepartment] == 0 {
			seen[key] = append(seen[key], t.AssignedDepartment)
		}
		bucket.DepartmentCounts[t.AssignedDepartment]++
		snap.Monthly[key] = bucket
	}

	for key := range snap.Monthly {
		snap.SortedMonthKeys = append(snap.SortedMonthKeys, key)
	}
	sort.Strings(snap.SortedMonthKeys)

	for _, key := range snap.SortedMonthKeys {
		top := TopDepartment{Month: key}
		counts := snap.Monthly[key].DepartmentCounts
		for _, dept := range seen[key] {
			if counts[dept] > top.Count {
				top.Department = dept
				top.Count = counts[dept]
			}
		}
		snap.TopDepartmentByMonth = append(snap.TopDepartmentByMonth, top)
	}

	snap.CompletionRate = completionRate(snap.Completed(), snap.TotalTasks)
	return snap
}

// DaysUntil is ceil((due - now) / 24h). Negative for past due dates.
func DaysUntil(now, due time.Time) int {
	return int(math.Ceil(float64(due.Sub(now)) / float64(24*time.Hour)))
}

// completionRate rounds half up: 12.5 -> 13.
func completionRate(completed, total int) int {
	if total == 0 {
		return 0
	}
	return (200*completed + total) / (2 * total)
}

// MonthLabel renders a YYYY-MM key as "January 2024".
func MonthLabel(key string) string {
	t, err := time.Parse(monthKeyLayout, key)
	if err != nil {
		return key
	}
	return t.Format("January 2006")
}

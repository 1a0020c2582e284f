// Package tasktable implements the filtering and row flags of the task list view.
package tasktable

import (
	"strings"
	"time"

	"sapaboard/internal/analytics"
	"sapaboard/internal/domain"
)

type Filter struct {
	Search     string
	Status     string
	Department string
}

// Apply keeps the tasks matching every set criterion, preserving order.
// Search is a case-insensitive substring match on the title.
func Apply(tasks []domain.Task, f Filter) []domain.Task {
	needle := strings.ToLower(f.Search)
	out := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		if !strings.Contains(strings.ToLower(t.Title), needle) {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.Department != "" && t.AssignedDepartment != f.Department {
			continue
		}
		out = append(out, t)
	}
	return out
}

type Row struct {
	domain.Task
	Urgent bool `json:"urgent"`
}

// Rows flags each task for display. window is the urgent due-date window in
// days; zero or less means analytics.DefaultUrgentWithinDays.
func Rows(tasks []domain.Task, now time.Time, window int) []Row {
	rows := make([]Row, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, Row{Task: t, Urgent: IsUrgent(t, now, window)})
	}
	return rows
}

// IsUrgent is the list view's highlight rule: open, due within window days,
// and created more than a day ago. Unparseable dates never highlight.
func IsUrgent(t domain.Task, now time.Time, window int) bool {
	if t.Completed() {
		return false
	}
	due, err := domain.ParseTimestamp(t.DueDate, now.Location())
	if err != nil {
		return false
	}
	created, err := domain.ParseTimestamp(t.CreatedAt, now.Location())
	if err != nil {
		return false
	}
	if window <= 0 {
		window = analytics.DefaultUrgentWithinDays
	}
	return analytics.DaysUntil(now, due) <= window && analytics.DaysUntil(created, now) > 1
}

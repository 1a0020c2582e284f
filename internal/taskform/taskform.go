// Package taskform validates task create and edit payloads.
package taskform

import (
	"sort"
	"strings"

	"sapaboard/internal/domain"
)

// Field names as used in payloads and error maps.
const (
	FieldTitle              = "title"
	FieldAssignedDepartment = "assigned_department"
	FieldSignupDate         = "signup_date"
	FieldStartDate          = "start_date"
	FieldDueDate            = "due_date"
	FieldStatus             = "status"
)

var messages = map[string]string{
	FieldTitle:              "กรุณากรอกชื่องาน",
	FieldAssignedDepartment: "กรุณาเลือกฝ่าย",
	FieldSignupDate:         "กรุณาเลือกวันที่รับสมัคร",
	FieldStartDate:          "กรุณาเลือกวันที่เริ่มงาน",
	FieldDueDate:            "กรุณาเลือกวันที่สิ้นสุด",
	FieldStatus:             "กรุณาเลือกสถานะ",
}

// Draft is an unvalidated task payload as submitted by a form or API client.
type Draft struct {
	Title              string `json:"title"`
	AssignedDepartment string `json:"assigned_department"`
	SignupDate         string `json:"signup_date"`
	StartDate          string `json:"start_date"`
	DueDate            string `json:"due_date"`
	Status             string `json:"status"`
}

// Defaults returns the blank create form.
func Defaults() Draft {
	return Draft{Status: string(domain.StatusNotStarted)}
}

// FromTask pre-fills an edit form.
func FromTask(t domain.Task) Draft {
	return Draft{
		Title:              t.Title,
		AssignedDepartment: t.AssignedDepartment,
		SignupDate:         t.SignupDate,
		StartDate:          t.StartDate,
		DueDate:            t.DueDate,
		Status:             t.Status,
	}
}

// ValidationErrors maps a field name to a human-readable message.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	fields := v.Fields()
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+v[f])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Fields returns the failing field names in sorted order.
func (v ValidationErrors) Fields() []string {
	out := make([]string, 0, len(v))
	for f := range v {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Validate checks d and returns the accepted input or ValidationErrors.
// Dates are only required to be non-empty and are not checked against each other.
func Validate(d Draft) (domain.TaskInput, error) {
	errs := ValidationErrors{}
	var in domain.TaskInput

	in.Title = strings.TrimSpace(d.Title)
	if in.Title == "" {
		errs[FieldTitle] = messages[FieldTitle]
	}
	dept, err := domain.ParseDepartment(d.AssignedDepartment)
	if err != nil {
		errs[FieldAssignedDepartment] = messages[FieldAssignedDepartment]
	}
	in.AssignedDepartment = dept

	for field, value := range map[string]*string{
		FieldSignupDate: &d.SignupDate,
		FieldStartDate:  &d.StartDate,
		FieldDueDate:    &d.DueDate,
	} {
		if *value == "" {
			errs[field] = messages[field]
		}
	}
	in.SignupDate = d.SignupDate
	in.StartDate = d.StartDate
	in.DueDate = d.DueDate

	status, err := domain.ParseStatus(d.Status)
	if err != nil {
		errs[FieldStatus] = messages[FieldStatus]
	}
	in.Status = status

	if len(errs) > 0 {
		return domain.TaskInput{}, errs
	}
	return in, nil
}

package domain

import (
	"fmt"
	"time"
)

// DateLayout is the storage format for the three milestone dates.
const DateLayout = "2006-01-02"

// Department is the council unit a task is assigned to. Values are stored in Thai.
type Department string

const (
	DepartmentAcademic       Department = "วิชาการ"
	DepartmentBudget         Department = "งบประมาณ"
	DepartmentStudentAffairs Department = "กิจการนักเรียน"
	DepartmentGeneral        Department = "ทั่วไป"
	DepartmentPersonnel      Department = "บุคคล"
	DepartmentCouncilOffice  Department = "สำนักประธานสภานักเรียน"
)

var departments = []Department{
	DepartmentAcademic,
	DepartmentBudget,
	DepartmentStudentAffairs,
	DepartmentGeneral,
	DepartmentPersonnel,
	DepartmentCouncilOffice,
}

// Departments lists every department in form order.
func Departments() []Department {
	return append([]Department(nil), departments...)
}

// ParseDepartment returns the department named by s.
func ParseDepartment(s string) (Department, error) {
	for _, d := range departments {
		if string(d) == s {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown department %q", s)
}

// Status is the progress state of a task.
type Status string

const (
	StatusNotStarted Status = "ยังไม่ดำเนินงาน"
	StatusInProgress Status = "กำลังดำเนิน"
	StatusCompleted  Status = "เสร็จสิ้น"
)

var statuses = []Status{StatusNotStarted, StatusInProgress, StatusCompleted}

// Statuses lists every status in form order.
func Statuses() []Status {
	return append([]Status(nil), statuses...)
}

// ParseStatus returns the status named by s.
func ParseStatus(s string) (Status, error) {
	for _, st := range statuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Task is a stored task record. Enum and date fields are kept as read from the
// store so records written by other tools can still be inspected.
type Task struct {
	ID                 string `json:"id"`
	CreatedAt          string `json:"created_at" format:"date-time"`
	Title              string `json:"title"`
	AssignedDepartment string `json:"assigned_department"`
	SignupDate         string `json:"signup_date" format:"date"`
	StartDate          string `json:"start_date" format:"date"`
	DueDate            string `json:"due_date" format:"date"`
	Status             string `json:"status"`
}

// Completed reports whether the task is in the completed status.
func (t Task) Completed() bool {
	return t.Status == string(StatusCompleted)
}

// TaskInput is a validated create/edit payload.
type TaskInput struct {
	Title              string
	AssignedDepartment Department
	SignupDate         string
	StartDate          string
	DueDate            string
	Status             Status
}

// Apply copies the editable fields onto t, leaving id and created_at alone.
func (in TaskInput) Apply(t Task) Task {
	t.Title = in.Title
	t.AssignedDepartment = string(in.AssignedDepartment)
	t.SignupDate = in.SignupDate
	t.StartDate = in.StartDate
	t.DueDate = in.DueDate
	t.Status = string(in.Status)
	return t
}

type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	CreatedAt    string `json:"created_at" format:"date-time"`
}

// ParseTimestamp accepts RFC3339 timestamps and bare dates.
// Bare dates are interpreted as midnight in loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04:05", s, loc); err == nil {
		return t, nil
	}
	return time.ParseInLocation(DateLayout, s, loc)
}

// Day truncates t to midnight in its own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

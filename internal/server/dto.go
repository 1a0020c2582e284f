package server

import (
	"time"

	"sapaboard/internal/domain"
	"sapaboard/internal/taskform"
	"sapaboard/internal/tasktable"
)

// Request payloads

type LoginRequest struct {
	Email    string `json:"email,omitempty" example:"head@school.ac.th"`
	Password string `json:"password,omitempty"`
}

// TaskRequest is the create/edit form. Fields are optional at the schema level
// so missing values come back as field messages instead of schema errors.
type TaskRequest struct {
	Title              string `json:"title,omitempty" example:"กีฬาสี"`
	AssignedDepartment string `json:"assigned_department,omitempty" example:"กิจการนักเรียน"`
	SignupDate         string `json:"signup_date,omitempty" example:"2024-03-01"`
	StartDate          string `json:"start_date,omitempty" example:"2024-03-05"`
	DueDate            string `json:"due_date,omitempty" example:"2024-03-12"`
	Status             string `json:"status,omitempty" example:"ยังไม่ดำเนินงาน"`
}

func (r TaskRequest) draft() taskform.Draft {
	return taskform.Draft{
		Title:              r.Title,
		AssignedDepartment: r.AssignedDepartment,
		SignupDate:         r.SignupDate,
		StartDate:          r.StartDate,
		DueDate:            r.DueDate,
		Status:             r.Status,
	}
}

// Response payloads

type UserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

type TaskResponse struct {
	ID                 string `json:"id"`
	CreatedAt          string `json:"created_at"`
	Title              string `json:"title"`
	AssignedDepartment string `json:"assigned_department"`
	SignupDate         string `json:"signup_date"`
	StartDate          string `json:"start_date"`
	DueDate            string `json:"due_date"`
	Status             string `json:"status"`
	Urgent             bool   `json:"urgent"`
}

type TaskListResponse struct {
	Items []TaskResponse `json:"items"`
}

type EnumsResponse struct {
	Departments []string `json:"departments"`
	Statuses    []string `json:"statuses"`
}

func taskResponse(row tasktable.Row) TaskResponse {
	return TaskResponse{
		ID:                 row.ID,
		CreatedAt:          row.CreatedAt,
		Title:              row.Title,
		AssignedDepartment: row.AssignedDepartment,
		SignupDate:         row.SignupDate,
		StartDate:          row.StartDate,
		DueDate:            row.DueDate,
		Status:             row.Status,
		Urgent:             row.Urgent,
	}
}

func mapRows(rows []tasktable.Row) []TaskResponse {
	out := make([]TaskResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, taskResponse(r))
	}
	return out
}

func enumsResponse() EnumsResponse {
	var res EnumsResponse
	for _, d := range domain.Departments() {
		res.Departments = append(res.Departments, string(d))
	}
	for _, s := range domain.Statuses() {
		res.Statuses = append(res.Statuses, string(s))
	}
	return res
}

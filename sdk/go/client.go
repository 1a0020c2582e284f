package sapaboardsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Sapaboard HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v1",
		Timeout:  10 * time.Second,
	}
}

// Task is a task as returned by the list and detail endpoints.
type Task struct {
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

// TaskInput is the create/edit payload. An empty Status defaults on create.
type TaskInput struct {
	Title              string `json:"title,omitempty"`
	AssignedDepartment string `json:"assigned_department,omitempty"`
	SignupDate         string `json:"signup_date,omitempty"`
	StartDate          string `json:"start_date,omitempty"`
	DueDate            string `json:"due_date,omitempty"`
	Status             string `json:"status,omitempty"`
}

type TaskFilter struct {
	Search     string
	Status     string
	Department string
}

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      User      `json:"user"`
}

type TopDepartment struct {
	Month      string `json:"month"`
	Department string `json:"department"`
	Count      int    `json:"count"`
}

type MonthBucket struct {
	Total            int            `json:"total"`
	DepartmentCounts map[string]int `json:"department_counts"`
}

// Stats mirrors the dashboard statistics snapshot.
type Stats struct {
	TotalTasks           int                    `json:"total_tasks"`
	StatusCounts         map[string]int         `json:"status_counts"`
	DepartmentCounts     map[string]int         `json:"department_counts"`
	UrgentCount          int                    `json:"urgent_count"`
	OverdueCount         int                    `json:"overdue_count"`
	Monthly              map[string]MonthBucket `json:"monthly"`
	SortedMonthKeys      []string               `json:"sorted_month_keys"`
	TopDepartmentByMonth []TopDepartment        `json:"top_department_by_month"`
	CompletionRate       int                    `json:"completion_rate"`
}

type CalendarDay struct {
	Date    string `json:"date"`
	Day     int    `json:"day"`
	IsToday bool   `json:"is_today"`
	IsPast  bool   `json:"is_past"`
	Tasks   []Task `json:"tasks"`
}

type Calendar struct {
	Year               int               `json:"year"`
	Month              int               `json:"month"`
	DaysInMonth        int               `json:"days_in_month"`
	FirstWeekdayOffset int               `json:"first_weekday_offset"`
	WeekStart          int               `json:"week_start"`
	TasksByDay         map[string][]Task `json:"tasks_by_day"`
	Days               []CalendarDay     `json:"days"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Fields     map[string]string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Body: string(body)}
	var env struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
			Details struct {
				Fields map[string]string `json:"fields"`
			} `json:"details"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &env) == nil {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
		apiErr.Fields = env.Error.Details.Fields
	}
	return apiErr
}

// Login signs in and keeps the token for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	var resp Session
	err := c.do(ctx, http.MethodPost, "auth/login", map[string]string{"email": email, "password": password}, &resp)
	if err == nil {
		c.BearerToken = resp.Token
	}
	return resp, err
}

func (c *Client) ListTasks(ctx context.Context, f TaskFilter) ([]Task, error) {
	q := url.Values{}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.Department != "" {
		q.Set("department", f.Department)
	}
	endpoint := "tasks"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp struct {
		Items []Task `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

func (c *Client) GetTask(ctx context.Context, id string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodGet, "tasks/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

func (c *Client) CreateTask(ctx context.Context, in TaskInput) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, "tasks", in, &resp)
	return resp, err
}

// UpdateTask replaces every editable field of the task.
func (c *Client) UpdateTask(ctx context.Context, id string, in TaskInput) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPut, "tasks/"+url.PathEscape(id), in, &resp)
	return resp, err
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "tasks/"+url.PathEscape(id), nil, nil)
}

func (c *Client) Stats(ctx context.Context) (Stats, error) {
	var resp Stats
	err := c.do(ctx, http.MethodGet, "stats", nil, &resp)
	return resp, err
}

func (c *Client) Calendar(ctx context.Context, year int, month time.Month) (Calendar, error) {
	var resp Calendar
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("calendar/%d/%d", year, int(month)), nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return parseAPIError(resp.StatusCode, b)
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if p := strings.Trim(c.BasePath, "/"); p != "" {
		base += "/" + p
	}
	return base
}

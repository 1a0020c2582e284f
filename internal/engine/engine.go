package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"sapaboard/internal/analytics"
	"sapaboard/internal/calendar"
	"sapaboard/internal/config"
	"sapaboard/internal/domain"
	"sapaboard/internal/engine/auth"
	"sapaboard/internal/repo"
	"sapaboard/internal/taskform"
	"sapaboard/internal/tasktable"
)

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrInvalidMonth    = errors.New("month must be between 1 and 12")
)

// Store is the task record source.
type Store interface {
	ListTasks(ctx context.Context, f repo.TaskFilters) ([]domain.Task, error)
	GetTask(ctx context.Context, id string) (domain.Task, error)
	InsertTask(ctx context.Context, t domain.Task) error
	UpdateTask(ctx context.Context, t domain.Task) error
	DeleteTask(ctx context.Context, id string) error
	CountTasksByStatus(ctx context.Context) (map[string]int, error)
}

type UserStore interface {
	auth.Users
	InsertUser(ctx context.Context, u domain.User) error
	ListUsers(ctx context.Context) ([]domain.User, error)
}

type Engine struct {
	Store  Store
	Users  UserStore
	Auth   auth.Service
	Config *config.Config
	Logger *slog.Logger
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config, logger *slog.Logger) Engine {
	r := repo.Repo{DB: db}
	return Engine{
		Store:  r,
		Users:  r,
		Auth:   auth.Service{Users: r},
		Config: cfg,
		Logger: logger,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e Engine) config() *config.Config {
	if e.Config != nil {
		return e.Config
	}
	return config.Default()
}

func requirePrincipal(p auth.Principal) error {
	if p.IsZero() {
		return ErrUnauthenticated
	}
	return nil
}

// ListTasks returns the filtered task list, newest first.
func (e Engine) ListTasks(ctx context.Context, f tasktable.Filter) ([]domain.Task, error) {
	tasks, err := e.Store.ListTasks(ctx, repo.TaskFilters{Status: f.Status, Department: f.Department})
	if err != nil {
		return nil, err
	}
	return tasktable.Apply(tasks, f), nil
}

// ListRows is ListTasks with the list view's urgent flag attached.
func (e Engine) ListRows(ctx context.Context, f tasktable.Filter) ([]tasktable.Row, error) {
	tasks, err := e.ListTasks(ctx, f)
	if err != nil {
		return nil, err
	}
	return tasktable.Rows(tasks, e.now(), e.config().Stats.UrgentWithinDays), nil
}

func (e Engine) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return e.Store.GetTask(ctx, id)
}

// Row flags a single task the way ListRows does.
func (e Engine) Row(t domain.Task) tasktable.Row {
	return tasktable.Row{Task: t, Urgent: tasktable.IsUrgent(t, e.now(), e.config().Stats.UrgentWithinDays)}
}

func (e Engine) CreateTask(ctx context.Context, p auth.Principal, d taskform.Draft) (domain.Task, error) {
	if err := requirePrincipal(p); err != nil {
		return domain.Task{}, err
	}
	if d.Status == "" {
		d.Status = taskform.Defaults().Status
	}
	in, err := taskform.Validate(d)
	if err != nil {
		return domain.Task{}, err
	}
	t := in.Apply(domain.Task{
		ID:        uuid.NewString(),
		CreatedAt: e.now().UTC().Format(time.RFC3339),
	})
	if err := e.Store.InsertTask(ctx, t); err != nil {
		return domain.Task{}, err
	}
	e.logger().Info("task created", "task_id", t.ID, "user_id", p.UserID)
	return t, nil
}

func (e Engine) UpdateTask(ctx context.Context, p auth.Principal, id string, d taskform.Draft) (domain.Task, error) {
	if err := requirePrincipal(p); err != nil {
		return domain.Task{}, err
	}
	in, err := taskform.Validate(d)
	if err != nil {
		return domain.Task{}, err
	}
	existing, err := e.Store.GetTask(ctx, id)
	if err != nil {
		return domain.Task{}, err
	}
	t := in.Apply(existing)
	if err := e.Store.UpdateTask(ctx, t); err != nil {
		return domain.Task{}, err
	}
	e.logger().Info("task updated", "task_id", t.ID, "user_id", p.UserID)
	return t, nil
}

func (e Engine) DeleteTask(ctx context.Context, p auth.Principal, id string) error {
	if err := requirePrincipal(p); err != nil {
		return err
	}
	if err := e.Store.DeleteTask(ctx, id); err != nil {
		return err
	}
	e.logger().Info("task deleted", "task_id", id, "user_id", p.UserID)
	return nil
}

// Stats aggregates every stored task.
func (e Engine) Stats(ctx context.Context, p auth.Principal) (analytics.Snapshot, error) {
	if err := requirePrincipal(p); err != nil {
		return analytics.Snapshot{}, err
	}
	tasks, err := e.Store.ListTasks(ctx, repo.TaskFilters{})
	if err != nil {
		return analytics.Snapshot{}, err
	}
	snap := analytics.AggregateWith(tasks, e.now(), analytics.Options{
		UrgentWithinDays: e.config().Stats.UrgentWithinDays,
	})
	e.reportDataQuality("stats", snap.DataQuality)
	return snap, nil
}

// StatusCounts returns the number of stored tasks per status, counted by the
// store without loading rows. Every known status is present.
func (e Engine) StatusCounts(ctx context.Context) (map[string]int, error) {
	counts, err := e.Store.CountTasksByStatus(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range domain.Statuses() {
		if _, ok := counts[string(s)]; !ok {
			counts[string(s)] = 0
		}
	}
	return counts, nil
}

// Calendar buckets tasks into the days of year/month by start date.
func (e Engine) Calendar(ctx context.Context, year int, month time.Month) (calendar.Month, error) {
	if month < time.January || month > time.December {
		return calendar.Month{}, ErrInvalidMonth
	}
	weekStart, err := e.config().WeekStart()
	if err != nil {
		return calendar.Month{}, err
	}
	tasks, err := e.Store.ListTasks(ctx, repo.TaskFilters{})
	if err != nil {
		return calendar.Month{}, err
	}
	m := calendar.Build(tasks, year, month, e.now(), weekStart)
	e.reportDataQuality("calendar", m.DataQuality)
	return m, nil
}

func (e Engine) reportDataQuality(view string, errs []analytics.DataQualityError) {
	for _, dq := range errs {
		e.logger().Warn("skipping unparseable task date",
			"view", view, "task_id", dq.TaskID, "field", dq.Field, "value", dq.Value, "err", dq.Err)
	}
}

// Login checks credentials and returns the principal.
func (e Engine) Login(ctx context.Context, email, password string) (auth.Principal, error) {
	p, err := e.Auth.Login(ctx, email, password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			e.logger().Warn("login failed", "email", repo.NormalizeEmail(email))
		}
		return auth.Principal{}, err
	}
	return p, nil
}

// AddUser registers a dashboard user.
func (e Engine) AddUser(ctx context.Context, email, password string) (domain.User, error) {
	if err := auth.ValidateEmail(email); err != nil {
		return domain.User{}, err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, err
	}
	u := domain.User{
		ID:           uuid.NewString(),
		Email:        repo.NormalizeEmail(email),
		PasswordHash: hash,
		CreatedAt:    e.now().UTC().Format(time.RFC3339),
	}
	if err := e.Users.InsertUser(ctx, u); err != nil {
		return domain.User{}, fmt.Errorf("add user %s: %w", u.Email, err)
	}
	return u, nil
}

func (e Engine) ListUsers(ctx context.Context) ([]domain.User, error) {
	return e.Users.ListUsers(ctx)
}

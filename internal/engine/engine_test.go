package engine_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"sapaboard/internal/config"
	"sapaboard/internal/db"
	"sapaboard/internal/domain"
	"sapaboard/internal/engine"
	"sapaboard/internal/engine/auth"
	"sapaboard/internal/migrate"
	"sapaboard/internal/repo"
	"sapaboard/internal/taskform"
	"sapaboard/internal/tasktable"
)

type testEnv struct {
	Engine engine.Engine
	Repo   repo.Repo
	Ctx    context.Context
	Logs   *bytes.Buffer
	User   auth.Principal
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(logs, nil))
	eng := engine.New(conn, config.Default(), logger)
	eng.Now = func() time.Time { return time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	u, err := eng.AddUser(ctx, "head@school.ac.th", "secret123")
	if err != nil {
		t.Fatalf("add user: %v", err)
	}
	return testEnv{
		Engine: eng,
		Repo:   repo.Repo{DB: conn},
		Ctx:    ctx,
		Logs:   logs,
		User:   auth.Principal{UserID: u.ID, Email: u.Email},
	}
}

func draft(title string) taskform.Draft {
	return taskform.Draft{
		Title:              title,
		AssignedDepartment: string(domain.DepartmentAcademic),
		SignupDate:         "2024-03-01",
		StartDate:          "2024-03-05",
		DueDate:            "2024-03-12",
	}
}

func TestCreateTaskDefaultsAndValidation(t *testing.T) {
	env := newTestEnv(t)
	task, err := env.Engine.CreateTask(env.Ctx, env.User, draft("  Sports day  "))
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.ID == "" || task.CreatedAt != "2024-03-10T09:00:00Z" {
		t.Fatalf("unexpected identity fields: %+v", task)
	}
	if task.Title != "Sports day" || task.Status != string(domain.StatusNotStarted) {
		t.Fatalf("unexpected task: %+v", task)
	}

	_, err = env.Engine.CreateTask(env.Ctx, env.User, taskform.Draft{Status: "bogus"})
	var verrs taskform.ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected validation errors, got %v", err)
	}
	if len(verrs) != 6 {
		t.Fatalf("expected every field to fail, got %v", verrs)
	}

	tasks, err := env.Engine.ListTasks(env.Ctx, tasktable.Filter{})
	if err != nil || len(tasks) != 1 {
		t.Fatalf("invalid draft must not be stored: %v %v", tasks, err)
	}
}

func TestMutationsRequirePrincipal(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.CreateTask(env.Ctx, auth.Principal{}, draft("x")); !errors.Is(err, engine.ErrUnauthenticated) {
		t.Fatalf("create: expected unauthenticated, got %v", err)
	}
	if _, err := env.Engine.UpdateTask(env.Ctx, auth.Principal{}, "id", draft("x")); !errors.Is(err, engine.ErrUnauthenticated) {
		t.Fatalf("update: expected unauthenticated, got %v", err)
	}
	if err := env.Engine.DeleteTask(env.Ctx, auth.Principal{}, "id"); !errors.Is(err, engine.ErrUnauthenticated) {
		t.Fatalf("delete: expected unauthenticated, got %v", err)
	}
	if _, err := env.Engine.Stats(env.Ctx, auth.Principal{}); !errors.Is(err, engine.ErrUnauthenticated) {
		t.Fatalf("stats: expected unauthenticated, got %v", err)
	}
	if _, err := env.Engine.Calendar(env.Ctx, 2024, time.March); err != nil {
		t.Fatalf("calendar is public: %v", err)
	}
}

func TestUpdateAndDelete(t *testing.T) {
	env := newTestEnv(t)
	task, err := env.Engine.CreateTask(env.Ctx, env.User, draft("Budget review"))
	if err != nil {
		t.Fatal(err)
	}
	d := taskform.FromTask(task)
	d.Status = string(domain.StatusCompleted)
	d.AssignedDepartment = string(domain.DepartmentBudget)
	updated, err := env.Engine.UpdateTask(env.Ctx, env.User, task.ID, d)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ID != task.ID || updated.CreatedAt != task.CreatedAt {
		t.Fatalf("identity changed: %+v vs %+v", updated, task)
	}
	if updated.Status != string(domain.StatusCompleted) || updated.AssignedDepartment != string(domain.DepartmentBudget) {
		t.Fatalf("update not applied: %+v", updated)
	}

	if _, err := env.Engine.UpdateTask(env.Ctx, env.User, "missing", d); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := env.Engine.DeleteTask(env.Ctx, env.User, task.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := env.Engine.GetTask(env.Ctx, task.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestListFiltersAndUrgentRows(t *testing.T) {
	env := newTestEnv(t)
	seed := []domain.Task{
		{ID: "old-open", CreatedAt: "2024-03-01T00:00:00Z", Title: "Poster design", AssignedDepartment: string(domain.DepartmentGeneral), SignupDate: "2024-03-01", StartDate: "2024-03-02", DueDate: "2024-03-12", Status: string(domain.StatusInProgress)},
		{ID: "fresh", CreatedAt: "2024-03-10T08:00:00Z", Title: "Poster print", AssignedDepartment: string(domain.DepartmentGeneral), SignupDate: "2024-03-10", StartDate: "2024-03-10", DueDate: "2024-03-11", Status: string(domain.StatusNotStarted)},
		{ID: "done", CreatedAt: "2024-02-01T00:00:00Z", Title: "Assembly", AssignedDepartment: string(domain.DepartmentPersonnel), SignupDate: "2024-02-01", StartDate: "2024-02-02", DueDate: "2024-03-11", Status: string(domain.StatusCompleted)},
	}
	for _, task := range seed {
		if err := env.Repo.InsertTask(env.Ctx, task); err != nil {
			t.Fatal(err)
		}
	}

	rows, err := env.Engine.ListRows(env.Ctx, tasktable.Filter{Search: "POSTER"})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0].ID != "fresh" || rows[1].ID != "old-open" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
	if rows[0].Urgent || !rows[1].Urgent {
		t.Fatalf("urgent flags wrong: fresh=%v old=%v", rows[0].Urgent, rows[1].Urgent)
	}

	done, err := env.Engine.ListTasks(env.Ctx, tasktable.Filter{Status: string(domain.StatusCompleted)})
	if err != nil || len(done) != 1 || done[0].ID != "done" {
		t.Fatalf("status filter: %v %v", done, err)
	}
	narrow := env.Engine
	narrow.Config = config.Default()
	narrow.Config.Stats.UrgentWithinDays = 1
	rows, err = narrow.ListRows(env.Ctx, tasktable.Filter{Search: "design"})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Urgent {
		t.Fatalf("due in two days must not be urgent with a one-day window: %+v", rows)
	}

	counts, err := env.Engine.StatusCounts(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]int{
		string(domain.StatusNotStarted): 1,
		string(domain.StatusInProgress): 1,
		string(domain.StatusCompleted):  1,
	}
	if len(counts) != len(want) {
		t.Fatalf("counts = %v", counts)
	}
	for k, v := range want {
		if counts[k] != v {
			t.Fatalf("counts[%s] = %d, want %d", k, counts[k], v)
		}
	}
}

func TestStatusCountsIncludeEmptyStatuses(t *testing.T) {
	env := newTestEnv(t)
	counts, err := env.Engine.StatusCounts(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, st := range domain.Statuses() {
		if n, ok := counts[string(st)]; !ok || n != 0 {
			t.Fatalf("status %s: %d %v", st, n, ok)
		}
	}
}

func TestStatsLogsDataQuality(t *testing.T) {
	env := newTestEnv(t)
	seed := []domain.Task{
		{ID: "ok", CreatedAt: "2024-03-01T00:00:00Z", Title: "a", AssignedDepartment: string(domain.DepartmentGeneral), SignupDate: "2024-03-01", StartDate: "2024-03-02", DueDate: "2024-03-12", Status: string(domain.StatusCompleted)},
		{ID: "bad", CreatedAt: "2024-03-01T00:00:00Z", Title: "b", AssignedDepartment: string(domain.DepartmentGeneral), SignupDate: "2024-03-01", StartDate: "soon", DueDate: "someday", Status: string(domain.StatusNotStarted)},
	}
	for _, task := range seed {
		if err := env.Repo.InsertTask(env.Ctx, task); err != nil {
			t.Fatal(err)
		}
	}
	snap, err := env.Engine.Stats(env.Ctx, env.User)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if snap.TotalTasks != 2 || snap.CompletionRate != 50 || len(snap.DataQuality) != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if !strings.Contains(env.Logs.String(), "level=WARN") || !strings.Contains(env.Logs.String(), "task_id=bad") {
		t.Fatalf("expected data quality warning, logs: %s", env.Logs.String())
	}

	m, err := env.Engine.Calendar(env.Ctx, 2024, time.March)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.TasksByDay["2024-03-02"]) != 1 || len(m.DataQuality) != 1 {
		t.Fatalf("unexpected calendar: %+v", m.TasksByDay)
	}
	if _, err := env.Engine.Calendar(env.Ctx, 2024, 13); !errors.Is(err, engine.ErrInvalidMonth) {
		t.Fatalf("expected invalid month, got %v", err)
	}
}

func TestLoginAndUsers(t *testing.T) {
	env := newTestEnv(t)
	p, err := env.Engine.Login(env.Ctx, "HEAD@school.ac.th", "secret123")
	if err != nil || p != env.User {
		t.Fatalf("login: %+v %v", p, err)
	}
	if _, err := env.Engine.Login(env.Ctx, "head@school.ac.th", "wrong"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := env.Engine.AddUser(env.Ctx, "head@school.ac.th", "again"); !errors.Is(err, repo.ErrEmailTaken) {
		t.Fatalf("expected duplicate email, got %v", err)
	}
	if _, err := env.Engine.AddUser(env.Ctx, "not-an-email", "pw"); !errors.Is(err, auth.ErrInvalidEmail) {
		t.Fatalf("expected invalid email, got %v", err)
	}
	users, err := env.Engine.ListUsers(env.Ctx)
	if err != nil || len(users) != 1 {
		t.Fatalf("users: %v %v", users, err)
	}
}

package repo_test

import (
	"context"
	"errors"
	"testing"

	"sapaboard/internal/db"
	"sapaboard/internal/domain"
	"sapaboard/internal/migrate"
	"sapaboard/internal/repo"
)

func newRepo(t *testing.T) repo.Repo {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo.Repo{DB: conn}
}

func sample(id, created, start string) domain.Task {
	return domain.Task{
		ID:                 id,
		CreatedAt:          created,
		Title:              "task " + id,
		AssignedDepartment: string(domain.DepartmentGeneral),
		SignupDate:         "2024-01-01",
		StartDate:          start,
		DueDate:            "2024-02-01",
		Status:             string(domain.StatusNotStarted),
	}
}

func TestTaskCRUD(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	for _, task := range []domain.Task{
		sample("a", "2024-01-01T00:00:00Z", "2024-01-05"),
		sample("b", "2024-01-03T00:00:00Z", "2024-01-20"),
		sample("c", "2024-01-02T00:00:00Z", "2024-02-01"),
	} {
		if err := r.InsertTask(ctx, task); err != nil {
			t.Fatalf("insert %s: %v", task.ID, err)
		}
	}

	tasks, err := r.ListTasks(ctx, repo.TaskFilters{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 3 || tasks[0].ID != "b" || tasks[1].ID != "c" || tasks[2].ID != "a" {
		t.Fatalf("expected newest first, got %+v", tasks)
	}

	general, err := r.ListTasks(ctx, repo.TaskFilters{Department: string(domain.DepartmentGeneral), Status: string(domain.StatusNotStarted)})
	if err != nil {
		t.Fatal(err)
	}
	if len(general) != 3 {
		t.Fatalf("expected 3 matching tasks, got %d", len(general))
	}
	academic, err := r.ListTasks(ctx, repo.TaskFilters{Department: string(domain.DepartmentAcademic)})
	if err != nil {
		t.Fatal(err)
	}
	if len(academic) != 0 {
		t.Fatalf("expected no academic tasks, got %d", len(academic))
	}

	got, err := r.GetTask(ctx, "a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	got.Status = string(domain.StatusCompleted)
	got.Title = "renamed"
	got.CreatedAt = "1999-01-01T00:00:00Z"
	if err := r.UpdateTask(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = r.GetTask(ctx, "a")
	if got.Title != "renamed" || got.Status != string(domain.StatusCompleted) {
		t.Fatalf("update not applied: %+v", got)
	}
	if got.CreatedAt != "2024-01-01T00:00:00Z" {
		t.Fatalf("created_at must be immutable, got %s", got.CreatedAt)
	}

	counts, err := r.CountTasksByStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts[string(domain.StatusCompleted)] != 1 || counts[string(domain.StatusNotStarted)] != 2 {
		t.Fatalf("counts = %v", counts)
	}

	if err := r.DeleteTask(ctx, "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := r.GetTask(ctx, "a"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := r.DeleteTask(ctx, "a"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
	if err := r.UpdateTask(ctx, sample("zzz", "", "")); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found on update, got %v", err)
	}
}

func TestDuplicateIDIsStoreError(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	task := sample("dup", "2024-01-01T00:00:00Z", "2024-01-05")
	if err := r.InsertTask(ctx, task); err != nil {
		t.Fatal(err)
	}
	err := r.InsertTask(ctx, task)
	var se *repo.StoreError
	if !errors.As(err, &se) {
		t.Fatalf("expected StoreError, got %T %v", err, err)
	}
	if se.Op != "insert task" || se.Error() != se.Err.Error() {
		t.Fatalf("store error should carry the driver message verbatim: %+v", se)
	}
}

func TestClosedDatabaseSurfacesStoreError(t *testing.T) {
	r := newRepo(t)
	r.DB.Close()
	_, err := r.ListTasks(context.Background(), repo.TaskFilters{})
	var se *repo.StoreError
	if !errors.As(err, &se) {
		t.Fatalf("expected StoreError, got %v", err)
	}
}

func TestUsers(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	u := domain.User{ID: "u1", Email: " Admin@School.ac.th ", PasswordHash: "hash"}
	if err := r.InsertUser(ctx, u); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	if err := r.InsertUser(ctx, domain.User{ID: "u2", Email: "admin@school.ac.th", PasswordHash: "x"}); !errors.Is(err, repo.ErrEmailTaken) {
		t.Fatalf("expected duplicate email error, got %v", err)
	}
	got, err := r.GetUserByEmail(ctx, "ADMIN@school.ac.th")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if got.ID != "u1" || got.Email != "admin@school.ac.th" {
		t.Fatalf("unexpected user %+v", got)
	}
	if _, err := r.GetUser(ctx, "nope"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	n, err := r.CountUsers(ctx)
	if err != nil || n != 1 {
		t.Fatalf("count = %d, %v", n, err)
	}
	users, err := r.ListUsers(ctx)
	if err != nil || len(users) != 1 {
		t.Fatalf("list = %v, %v", users, err)
	}
}

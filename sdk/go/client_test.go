package sapaboardsdk_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sapaboard/internal/config"
	"sapaboard/internal/db"
	"sapaboard/internal/engine"
	"sapaboard/internal/engine/auth"
	"sapaboard/internal/migrate"
	"sapaboard/internal/server"
	sapaboardsdk "sapaboard/sdk/go"
)

func newClient(t *testing.T) *sapaboardsdk.Client {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := engine.New(conn, config.Default(), logger)
	e.Now = func() time.Time { return time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC) }
	_, err = e.AddUser(context.Background(), "head@school.ac.th", "secret123")
	require.NoError(t, err)

	handler, err := server.New(server.Config{
		Engine: e,
		Auth:   server.AuthConfig{Tokens: auth.Tokens{Secret: "sdk-secret", TTL: time.Hour}},
		Logger: logger,
	})
	require.NoError(t, err)
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return sapaboardsdk.New(ts.URL)
}

func TestClientRoundTrip(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	_, err := c.CreateTask(ctx, sapaboardsdk.TaskInput{Title: "x"})
	var apiErr *sapaboardsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)

	sess, err := c.Login(ctx, "head@school.ac.th", "secret123")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)
	assert.Equal(t, "head@school.ac.th", sess.User.Email)

	_, err = c.CreateTask(ctx, sapaboardsdk.TaskInput{Title: "x"})
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "validation_failed", apiErr.Code)
	assert.Contains(t, apiErr.Fields, "assigned_department")
	assert.NotContains(t, apiErr.Fields, "title")

	in := sapaboardsdk.TaskInput{
		Title:              "ประชุมสภา",
		AssignedDepartment: "สำนักประธานสภานักเรียน",
		SignupDate:         "2024-03-01",
		StartDate:          "2024-03-15",
		DueDate:            "2024-03-20",
	}
	task, err := c.CreateTask(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "ยังไม่ดำเนินงาน", task.Status)

	in.Status = "กำลังดำเนิน"
	task, err = c.UpdateTask(ctx, task.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "กำลังดำเนิน", task.Status)

	got, err := c.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task, got)

	list, err := c.ListTasks(ctx, sapaboardsdk.TaskFilter{Department: "สำนักประธานสภานักเรียน"})
	require.NoError(t, err)
	require.Len(t, list, 1)

	list, err = c.ListTasks(ctx, sapaboardsdk.TaskFilter{Status: "เสร็จสิ้น"})
	require.NoError(t, err)
	assert.Empty(t, list)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalTasks)
	assert.Equal(t, 0, stats.CompletionRate)

	cal, err := c.Calendar(ctx, 2024, time.March)
	require.NoError(t, err)
	assert.Equal(t, 31, cal.DaysInMonth)
	assert.Len(t, cal.TasksByDay["2024-03-15"], 1)
	require.Len(t, cal.Days, 31)
	assert.True(t, cal.Days[9].IsToday)

	require.NoError(t, c.DeleteTask(ctx, task.ID))
	_, err = c.GetTask(ctx, task.ID)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"sapaboard/internal/analytics"
	"sapaboard/internal/app"
	"sapaboard/internal/calendar"
	"sapaboard/internal/config"
	"sapaboard/internal/domain"
	"sapaboard/internal/engine"
	"sapaboard/internal/engine/auth"
	"sapaboard/internal/server"
	"sapaboard/internal/taskform"
	"sapaboard/internal/tasktable"
)

var rootCmd = &cobra.Command{
	Use:   "sapa",
	Short: "Student council task dashboard",
	Long: `sapa tracks the tasks of a student council: who owns them, when they start and
when they are due. It prints the task list, the monthly calendar and the
statistics page, and serves the same data over HTTP.

A workspace is a directory holding sapaboard.yml and .sapaboard/sapaboard.db.
Reading is open to everyone; adding, editing, deleting and statistics need
--email/--password (or SAPA_EMAIL/SAPA_PASSWORD).`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("SAPA")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("email", "", "sign-in email")
	rootCmd.PersistentFlags().String("password", "", "sign-in password")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	for _, name := range []string{"workspace", "json", "email", "password", "log-level"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(calendarCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(serveCmd())
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{Use: "task", Short: "Manage tasks"}
	task.AddCommand(taskListCmd())
	task.AddCommand(taskShowCmd())
	task.AddCommand(taskAddCmd())
	task.AddCommand(taskEditCmd())
	task.AddCommand(taskDeleteCmd())
	return task
}

func taskListCmd() *cobra.Command {
	var f tasktable.Filter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				rows, err := rt.Engine.ListRows(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(rows)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Department", "Start", "Due", "Status", ""})
				for _, r := range rows {
					flag := ""
					if r.Urgent {
						flag = text.FgRed.Sprint("urgent")
					}
					tw.AppendRow(table.Row{r.ID, r.Title, r.AssignedDepartment, r.StartDate, r.DueDate, r.Status, flag})
				}
				counts, err := rt.Engine.StatusCounts(ctx)
				if err != nil {
					return err
				}
				tw.AppendFooter(table.Row{"", fmt.Sprintf("%d tasks", len(rows)), "", "", "", statusSummary(counts)})
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Search, "search", "", "title contains (case-insensitive)")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.Department, "department", "", "department filter")
	return cmd
}

func taskShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				t, err := rt.Engine.GetTask(ctx, args[0])
				if err != nil {
					return err
				}
				row := rt.Engine.Row(t)
				if viper.GetBool("json") {
					return printJSON(row)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendRows([]table.Row{
					{"ID", t.ID},
					{"Title", t.Title},
					{"Department", t.AssignedDepartment},
					{"Signup", t.SignupDate},
					{"Start", t.StartDate},
					{"Due", t.DueDate},
					{"Status", t.Status},
					{"Urgent", row.Urgent},
					{"Created", t.CreatedAt},
				})
				tw.Render()
				return nil
			})
		},
	}
}

// draftFlags binds the task form to command flags.
func draftFlags(cmd *cobra.Command, d *taskform.Draft) {
	cmd.Flags().StringVar(&d.Title, "title", "", "task title")
	cmd.Flags().StringVar(&d.AssignedDepartment, "department", "", "assigned department ("+joinEnum(domain.Departments())+")")
	cmd.Flags().StringVar(&d.SignupDate, "signup", "", "signup date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&d.StartDate, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&d.DueDate, "due", "", "due date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&d.Status, "status", "", "status ("+joinEnum(domain.Statuses())+")")
}

func taskAddCmd() *cobra.Command {
	var d taskform.Draft
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a task; status defaults to "+string(domain.StatusNotStarted),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				p, err := signIn(ctx, rt)
				if err != nil {
					return err
				}
				t, err := rt.Engine.CreateTask(ctx, p, d)
				if err != nil {
					return formError(err)
				}
				return printTask(t)
			})
		},
	}
	draftFlags(cmd, &d)
	return cmd
}

func taskEditCmd() *cobra.Command {
	var overlay taskform.Draft
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a task; unset flags keep their current value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				p, err := signIn(ctx, rt)
				if err != nil {
					return err
				}
				existing, err := rt.Engine.GetTask(ctx, args[0])
				if err != nil {
					return err
				}
				d := taskform.FromTask(existing)
				for flag, dst := range map[string]*string{
					"title":      &d.Title,
					"department": &d.AssignedDepartment,
					"signup":     &d.SignupDate,
					"start":      &d.StartDate,
					"due":        &d.DueDate,
					"status":     &d.Status,
				} {
					if cmd.Flags().Changed(flag) {
						*dst = cmd.Flags().Lookup(flag).Value.String()
					}
				}
				t, err := rt.Engine.UpdateTask(ctx, p, existing.ID, d)
				if err != nil {
					return formError(err)
				}
				return printTask(t)
			})
		},
	}
	draftFlags(cmd, &overlay)
	return cmd
}

func taskDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				p, err := signIn(ctx, rt)
				if err != nil {
					return err
				}
				if err := rt.Engine.DeleteTask(ctx, p, args[0]); err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"deleted": args[0]})
				}
				fmt.Println("deleted", args[0])
				return nil
			})
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show dashboard statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				p, err := signIn(ctx, rt)
				if err != nil {
					return err
				}
				snap, err := rt.Engine.Stats(ctx, p)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(snap)
				}
				renderStats(snap)
				return nil
			})
		},
	}
}

func renderStats(snap analytics.Snapshot) {
	summary := table.NewWriter()
	summary.SetOutputMirror(os.Stdout)
	summary.SetTitle("Overview")
	summary.AppendRows([]table.Row{
		{"Total tasks", snap.TotalTasks},
		{"Completed", snap.Completed()},
		{"Completion rate", fmt.Sprintf("%d%%", snap.CompletionRate)},
		{"Urgent", snap.UrgentCount},
		{"Overdue", snap.OverdueCount},
	})
	summary.Render()

	byStatus := table.NewWriter()
	byStatus.SetOutputMirror(os.Stdout)
	byStatus.SetTitle("By status")
	byStatus.AppendHeader(table.Row{"Status", "Tasks"})
	for _, s := range domain.Statuses() {
		byStatus.AppendRow(table.Row{string(s), snap.StatusCounts[string(s)]})
	}
	byStatus.Render()

	byDept := table.NewWriter()
	byDept.SetOutputMirror(os.Stdout)
	byDept.SetTitle("By department")
	byDept.AppendHeader(table.Row{"Department", "Tasks"})
	for _, d := range domain.Departments() {
		byDept.AppendRow(table.Row{string(d), snap.DepartmentCounts[string(d)]})
	}
	byDept.Render()

	monthly := table.NewWriter()
	monthly.SetOutputMirror(os.Stdout)
	monthly.SetTitle("By month created")
	monthly.AppendHeader(table.Row{"Month", "Tasks", "Top department"})
	for _, key := range snap.SortedMonthKeys {
		top, _ := snap.TopDepartment(key)
		monthly.AppendRow(table.Row{analytics.MonthLabel(key), snap.Monthly[key].Total, fmt.Sprintf("%s (%d)", top.Department, top.Count)})
	}
	monthly.Render()

	if len(snap.DataQuality) > 0 {
		fmt.Fprintf(os.Stderr, "%d task(s) skipped for unparseable dates\n", len(snap.DataQuality))
	}
}

func calendarCmd() *cobra.Command {
	var year, month, offset int
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Show tasks on a month grid by start date",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				y, m, err := resolveMonth(time.Now(), year, month, offset)
				if err != nil {
					return err
				}
				cal, err := rt.Engine.Calendar(ctx, y, m)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(cal)
				}
				renderCalendar(cal)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "year (default current)")
	cmd.Flags().IntVar(&month, "month", 0, "month 1-12 (default current)")
	cmd.Flags().IntVar(&offset, "offset", 0, "months to move from --year/--month (e.g. -1 for previous)")
	return cmd
}

func renderCalendar(cal calendar.Month) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetTitle(fmt.Sprintf("%s %d", cal.Month, cal.Year))
	header := table.Row{}
	for _, h := range cal.WeekdayHeaders() {
		header = append(header, h)
	}
	tw.AppendHeader(header)
	for _, week := range cal.Weeks() {
		row := table.Row{}
		for _, day := range week {
			row = append(row, dayCell(day))
		}
		tw.AppendRow(row)
		tw.AppendSeparator()
	}
	tw.Render()
}

func dayCell(day *calendar.Day) string {
	if day == nil {
		return ""
	}
	label := fmt.Sprintf("%2d", day.Number)
	switch {
	case day.IsToday:
		label = text.Colors{text.Bold, text.FgCyan}.Sprint(label)
	case day.IsPast:
		label = text.Faint.Sprint(label)
	}
	lines := []string{label}
	for _, t := range day.Tasks {
		title := t.Title
		if t.Completed() {
			title = text.CrossedOut.Sprint(title)
		}
		lines = append(lines, "• "+title)
	}
	return strings.Join(lines, "\n")
}

func userCmd() *cobra.Command {
	user := &cobra.Command{Use: "user", Short: "Manage dashboard users"}
	user.AddCommand(&cobra.Command{
		Use:   "add <email> <password>",
		Short: "Register a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				u, err := rt.Engine.AddUser(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	})
	user.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				users, err := rt.Engine.ListUsers(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(users)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Email", "Created"})
				for _, u := range users {
					tw.AppendRow(table.Row{u.ID, u.Email, u.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	})
	return user
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect workspace config",
		Long:  "Config lives in sapaboard.yml at the workspace root. Missing keys fall back to defaults; secrets come from the environment.",
	}
	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSONOrTable(c)
		},
	})
	cfg.AddCommand(&cobra.Command{
		Use:   "validate [path]",
		Short: "Validate sapaboard.yml, or the config file at path",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if len(args) == 1 {
				_, err = config.FromFile(args[0])
			} else {
				_, err = config.Load(viper.GetString("workspace"))
			}
			if viper.GetBool("json") {
				out := map[string]any{"ok": err == nil}
				if err != nil {
					out["error"] = err.Error()
				}
				return printJSON(out)
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	})
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default sapaboard.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cfg.AddCommand(initCmd)
	return cfg
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := viper.GetString("jwt-secret")
			if secret == "" {
				return fmt.Errorf("SAPA_JWT_SECRET is required for bearer auth")
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				if addr == "" {
					addr = rt.Config.Server.Addr
				}
				if basePath == "" {
					basePath = rt.Config.Server.BasePath
				}
				ttl, err := rt.Config.TokenTTL()
				if err != nil {
					return err
				}
				logger := rt.Engine.Logger
				handler, err := server.New(server.Config{
					Engine:   rt.Engine,
					BasePath: basePath,
					Auth:     server.AuthConfig{Tokens: auth.Tokens{Secret: secret, TTL: ttl}, Logger: logger},
					Logger:   logger,
				})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				logger.Info("serving sapaboard API", "addr", "http://"+addr+basePath, "docs", "http://"+addr+"/docs")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				logger.Info("server stopped")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (default from config)")
	return cmd
}

// --- helpers ---

func newLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(viper.GetString("log-level"))); err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func withRuntime(ctx context.Context, fn func(context.Context, *app.Runtime) error) error {
	rt, err := app.Open(ctx, viper.GetString("workspace"), newLogger())
	if err != nil {
		return err
	}
	defer rt.Close()
	created, err := app.SeedAdmin(ctx, rt, viper.GetString("admin-email"), viper.GetString("admin-password"))
	if err != nil {
		return err
	}
	if created {
		rt.Engine.Logger.Info("seeded first user", "email", viper.GetString("admin-email"))
	}
	return fn(ctx, rt)
}

func signIn(ctx context.Context, rt *app.Runtime) (auth.Principal, error) {
	email, password := viper.GetString("email"), viper.GetString("password")
	if email == "" && password == "" {
		return auth.Principal{}, fmt.Errorf("sign in with --email and --password (or SAPA_EMAIL/SAPA_PASSWORD)")
	}
	return rt.Engine.Login(ctx, email, password)
}

// formError prints field messages on their own lines before failing.
func formError(err error) error {
	var verrs taskform.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	if viper.GetBool("json") {
		_ = printJSON(map[string]any{"fields": map[string]string(verrs)})
	} else {
		for _, f := range verrs.Fields() {
			fmt.Fprintf(os.Stderr, "  %s: %s\n", f, verrs[f])
		}
	}
	return errors.New("task not saved")
}

func printTask(t domain.Task) error {
	if viper.GetBool("json") {
		return printJSON(t)
	}
	fmt.Printf("%s  %s  [%s]  %s → %s  %s\n", t.ID, t.Title, t.AssignedDepartment, t.StartDate, t.DueDate, t.Status)
	return nil
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	rows, err := keyValueRows(v)
	if err != nil {
		return err
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Key", "Value"})
	tw.AppendRows(rows)
	tw.Render()
	return nil
}

// keyValueRows flattens the JSON form of v into sorted dotted-key rows.
func keyValueRows(v any) ([]table.Row, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var tree map[string]any
	if err := json.Unmarshal(b, &tree); err != nil {
		return nil, err
	}
	flat := map[string]any{}
	flatten("", tree, flat)
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([]table.Row, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, table.Row{k, flat[k]})
	}
	return rows, nil
}

func flatten(prefix string, tree map[string]any, out map[string]any) {
	for k, v := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := v.(map[string]any); ok {
			flatten(key, sub, out)
			continue
		}
		out[key] = v
	}
}

// resolveMonth picks the calendar month from the flags: zero year or month
// means the current one, and offset moves by whole months afterwards.
func resolveMonth(now time.Time, year, month, offset int) (int, time.Month, error) {
	if month < 0 || month > 12 {
		return 0, 0, engine.ErrInvalidMonth
	}
	y, m := now.Year(), now.Month()
	if year != 0 {
		y = year
	}
	if month != 0 {
		m = time.Month(month)
	}
	y, m = calendar.Navigate(y, m, offset)
	return y, m, nil
}

// statusSummary renders counts in the fixed status order.
func statusSummary(counts map[string]int) string {
	parts := make([]string, 0, len(counts))
	for _, st := range domain.Statuses() {
		parts = append(parts, fmt.Sprintf("%s %d", st, counts[string(st)]))
	}
	return strings.Join(parts, " · ")
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func joinEnum[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}

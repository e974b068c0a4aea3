package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/aechclawbot/opsdash/internal/config"
	"github.com/aechclawbot/opsdash/internal/engine"
	"github.com/aechclawbot/opsdash/internal/gateway"
	"github.com/aechclawbot/opsdash/internal/history"
	"github.com/aechclawbot/opsdash/internal/notify"
	"github.com/aechclawbot/opsdash/internal/workitem"
	"github.com/aechclawbot/opsdash/tui"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	listStatus   string
	listKind     string
	listQuery    string
	createDesc   string
	createPrio   string
	createKind   string
	editTitle    string
	editDesc     string
	editPrio     string
	auditFollow  bool
	exportNote   string
	verboseLevel bool
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseLevel, "verbose", "v", false, "enable debug logging")

	tuiCmd := &cobra.Command{
		Use:   "tui",
		Short: "Launch the dashboard",
		RunE:  runTUI,
	}
	rootCmd.AddCommand(tuiCmd)

	tasksCmd := &cobra.Command{
		Use:   "tasks",
		Short: "Work with the merged work item list",
	}
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List work items",
		RunE:  runTasksList,
	}
	listCmd.Flags().StringVar(&listStatus, "status", workitem.StatusActive, "status filter (active, all, or a literal status)")
	listCmd.Flags().StringVar(&listKind, "kind", "", "kind filter (task, bug, feature)")
	listCmd.Flags().StringVar(&listQuery, "query", "", "title/description substring")
	tasksCmd.AddCommand(listCmd)

	createCmd := &cobra.Command{
		Use:   "create TITLE",
		Short: "Create an ad-hoc todo",
		Args:  cobra.ExactArgs(1),
		RunE:  runTasksCreate,
	}
	createCmd.Flags().StringVar(&createDesc, "description", "", "task description")
	createCmd.Flags().StringVar(&createPrio, "priority", "", "priority (low, medium, high)")
	createCmd.Flags().StringVar(&createKind, "kind", "task", "kind (task or bug)")
	tasksCmd.AddCommand(createCmd)

	editCmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Update fields on an existing work item",
		Args:  cobra.ExactArgs(1),
		RunE:  runTasksEdit,
	}
	editCmd.Flags().StringVar(&editTitle, "title", "", "new title")
	editCmd.Flags().StringVar(&editDesc, "description", "", "new description")
	editCmd.Flags().StringVar(&editPrio, "priority", "", "new priority (low, medium, high)")
	tasksCmd.AddCommand(editCmd)
	rootCmd.AddCommand(tasksCmd)

	auditCmd := &cobra.Command{
		Use:   "audit",
		Short: "Run and inspect gateway audits",
	}
	auditRunCmd := &cobra.Command{
		Use:   "run KIND",
		Short: "Run an audit scan (qa or security)",
		Args:  cobra.ExactArgs(1),
		RunE:  runAuditRun,
	}
	auditRunCmd.Flags().BoolVar(&auditFollow, "follow", true, "wait for the scan and print the report")
	auditCmd.AddCommand(auditRunCmd)
	auditReportCmd := &cobra.Command{
		Use:   "report KIND",
		Short: "Print the latest audit report",
		Args:  cobra.ExactArgs(1),
		RunE:  runAuditReport,
	}
	auditCmd.AddCommand(auditReportCmd)
	auditFixCmd := &cobra.Command{
		Use:   "fix KIND [FINDING...]",
		Short: "Fix findings from the latest report (defaults to every auto-fixable one)",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAuditFix,
	}
	auditCmd.AddCommand(auditFixCmd)
	rootCmd.AddCommand(auditCmd)

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Archive the current work item list to the local history database",
		RunE:  runExport,
	}
	exportCmd.Flags().StringVar(&exportNote, "note", "", "note to attach to the snapshot")
	rootCmd.AddCommand(exportCmd)

	snapshotsCmd := &cobra.Command{
		Use:   "snapshots",
		Short: "List archived snapshots",
		RunE:  runSnapshots,
	}
	rootCmd.AddCommand(snapshotsCmd)

	logsCmd := &cobra.Command{
		Use:   "logs CONTAINER",
		Short: "Stream logs from a managed container (ctrl-c to stop)",
		Args:  cobra.ExactArgs(1),
		RunE:  runLogs,
	}
	rootCmd.AddCommand(logsCmd)

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("opsdash", version)
		},
	}
	rootCmd.AddCommand(versionCmd)
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if gatewayURL != "" {
		cfg.Gateway.URL = gatewayURL
	}
	return cfg, nil
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if verboseLevel {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}

func newNotifier(cfg *config.Config) notify.Notifier {
	var sinks []notify.Notifier
	if cfg.Notifications.Desktop {
		sinks = append(sinks, notify.NewDesktop(true))
	}
	if cfg.Notifications.SlackWebhook != "" {
		sinks = append(sinks, notify.NewSlack(cfg.Notifications.SlackWebhook))
	}
	if len(sinks) == 0 {
		return notify.Noop{}
	}
	return notify.NewMulti(sinks...)
}

func newEngine(cfg *config.Config, log zerolog.Logger) (*engine.Engine, *gateway.Client) {
	client := gateway.New(cfg.Gateway.URL, cfg.Gateway.Timeout(), log)
	eng := engine.New(client, newNotifier(cfg), log, engine.Config{
		PollInterval:    cfg.Polling.PollInterval(),
		RefreshInterval: cfg.Polling.RefreshInterval(),
	})
	return eng, client
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Logs to stderr would corrupt the terminal; write them to a file.
	logPath := filepath.Join(os.TempDir(), "opsdash.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer logFile.Close()
	level := zerolog.InfoLevel
	if verboseLevel {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(logFile).Level(level).With().Timestamp().Logger()

	eng, client := newEngine(cfg, log)
	defer eng.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eng.Start(ctx)

	// Interval changes apply without restarting the dashboard.
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	watcher, err := config.NewWatcher(path, func(next *config.Config) {
		eng.SetIntervals(engine.Config{
			PollInterval:    next.Polling.PollInterval(),
			RefreshInterval: next.Polling.RefreshInterval(),
		})
		log.Info().Msg("config reloaded")
	})
	if err == nil {
		watcher.Start(ctx)
		defer watcher.Stop()
	} else {
		log.Warn().Err(err).Msg("config watcher unavailable")
	}

	p := tea.NewProgram(tui.NewModel(eng, client), tea.WithAltScreen())
	_, err = p.Run()
	return err
}

func runTasksList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	eng, _ := newEngine(cfg, newLogger())
	defer eng.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Gateway.Timeout())
	defer cancel()
	eng.Refresh(ctx)

	filter := workitem.Filter{Status: listStatus, Kind: listKind, Query: listQuery}
	items := filter.Apply(eng.Items())

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSOURCE\tKIND\tSTATUS\tPRIORITY\tAGE\tTITLE")
	for _, it := range items {
		age := ""
		if it.CreatedAt != nil {
			age = humanize.Time(*it.CreatedAt)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			it.ID, it.Source, it.Kind, it.Status, it.Priority, age, it.Title)
	}
	return w.Flush()
}

func runTasksCreate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	eng, _ := newEngine(cfg, newLogger())
	defer eng.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Gateway.Timeout())
	defer cancel()

	it, err := eng.CreateTodo(ctx, gateway.CreateTodoRequest{
		Title:       args[0],
		Description: createDesc,
		Priority:    createPrio,
		Kind:        createKind,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Created %s %s: %s\n", it.Kind, it.ID, it.Title)
	return nil
}

func runTasksEdit(cmd *cobra.Command, args []string) error {
	fields := map[string]any{}
	if cmd.Flags().Changed("title") {
		fields["title"] = editTitle
	}
	if cmd.Flags().Changed("description") {
		fields["description"] = editDesc
	}
	if cmd.Flags().Changed("priority") {
		fields["priority"] = editPrio
	}
	if len(fields) == 0 {
		return fmt.Errorf("nothing to change (set --title, --description, or --priority)")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	eng, client := newEngine(cfg, newLogger())
	defer eng.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Gateway.Timeout())
	defer cancel()
	eng.Refresh(ctx)

	id := workitem.ID(args[0])
	it, ok := eng.Item(id, workitem.SourceTodo)
	if !ok {
		if it, ok = eng.Item(id, workitem.SourceFeature); !ok {
			return fmt.Errorf("no work item with id %s", id)
		}
	}

	if it.Source == workitem.SourceFeature {
		err = client.UpdateFeature(ctx, string(id), fields)
	} else {
		err = client.UpdateTodo(ctx, string(id), fields)
	}
	if err != nil {
		return err
	}
	fmt.Printf("Updated %s %s\n", it.Source, id)
	return nil
}

func auditKindArg(arg string) (gateway.AuditKind, error) {
	switch arg {
	case "qa":
		return gateway.AuditQA, nil
	case "security", "sec":
		return gateway.AuditSecurity, nil
	}
	return "", fmt.Errorf("unknown audit kind %q (want qa or security)", arg)
}

func runAuditRun(cmd *cobra.Command, args []string) error {
	kind, err := auditKindArg(args[0])
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	eng, _ := newEngine(cfg, newLogger())
	defer eng.Close()

	ctx := context.Background()
	if err := eng.RunAudit(ctx, kind); err != nil {
		return err
	}
	fmt.Printf("%s scan started\n", kind)
	if !auditFollow {
		return nil
	}

	key := "qa-run"
	if kind == gateway.AuditSecurity {
		key = "sec-run"
	}
	for eng.InFlight(key) {
		time.Sleep(time.Second)
	}
	return printReport(eng.Report(kind))
}

func runAuditReport(cmd *cobra.Command, args []string) error {
	kind, err := auditKindArg(args[0])
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	eng, _ := newEngine(cfg, newLogger())
	defer eng.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Gateway.Timeout())
	defer cancel()
	if err := eng.LoadAuditReport(ctx, kind); err != nil {
		return err
	}
	return printReport(eng.Report(kind))
}

func runAuditFix(cmd *cobra.Command, args []string) error {
	kind, err := auditKindArg(args[0])
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	eng, _ := newEngine(cfg, newLogger())
	defer eng.Close()

	ctx := context.Background()
	loadCtx, cancel := context.WithTimeout(ctx, cfg.Gateway.Timeout())
	defer cancel()
	if err := eng.LoadAuditReport(loadCtx, kind); err != nil {
		return err
	}
	report := eng.Report(kind)
	if report == nil || len(report.Findings) == 0 {
		fmt.Println("No findings to fix")
		return nil
	}

	if len(args) > 1 {
		for _, fid := range args[1:] {
			eng.ToggleFinding(kind, fid)
		}
	} else {
		for _, f := range report.Findings {
			if f.AutoFixable {
				eng.ToggleFinding(kind, f.ID.String())
			}
		}
	}
	selected := eng.SelectedFindings(kind)
	if len(selected) == 0 {
		fmt.Println("No auto-fixable findings in the report")
		return nil
	}

	if err := eng.FixFindings(ctx, kind); err != nil {
		return err
	}
	fmt.Printf("Fixing %d finding(s)\n", len(selected))

	key := "qa-fix"
	if kind == gateway.AuditSecurity {
		key = "sec-fix"
	}
	for eng.InFlight(key) {
		time.Sleep(time.Second)
	}
	return printReport(eng.Report(kind))
}

func printReport(report *gateway.AuditReport) error {
	if report == nil {
		fmt.Println("No report available")
		return nil
	}
	if report.Summary != "" {
		fmt.Println(report.Summary)
	}
	if len(report.Findings) == 0 {
		fmt.Println("No findings")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSEVERITY\tFIXABLE\tFILE\tTITLE")
	for _, f := range report.Findings {
		fixable := ""
		if f.AutoFixable {
			fixable = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", f.ID, f.Severity, fixable, f.File, f.Title)
	}
	return w.Flush()
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	eng, _ := newEngine(cfg, newLogger())
	defer eng.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Gateway.Timeout())
	defer cancel()
	eng.Refresh(ctx)
	items := eng.Items()

	if err := os.MkdirAll(filepath.Dir(cfg.History.DatabasePath), 0755); err != nil {
		return err
	}
	store, err := history.New(cfg.History.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	id, err := store.SaveSnapshot(cfg.Gateway.URL, exportNote, items)
	if err != nil {
		return err
	}
	fmt.Printf("Snapshot %d saved (%d items) to %s\n", id, len(items), cfg.History.DatabasePath)
	return nil
}

func runSnapshots(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := history.New(cfg.History.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	snaps, err := store.ListSnapshots()
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		fmt.Println("No snapshots")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTAKEN\tITEMS\tNOTE")
	for _, s := range snaps {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", s.ID, humanize.Time(s.TakenAt), s.ItemCount, s.Note)
	}
	return w.Flush()
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger()
	client := gateway.New(cfg.Gateway.URL, cfg.Gateway.Timeout(), log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		cancel()
	}()

	err = client.StreamContainerLogs(ctx, args[0], func(line gateway.LogLine) {
		prefix := ""
		if line.Stream == "stderr" {
			prefix = "! "
		}
		if line.Time != "" {
			fmt.Printf("%s %s%s\n", line.Time, prefix, line.Data)
		} else {
			fmt.Printf("%s%s\n", prefix, line.Data)
		}
	})
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

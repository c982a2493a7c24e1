// Package main provides the entry point for the quarry CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/TFMV/quarry/cmd/quarry/config"
	"github.com/TFMV/quarry/pkg/infrastructure/metrics"
	"github.com/TFMV/quarry/pkg/infrastructure/pool"
	"github.com/TFMV/quarry/pkg/models"
	"github.com/TFMV/quarry/pkg/repositories"
	"github.com/TFMV/quarry/pkg/repositories/duckdb"
	"github.com/TFMV/quarry/pkg/results"
	"github.com/TFMV/quarry/pkg/safety"
	"github.com/TFMV/quarry/pkg/services"
)

var (
	// Version information (set by build flags)
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "quarry",
	Short: "Quarry SQL exploration engine",
	Long: `An SQL query exploration engine backed by DuckDB.

Quarry runs parameterized SQL templates, screens them against a
configurable blacklist, and summarizes numeric result columns.`,
}

var runCmd = &cobra.Command{
	Use:   "run [sql]",
	Short: "Run a SQL template and print the result",
	Long: `Run a SQL template with parameter substitution.

Placeholders use the $$name$$ form and are filled from --param flags.

Example:
  quarry run "SELECT * FROM users WHERE id = $$uid$$" --param uid=42
  quarry run --id 3 --param start=2025-01-01`,
	Args: cobra.MaximumNArgs(1),
	RunE: runQuery,
}

var checkCmd = &cobra.Command{
	Use:   "check [sql]",
	Short: "Screen a SQL template without keeping its output",
	Long: `Substitute parameters, screen the final SQL against the
blacklist, and verify that it executes.`,
	Args: cobra.MaximumNArgs(1),
	RunE: checkQuery,
}

var saveCmd = &cobra.Command{
	Use:   "save <sql>",
	Short: "Save a SQL template for later runs",
	Args:  cobra.ExactArgs(1),
	RunE:  saveQuery,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved queries",
	RunE:  listQueries,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent runs",
	RunE:  showHistory,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a saved query",
	Args:  cobra.ExactArgs(1),
	RunE:  deleteQuery,
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().String("database", ":memory:", "DuckDB database path")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Duration("query-timeout", 2*time.Minute, "query timeout")
	rootCmd.PersistentFlags().Bool("metrics", false, "enable Prometheus metrics")
	rootCmd.PersistentFlags().String("metrics-address", ":9090", "metrics server address")

	runCmd.Flags().Int64("id", 0, "saved query ID to run")
	runCmd.Flags().StringArrayP("param", "p", nil, "template parameter (name=value), repeatable")
	runCmd.Flags().Bool("force", false, "run even if the blacklist check fails")

	checkCmd.Flags().Int64("id", 0, "saved query ID to check")
	checkCmd.Flags().StringArrayP("param", "p", nil, "template parameter (name=value), repeatable")

	saveCmd.Flags().String("title", "", "query title (required)")
	saveCmd.Flags().String("description", "", "query description")

	historyCmd.Flags().Int64("id", 0, "restrict history to one saved query")
	historyCmd.Flags().Int("limit", 0, "maximum entries to show")

	rootCmd.AddCommand(runCmd, checkCmd, saveCmd, listCmd, historyCmd, deleteCmd)

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		panic(fmt.Errorf("failed to bind flags: %w", err))
	}
	viper.SetEnvPrefix("QUARRY")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Quarry SQL exploration engine\n")
			fmt.Printf("Version:    %s\n", version)
			fmt.Printf("Commit:     %s\n", commit)
			fmt.Printf("Build Date: %s\n", buildDate)
		},
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app wires the engine together for one CLI invocation.
type app struct {
	cfg           *config.Config
	logger        zerolog.Logger
	pool          pool.ConnectionPool
	store         repositories.QueryStore
	service       services.QueryService
	collector     metrics.Collector
	metricsServer *metrics.MetricsServer
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger := setupLogging(cfg.LogLevel)

	var collector metrics.Collector
	var metricsServer *metrics.MetricsServer
	if cfg.Metrics.Enabled {
		promCollector := metrics.NewPrometheusCollector()
		collector = promCollector
		metricsServer = metrics.NewMetricsServer(cfg.Metrics.Address, promCollector)
		go func() {
			logger.Info().Str("address", cfg.Metrics.Address).Msg("Starting metrics server")
			if err := metricsServer.Start(); err != nil {
				logger.Error().Err(err).Msg("Failed to start metrics server")
			}
		}()
	} else {
		collector = metrics.NewNoOpCollector()
	}

	poolCfg := pool.Config{
		DSN:                cfg.Database,
		MaxOpenConnections: cfg.ConnectionPool.MaxOpenConnections,
		MaxIdleConnections: cfg.ConnectionPool.MaxIdleConnections,
		ConnMaxLifetime:    cfg.ConnectionPool.ConnMaxLifetime,
		ConnMaxIdleTime:    cfg.ConnectionPool.ConnMaxIdleTime,
		HealthCheckPeriod:  cfg.ConnectionPool.HealthCheckPeriod,
	}
	connPool, err := pool.New(poolCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	store, err := duckdb.NewQueryStore(ctx, connPool, logger)
	if err != nil {
		connPool.Close()
		return nil, fmt.Errorf("failed to initialize query store: %w", err)
	}

	filter, err := safety.NewFilter(cfg.Blacklist)
	if err != nil {
		connPool.Close()
		return nil, fmt.Errorf("invalid blacklist: %w", err)
	}

	conn := duckdb.NewConnection(connPool, logger)
	repo := duckdb.NewQueryRepository(conn, logger)
	processor := results.NewProcessor(cfg.Transforms, logger, collector)

	service := services.NewQueryService(
		repo,
		store,
		filter,
		processor,
		&serviceLoggerAdapter{logger: logger.With().Str("component", "query_service").Logger()},
		&serviceMetricsAdapter{collector: collector},
	)

	return &app{
		cfg:           cfg,
		logger:        logger,
		pool:          connPool,
		store:         store,
		service:       service,
		collector:     collector,
		metricsServer: metricsServer,
	}, nil
}

// recordPoolStats publishes connection pool gauges after a run.
func (a *app) recordPoolStats() {
	stats := a.pool.Stats()
	a.collector.RecordGauge("pool_open_connections", float64(stats.OpenConnections))
	a.collector.RecordGauge("pool_in_use_connections", float64(stats.InUse))
	a.collector.RecordGauge("pool_idle_connections", float64(stats.Idle))
	a.collector.RecordGauge("pool_wait_count", float64(stats.WaitCount))
}

func (a *app) Close() {
	if a.metricsServer != nil {
		if err := a.metricsServer.Stop(); err != nil {
			a.logger.Error().Err(err).Msg("Error stopping metrics server")
		}
	}
	if err := a.pool.Close(); err != nil {
		a.logger.Error().Err(err).Msg("Error closing connection pool")
	}
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	id, _ := cmd.Flags().GetInt64("id")
	force, _ := cmd.Flags().GetBool("force")
	rawParams, _ := cmd.Flags().GetStringArray("param")

	params, err := parseParams(rawParams)
	if err != nil {
		return err
	}

	req := &models.RunRequest{
		Params:  params,
		Timeout: a.cfg.QueryTimeout,
	}
	switch {
	case id > 0:
		saved, err := a.store.Get(ctx, id)
		if err != nil {
			return err
		}
		req.Template = saved.SQL
	case len(args) == 1:
		req.Template = args[0]
	default:
		return fmt.Errorf("provide SQL text or --id")
	}

	verdict := a.service.CheckSafety(req)
	if !verdict.Passed {
		printMatches(os.Stderr, verdict)
		if !force {
			return fmt.Errorf("query failed the blacklist check (use --force to run anyway)")
		}
		fmt.Fprintln(os.Stderr, "running anyway (--force)")
	}

	var outcome *models.RunOutcome
	if id > 0 {
		outcome, err = a.service.RunSaved(ctx, id, params, a.cfg.QueryTimeout)
	} else {
		outcome, err = a.service.Run(ctx, req)
	}
	if err != nil {
		return err
	}
	a.recordPoolStats()

	for _, f := range outcome.ParamFindings {
		fmt.Fprintf(os.Stderr, "warning: parameter %q looks like SQL injection (fingerprint %s)\n",
			f.Param, f.Fingerprint)
	}

	printResult(outcome)
	return nil
}

func checkQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	id, _ := cmd.Flags().GetInt64("id")
	rawParams, _ := cmd.Flags().GetStringArray("param")
	params, err := parseParams(rawParams)
	if err != nil {
		return err
	}

	req := &models.RunRequest{Params: params, Timeout: a.cfg.QueryTimeout}
	switch {
	case id > 0:
		saved, err := a.store.Get(ctx, id)
		if err != nil {
			return err
		}
		req.Template = saved.SQL
	case len(args) == 1:
		req.Template = args[0]
	default:
		return fmt.Errorf("provide SQL text or --id")
	}

	finalSQL := a.service.FinalSQL(req)
	fmt.Printf("final SQL: %s\n", finalSQL)

	classifier := safety.NewClassifier()
	fmt.Printf("statement: %s", classifier.Classify(finalSQL))
	if classifier.IsReadOnly(finalSQL) {
		fmt.Print(" (read-only)")
	}
	fmt.Println()

	verdict := a.service.CheckSafety(req)
	if verdict.Passed {
		fmt.Println("blacklist: passed")
	} else {
		printMatches(os.Stdout, verdict)
	}

	if err := a.service.TryRun(ctx, req); err != nil {
		fmt.Printf("execution: invalid (%v)\n", err)
		return fmt.Errorf("query does not execute")
	}
	fmt.Println("execution: valid")

	if !verdict.Passed {
		return fmt.Errorf("query failed the blacklist check")
	}
	return nil
}

func saveQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	title, _ := cmd.Flags().GetString("title")
	description, _ := cmd.Flags().GetString("description")

	q := &models.SavedQuery{
		Title:       title,
		SQL:         args[0],
		Description: description,
	}
	if err := a.store.Save(ctx, q); err != nil {
		return err
	}

	fmt.Printf("saved query %d: %s\n", q.ID, q.Title)
	return nil
}

func listQueries(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	queries, err := a.store.List(ctx)
	if err != nil {
		return err
	}
	if len(queries) == 0 {
		fmt.Println("no saved queries")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tCREATED\tLAST RUN")
	for _, q := range queries {
		lastRun := "-"
		if !q.LastRunAt.IsZero() {
			lastRun = q.LastRunAt.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", q.ID, q.Title, q.CreatedAt.Format(time.RFC3339), lastRun)
	}
	return w.Flush()
}

func showHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	id, _ := cmd.Flags().GetInt64("id")
	limit, _ := cmd.Flags().GetInt("limit")
	if limit <= 0 {
		limit = a.cfg.HistoryLimit
	}

	entries, err := a.store.History(ctx, id, limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN AT\tQUERY\tDURATION\tSQL")
	for _, e := range entries {
		queryRef := "playground"
		if !e.Playground {
			queryRef = strconv.FormatInt(e.QueryID, 10)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			e.RunAt.Format(time.RFC3339), queryRef, e.Duration, truncate(e.FinalSQL, 60))
	}
	return w.Flush()
}

func deleteQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid query ID: %s", args[0])
	}
	if err := a.store.Delete(ctx, id); err != nil {
		return err
	}

	fmt.Printf("deleted query %d\n", id)
	return nil
}

func loadConfig() (*config.Config, error) {
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := config.DefaultConfig()
	cfg.Database = viper.GetString("database")
	cfg.LogLevel = viper.GetString("log-level")
	cfg.QueryTimeout = viper.GetDuration("query-timeout")
	cfg.Metrics.Enabled = viper.GetBool("metrics")
	cfg.Metrics.Address = viper.GetString("metrics-address")

	if viper.IsSet("blacklist") {
		if err := viper.UnmarshalKey("blacklist", &cfg.Blacklist); err != nil {
			return nil, fmt.Errorf("invalid blacklist configuration: %w", err)
		}
	}
	if viper.IsSet("transforms") {
		if err := viper.UnmarshalKey("transforms", &cfg.Transforms); err != nil {
			return nil, fmt.Errorf("invalid transforms configuration: %w", err)
		}
	}
	if viper.IsSet("history_limit") {
		cfg.HistoryLimit = viper.GetInt("history_limit")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setupLogging(level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.DurationFieldUnit = time.Millisecond

	var logLevel zerolog.Level
	switch level {
	case "debug":
		logLevel = zerolog.DebugLevel
	case "info":
		logLevel = zerolog.InfoLevel
	case "warn":
		logLevel = zerolog.WarnLevel
	case "error":
		logLevel = zerolog.ErrorLevel
	default:
		logLevel = zerolog.InfoLevel
	}

	logger := zerolog.New(os.Stderr).
		Level(logLevel).
		With().
		Timestamp().
		Str("service", "quarry")

	if logLevel == zerolog.DebugLevel {
		logger = logger.Caller()
	}

	return logger.Logger()
}

// parseParams turns repeated name=value flags into template parameters.
// Values that parse as integers or floats are passed through as
// numbers so substitution renders them unquoted.
func parseParams(raw []string) (map[string]interface{}, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	params := make(map[string]interface{}, len(raw))
	for _, pair := range raw {
		name, value, found := strings.Cut(pair, "=")
		if !found || name == "" {
			return nil, fmt.Errorf("invalid parameter %q, expected name=value", pair)
		}
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			params[name] = i
			continue
		}
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			params[name] = f
			continue
		}
		params[name] = value
	}
	return params, nil
}

func printMatches(w *os.File, verdict safety.Verdict) {
	for _, m := range verdict.Matches {
		fmt.Fprintf(w, "blacklist match %q: %s (%s)\n", m.Label, m.Fragment, m.Reason)
	}
}

func printResult(outcome *models.RunOutcome) {
	rs := outcome.Result

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(rs.Headers, "\t"))
	for _, row := range rs.Rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = formatCell(cell)
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	w.Flush()

	fmt.Printf("\n%d row(s) in %s (processed in %s)\n",
		len(rs.Rows), outcome.ExecutionTime, outcome.ProcessTime)

	if len(rs.Summaries) == 0 {
		return
	}
	fmt.Println()
	sw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(sw, "COLUMN\t"+strings.Join(results.StatLabels(), "\t"))
	for _, summary := range rs.Summaries {
		cells := []string{summary.Name}
		for _, label := range results.StatLabels() {
			cells = append(cells, strconv.FormatFloat(summary.Stats[label], 'f', -1, 64))
		}
		fmt.Fprintln(sw, strings.Join(cells, "\t"))
	}
	sw.Flush()
}

func formatCell(cell interface{}) string {
	if cell == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", cell)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// serviceLoggerAdapter adapts zerolog.Logger to services.Logger.
type serviceLoggerAdapter struct {
	logger zerolog.Logger
}

func (l *serviceLoggerAdapter) Debug(msg string, keysAndValues ...interface{}) {
	l.emit(l.logger.Debug(), msg, keysAndValues)
}

func (l *serviceLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	l.emit(l.logger.Info(), msg, keysAndValues)
}

func (l *serviceLoggerAdapter) Warn(msg string, keysAndValues ...interface{}) {
	l.emit(l.logger.Warn(), msg, keysAndValues)
}

func (l *serviceLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	l.emit(l.logger.Error(), msg, keysAndValues)
}

func (l *serviceLoggerAdapter) emit(event *zerolog.Event, msg string, keysAndValues []interface{}) {
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key := fmt.Sprintf("%v", keysAndValues[i])
		event = event.Interface(key, keysAndValues[i+1])
	}
	event.Msg(msg)
}

// serviceMetricsAdapter adapts metrics.Collector to services.MetricsCollector.
type serviceMetricsAdapter struct {
	collector metrics.Collector
}

func (m *serviceMetricsAdapter) IncrementCounter(name string, labels ...string) {
	m.collector.IncrementCounter(name, labels...)
}

func (m *serviceMetricsAdapter) RecordHistogram(name string, value float64, labels ...string) {
	m.collector.RecordHistogram(name, value, labels...)
}

func (m *serviceMetricsAdapter) RecordGauge(name string, value float64, labels ...string) {
	m.collector.RecordGauge(name, value, labels...)
}

func (m *serviceMetricsAdapter) StartTimer(name string) services.Timer {
	return &serviceTimerAdapter{timer: m.collector.StartTimer(name)}
}

// serviceTimerAdapter adapts metrics.Timer to services.Timer.
type serviceTimerAdapter struct {
	timer metrics.Timer
}

func (t *serviceTimerAdapter) Stop() time.Duration {
	ms := t.timer.Stop()
	return time.Duration(ms * float64(time.Millisecond))
}

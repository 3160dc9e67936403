package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"escrowtrace/config"
	"escrowtrace/internal/analyzer"
	inputredis "escrowtrace/internal/input/redis"
	"escrowtrace/internal/logger"
	"escrowtrace/internal/metrics"
	"escrowtrace/internal/output/reportclickhouse"
	"escrowtrace/internal/output/reporthttp"
	"escrowtrace/internal/output/reportjson"
	"escrowtrace/internal/pipeline"
	"escrowtrace/internal/reportstore"
	"escrowtrace/internal/rules"
	"escrowtrace/internal/transform/escrowlog"
	"escrowtrace/pkg/models"
)

func findConfigFile(configArg string) string {
	if configArg != "" {
		path := configArg
		if _, err := os.Stat(path); err == nil {
			return path
		}
		log.Printf("Warning: config file not found at %s, trying default locations", path)
	}

	if _, err := os.Stat("escrowtrace.yml"); err == nil {
		return "escrowtrace.yml"
	}

	exePath, err := os.Executable()
	if err == nil {
		exeDir := filepath.Dir(exePath)
		path := filepath.Join(exeDir, "escrowtrace.yml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return "escrowtrace.yml"
}

func applyDefaults(cfg *config.Config) {
	if cfg.EscrowTrace.Input.Redis.Addr == "" {
		cfg.EscrowTrace.Input.Redis.Addr = "127.0.0.1:6379"
	}
	if cfg.EscrowTrace.Input.Redis.Queue == "" {
		cfg.EscrowTrace.Input.Redis.Queue = "escrowtrace:sessions"
	}
	if cfg.EscrowTrace.Input.Redis.KeyPrefix == "" {
		cfg.EscrowTrace.Input.Redis.KeyPrefix = "escrowtrace:session:"
	}
	if cfg.EscrowTrace.Input.Redis.BlockTimeout == 0 {
		cfg.EscrowTrace.Input.Redis.BlockTimeout = 5 * time.Second
	}

	if cfg.EscrowTrace.Pipeline.Workers <= 0 {
		cfg.EscrowTrace.Pipeline.Workers = 4
	}
	if cfg.EscrowTrace.Pipeline.BatchSize <= 0 {
		cfg.EscrowTrace.Pipeline.BatchSize = 50
	}
	if cfg.EscrowTrace.Pipeline.FlushInterval <= 0 {
		cfg.EscrowTrace.Pipeline.FlushInterval = 2 * time.Second
	}

	if cfg.EscrowTrace.Output.Mode == "" {
		cfg.EscrowTrace.Output.Mode = "file"
	}
	if cfg.EscrowTrace.Output.File.Path == "" {
		cfg.EscrowTrace.Output.File.Path = "output/reports.jsonl"
	}
	if cfg.EscrowTrace.Output.ClickHouse.Database == "" {
		cfg.EscrowTrace.Output.ClickHouse.Database = "escrowtrace"
	}
	if cfg.EscrowTrace.Output.ClickHouse.Table == "" {
		cfg.EscrowTrace.Output.ClickHouse.Table = "session_reports"
	}

	if cfg.EscrowTrace.Store.Redis.Addr == "" {
		cfg.EscrowTrace.Store.Redis.Addr = cfg.EscrowTrace.Input.Redis.Addr
	}
	if cfg.EscrowTrace.Metrics.Addr == "" {
		cfg.EscrowTrace.Metrics.Addr = "127.0.0.1:9109"
	}

	if cfg.EscrowTrace.Logging.Level == "" {
		cfg.EscrowTrace.Logging.Level = "info"
	}
}

func loadEngine(path string) (rules.Engine, error) {
	engine, stats, err := rules.NewSigmaEngine(path)
	if err != nil {
		return nil, err
	}
	logger.Infof("Sigma rules loaded: loaded=%d skipped_complex=%d skipped_datasource=%d skipped_invalid=%d files=%d",
		stats.Loaded,
		stats.SkippedComplex,
		stats.SkippedDatasource,
		stats.SkippedInvalid,
		stats.TotalFiles,
	)
	if stats.Loaded == 0 {
		logger.Warnf("No compatible Sigma rules loaded; rule tagging is effectively disabled")
	}
	return engine, nil
}

func loadSessionBytes(input, redisKey, configArg string) ([]byte, string, error) {
	if redisKey != "" {
		cfg, err := config.LoadConfig(findConfigFile(configArg))
		if err != nil {
			return nil, "", fmt.Errorf("load config: %w", err)
		}
		applyDefaults(cfg)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		consumer, err := inputredis.NewConsumer(ctx, inputredis.Config{
			Addr:         cfg.EscrowTrace.Input.Redis.Addr,
			Password:     cfg.EscrowTrace.Input.Redis.Password,
			DB:           cfg.EscrowTrace.Input.Redis.DB,
			Queue:        cfg.EscrowTrace.Input.Redis.Queue,
			KeyPrefix:    cfg.EscrowTrace.Input.Redis.KeyPrefix,
			BlockTimeout: cfg.EscrowTrace.Input.Redis.BlockTimeout,
		})
		if err != nil {
			return nil, "", err
		}
		defer consumer.Close()

		data, err := consumer.FetchSession(ctx, redisKey)
		if err != nil {
			return nil, "", err
		}
		return data, "redis:" + redisKey, nil
	}

	data, err := os.ReadFile(input)
	if err != nil {
		return nil, "", fmt.Errorf("read session log: %w", err)
	}
	return data, input, nil
}

func parseSessionBytes(data []byte, skipMalformed bool) (*models.Session, []int, error) {
	if skipMalformed {
		return escrowlog.ParseSessionSkip(data)
	}
	session, err := escrowlog.ParseSession(data)
	return session, nil, err
}

func writeReportJSON(path string, v interface{}) error {
	var out *os.File
	if path == "" || path == "-" {
		out = os.Stdout
	} else {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}
		}
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

func runAnalyze(args []string) int {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	input := fs.String("input", "", "Session log JSON file")
	redisKey := fs.String("redis-key", "", "Fetch the session from Redis by trace id instead of a file")
	configArg := fs.String("config", "", "Config file path (used with -redis-key)")
	output := fs.String("output", "", "Report output path (default stdout)")
	rulesPath := fs.String("rules", "", "Sigma rule file or directory for event tagging")
	skipMalformed := fs.Bool("skip-malformed", false, "Skip malformed events instead of failing")
	timelineOnly := fs.Bool("timeline-only", false, "Include only the timeline in the report")
	rpcOnly := fs.Bool("rpc-only", false, "Include only RPC statistics in the report")
	snapshotsOnly := fs.Bool("snapshots-only", false, "Include only snapshot lineages in the report")
	errorsOnly := fs.Bool("errors-only", false, "Include only anomaly records in the report")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *input == "" && *redisKey == "" {
		fmt.Fprintln(os.Stderr, "analyze requires -input or -redis-key")
		return 2
	}

	data, source, err := loadSessionBytes(*input, *redisKey, *configArg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load session: %v\n", err)
		return 1
	}

	session, skipped, err := parseSessionBytes(data, *skipMalformed)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse session: %v\n", err)
		return 1
	}

	opts := analyzer.ReportOptions{}
	if *timelineOnly || *rpcOnly || *snapshotsOnly || *errorsOnly {
		opts = analyzer.ReportOptions{
			SkipTimeline:  !*timelineOnly,
			SkipRPCStats:  !*rpcOnly,
			SkipLineages:  !*snapshotsOnly,
			SkipAnomalies: !*errorsOnly,
		}
	}

	report := analyzer.BuildReport(session, opts)
	report.MalformedEvents = skipped
	report.GeneratedAt = time.Now().UTC()

	if strings.TrimSpace(*rulesPath) != "" {
		engine, err := loadEngine(*rulesPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load rules: %v\n", err)
			return 1
		}
		report.RuleMatches = rules.EvaluateSession(session, engine)
	}

	if err := writeReportJSON(*output, report); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
		return 1
	}

	fmt.Fprintf(os.Stderr, "analyzed source=%s events=%d skipped=%d severity=%s\n", source, session.Len(), len(skipped), report.Severity)
	return 0
}

func runCompare(args []string) int {
	fs := flag.NewFlagSet("compare", flag.ContinueOnError)
	output := fs.String("output", "", "Comparison output path (default stdout)")
	skipMalformed := fs.Bool("skip-malformed", false, "Skip malformed events instead of failing")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "compare requires exactly two session log files")
		return 2
	}

	sessions := make([]*models.Session, 2)
	for i, path := range fs.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to read %s: %v\n", path, err)
			return 1
		}
		session, _, err := parseSessionBytes(data, *skipMalformed)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to parse %s: %v\n", path, err)
			return 1
		}
		sessions[i] = session
	}

	result := analyzer.CompareSessions(sessions[0], sessions[1])
	if err := writeReportJSON(*output, result); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write comparison: %v\n", err)
		return 1
	}

	fmt.Fprintf(os.Stderr, "compared %s (%d events) vs %s (%d events) identical=%v\n",
		result.FirstTraceID, result.FirstCount, result.SecondTraceID, result.SecondCount, result.Identical)
	return 0
}

func runWatch(args []string) {
	configArg := ""
	if len(args) > 0 {
		configArg = args[0]
	}

	configPath := findConfigFile(configArg)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyDefaults(cfg)

	if err := logger.Init(cfg.EscrowTrace.Logging.Enabled, cfg.EscrowTrace.Logging.Level, cfg.EscrowTrace.Logging.File, cfg.EscrowTrace.Logging.Console); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	logger.Infof("EscrowTrace starting")
	logger.Infof("Config loaded from: %s", configPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumer, err := inputredis.NewConsumer(ctx, inputredis.Config{
		Addr:         cfg.EscrowTrace.Input.Redis.Addr,
		Password:     cfg.EscrowTrace.Input.Redis.Password,
		DB:           cfg.EscrowTrace.Input.Redis.DB,
		Queue:        cfg.EscrowTrace.Input.Redis.Queue,
		KeyPrefix:    cfg.EscrowTrace.Input.Redis.KeyPrefix,
		BlockTimeout: cfg.EscrowTrace.Input.Redis.BlockTimeout,
	})
	if err != nil {
		logger.Errorf("Failed to create Redis consumer: %v", err)
		log.Fatalf("Failed to create Redis consumer: %v", err)
	}

	var engine rules.Engine
	if cfg.EscrowTrace.Rules.Enabled {
		if strings.TrimSpace(cfg.EscrowTrace.Rules.Path) == "" {
			logger.Warnf("Rules enabled but rules.path is empty; rule tagging disabled")
		} else {
			engine, err = loadEngine(cfg.EscrowTrace.Rules.Path)
			if err != nil {
				logger.Errorf("Failed to load Sigma rules from %s: %v", cfg.EscrowTrace.Rules.Path, err)
				log.Fatalf("Failed to load Sigma rules: %v", err)
			}
		}
	}

	var writer pipeline.ReportWriter
	switch cfg.EscrowTrace.Output.Mode {
	case "file":
		w, err := reportjson.NewWriter(cfg.EscrowTrace.Output.File.Path)
		if err != nil {
			logger.Errorf("Failed to create report file writer: %v", err)
			log.Fatalf("Failed to create report file writer: %v", err)
		}
		writer = w
		logger.Infof("Output mode: file (%s)", cfg.EscrowTrace.Output.File.Path)
	case "http":
		w, err := reporthttp.NewWriter(reporthttp.Config{
			URL:     cfg.EscrowTrace.Output.HTTP.URL,
			Timeout: cfg.EscrowTrace.Output.HTTP.Timeout,
			Headers: cfg.EscrowTrace.Output.HTTP.Headers,
		})
		if err != nil {
			logger.Errorf("Failed to create report HTTP writer: %v", err)
			log.Fatalf("Failed to create report HTTP writer: %v", err)
		}
		writer = w
		logger.Infof("Output mode: http (%s)", cfg.EscrowTrace.Output.HTTP.URL)
	case "clickhouse":
		w, err := reportclickhouse.NewWriter(reportclickhouse.Config{
			URL:      cfg.EscrowTrace.Output.ClickHouse.URL,
			Database: cfg.EscrowTrace.Output.ClickHouse.Database,
			Table:    cfg.EscrowTrace.Output.ClickHouse.Table,
			Username: cfg.EscrowTrace.Output.ClickHouse.Username,
			Password: cfg.EscrowTrace.Output.ClickHouse.Password,
			Timeout:  cfg.EscrowTrace.Output.ClickHouse.Timeout,
			Headers:  cfg.EscrowTrace.Output.ClickHouse.Headers,
		})
		if err != nil {
			logger.Errorf("Failed to create report ClickHouse writer: %v", err)
			log.Fatalf("Failed to create report ClickHouse writer: %v", err)
		}
		writer = w
		logger.Infof("Output mode: clickhouse (%s/%s.%s)", cfg.EscrowTrace.Output.ClickHouse.URL, cfg.EscrowTrace.Output.ClickHouse.Database, cfg.EscrowTrace.Output.ClickHouse.Table)
	default:
		log.Fatalf("Unknown output mode: %s", cfg.EscrowTrace.Output.Mode)
	}

	var store *reportstore.RedisStore
	if cfg.EscrowTrace.Store.Enabled {
		store, err = reportstore.NewRedisStore(ctx, reportstore.Config{
			Addr:      cfg.EscrowTrace.Store.Redis.Addr,
			Password:  cfg.EscrowTrace.Store.Redis.Password,
			DB:        cfg.EscrowTrace.Store.Redis.DB,
			KeyPrefix: cfg.EscrowTrace.Store.KeyPrefix,
		})
		if err != nil {
			logger.Errorf("Failed to create report store: %v", err)
			log.Fatalf("Failed to create report store: %v", err)
		}
		logger.Infof("Report store enabled (%s)", cfg.EscrowTrace.Store.Redis.Addr)
	}

	if cfg.EscrowTrace.Metrics.Enabled {
		go func() {
			logger.Infof("Metrics listening on %s", cfg.EscrowTrace.Metrics.Addr)
			if err := metrics.Serve(cfg.EscrowTrace.Metrics.Addr); err != nil {
				logger.Errorf("Metrics server error: %v", err)
			}
		}()
	}

	pipe := pipeline.NewSessionPipeline(
		consumer,
		engine,
		writer,
		store,
		cfg.EscrowTrace.Pipeline.Workers,
		cfg.EscrowTrace.Pipeline.BatchSize,
		cfg.EscrowTrace.Pipeline.FlushInterval,
		cfg.EscrowTrace.Pipeline.SkipMalformed,
	)

	go func() {
		if err := pipe.Run(ctx); err != nil && err != context.Canceled {
			logger.Errorf("Pipeline error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Infof("Shutting down")
	cancel()
	time.Sleep(1 * time.Second)

	if err := pipe.Close(); err != nil {
		logger.Errorf("Error closing pipeline: %v", err)
	}

	logger.Infof("EscrowTrace stopped")
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: escrowtrace <analyze|compare|watch> [flags]")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "analyze":
		os.Exit(runAnalyze(os.Args[2:]))
	case "compare":
		os.Exit(runCompare(os.Args[2:]))
	case "watch":
		runWatch(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

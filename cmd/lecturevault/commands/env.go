package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"lecturevault/internal/components/chrono"
	"lecturevault/internal/components/telemetry"
	"lecturevault/internal/course"
	"lecturevault/internal/download"
	"lecturevault/internal/ledger"
	"lecturevault/internal/notebook"
	"lecturevault/internal/pipeline"
	"lecturevault/internal/udemy"
	"lecturevault/lib/util/serviceutil"

	"github.com/spf13/cobra"
)

// environment is everything a command needs, built once from flags and config.
type environment struct {
	cfg    Config
	layout Layout
	tel    telemetry.API

	otel     telemetry.Otel
	closeLog func() error
}

func setupEnv(cmd *cobra.Command, workers int) *environment {
	var overrides flagOverrides
	if cmd.Flags().Changed("base-folder") {
		overrides.baseFolder = *baseFolder
	}
	if cmd.Flags().Changed("auth-file") {
		overrides.authFile = *authFile
	}
	overrides.workers = workers

	cfg, err := loadConfig(*configFile, overrides)
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	layout, err := resolveLayout(cfg.BaseFolder)
	if err != nil {
		serviceutil.Fatal("failed to resolve base folder", err)
	}
	err = os.MkdirAll(layout.Base, 0755)
	if err != nil {
		serviceutil.Fatal("failed to create base folder", err)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger, closeLog := telemetry.NewLogger(layout.Log, level)
	slog.SetDefault(logger)

	otel, err := telemetry.SetupFromEnv(cmd.Context(), "lecturevault")
	if err != nil {
		slog.Warn("failed to set up opentelemetry, continuing without it", "err", err)
	}

	return &environment{
		cfg:      cfg,
		layout:   layout,
		tel:      telemetry.NewMeteredAPI(telemetry.NewSlogAPI(logger)),
		otel:     otel,
		closeLog: closeLog,
	}
}

func (e *environment) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := e.otel.Shutdown(ctx)
	if err != nil {
		slog.Warn("failed to flush telemetry", "err", err)
	}
	_ = e.closeLog()
}

// client loads the credentials, a missing or invalid credential file aborts before any request
// is made.
func (e *environment) client() *udemy.Client {
	creds, err := udemy.LoadCredentials(e.cfg.AuthFile)
	if err != nil {
		serviceutil.Fatal("failed to load credentials", err)
	}

	var dump telemetry.MessageOutput
	if *dumpHttp != "" {
		output, err := telemetry.NewFilesystemOutput(*dumpHttp, e.tel)
		if err != nil {
			serviceutil.Fatal("failed to create http dump directory", err)
		}
		dump = output
	}

	client, err := udemy.NewClient(udemy.ClientOptions{
		BaseUrl:           e.cfg.BaseUrl,
		Credentials:       creds,
		CacheUserHint:     e.cfg.CacheUserHint,
		RequestsPerSecond: e.cfg.RequestsPerSecond,
		CloudflareBypass:  e.cfg.CloudflareBypass,
		DumpOutput:        dump,
	}, e.tel)
	if err != nil {
		serviceutil.Fatal("failed to create api client", err)
	}
	return client
}

func (e *environment) ledger() *ledger.Ledger {
	l, err := ledger.Open(e.layout.Ledger, chrono.NewStandardImpl(), e.tel)
	if err != nil {
		serviceutil.Fatal("failed to open ledger", err)
	}
	return l
}

func (e *environment) assembler() *notebook.Assembler {
	return notebook.NewAssembler(notebook.Options{
		Root:    e.layout.Notebooks,
		Workers: e.cfg.Workers,
	}, e.tel)
}

func (e *environment) downloader(api download.AssetAPI, known download.KnownPaths) *download.Downloader {
	return download.NewDownloader(api, download.Options{
		Root:         e.layout.Downloads,
		Workers:      e.cfg.Workers,
		Retry:        e.cfg.Retry.policy(),
		Known:        known,
		FetchTimeout: time.Duration(e.cfg.FetchTimeoutSec) * time.Second,
		Progress:     logProgress,
	}, e.tel)
}

// offlinePipeline can only assemble rows that are already resolved.
func (e *environment) offlinePipeline() pipeline.Pipeline {
	return pipeline.New(pipeline.Options{
		Assembler: e.assembler(),
		MaxErrors: e.cfg.MaxErrors,
	}, e.tel)
}

func logProgress(row course.Row) {
	switch {
	case row.Err != nil:
		slog.Warn("failed", "asset", row.String(), "err", row.Err.Error())
	case row.AlreadyDownloaded:
		slog.Info("exists", "asset", row.String(), "path", row.LocalPath)
	default:
		slog.Info("downloaded", "asset", row.String(), "path", row.LocalPath)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

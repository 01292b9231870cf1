// Command aifactory runs the work item dispatch service: it polls the
// configured tracker projects, assigns items to persona instances, and serves
// the monitoring API.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"aifactory/pkg/config"
	"aifactory/pkg/dispatch"
	"aifactory/pkg/eventlog"
	"aifactory/pkg/logx"
	"aifactory/pkg/metrics"
	"aifactory/pkg/persistence"
	"aifactory/pkg/persona"
	"aifactory/pkg/processor"
	"aifactory/pkg/tracker"
	"aifactory/pkg/webui"
)

// Version information - set via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to factory.yaml (defaults apply when omitted)")
		listenAddr  = flag.String("listen", "", "HTTP listen address (overrides config)")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("aifactory %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
		os.Exit(0)
	}

	os.Exit(run(*configPath, *listenAddr))
}

// run contains the main application logic and returns an exit code, so
// defers execute before the process exits.
func run(configPath, listenAddr string) int {
	logger := logx.NewLogger("main")

	if configPath == "" {
		if _, err := os.Stat(config.DefaultConfigFilename); err == nil {
			configPath = config.DefaultConfigFilename
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}
	config.SetConfig(cfg)

	if err := persistence.Initialize(cfg.DatabasePath); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize database: %v\n", err)
		return 1
	}
	defer func() {
		if closeErr := persistence.Close(); closeErr != nil {
			logger.Warn("Failed to close database: %v", closeErr)
		}
	}()

	events, err := eventlog.NewWriter(cfg.EventLogDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize event log: %v\n", err)
		return 1
	}
	defer func() {
		if closeErr := events.Close(); closeErr != nil {
			logger.Warn("Failed to close event log: %v", closeErr)
		}
	}()

	// The settings table can override the configured project list without a
	// config edit, matching how retention windows are handled.
	if raw, settingErr := persistence.Ops().GetSetting(persistence.SettingEnabledProjects, ""); settingErr == nil && raw != "" {
		cfg.Projects = splitProjects(raw)
		logger.Info("Enabled projects overridden from settings: %v", cfg.Projects)
	}

	trackerClient, err := buildTracker(cfg, ".", logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build tracker client: %v\n", err)
		return 1
	}

	registry := persona.NewRegistry()
	dispatcher := dispatch.NewDispatcher(cfg, registry, trackerClient, processor.NewSimulated(cfg.WorkDuration()))
	dispatcher.SetEventLog(events)
	dispatcher.SetRecorder(metrics.NewPrometheusRecorder(prometheus.DefaultRegisterer))

	if err := buildRoster(dispatcher, registry, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build persona roster: %v\n", err)
		return 1
	}

	// Seed the dedup set so items finished in earlier runs are not
	// re-enqueued from the tracker.
	refs, err := persistence.Ops().CompletedRefs()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load completed item refs: %v\n", err)
		return 1
	}
	dispatcher.Queue().SeedCompleted(refs)
	logger.Info("Seeded %d completed refs from previous runs", len(refs))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := dispatcher.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start dispatcher: %v\n", err)
		return 1
	}

	go logMaintenanceLoop(ctx, cfg, logger)

	apiServer := webui.NewServer(dispatcher)
	if cfg.PrometheusURL != "" {
		queryService, qErr := metrics.NewQueryService(cfg.PrometheusURL)
		if qErr != nil {
			fmt.Fprintf(os.Stderr, "Failed to create Prometheus query service: %v\n", qErr)
			return 1
		}
		apiServer.SetMetricsQuery(queryService)
		logger.Info("Persona throughput queries backed by %s", cfg.PrometheusURL)
	}

	mux := http.NewServeMux()
	apiServer.RegisterRoutes(mux)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		logger.Info("Serving API on %s", cfg.ListenAddr)
		if serveErr := httpServer.ListenAndServe(); serveErr != nil && serveErr != http.ErrServerClosed {
			serverErrCh <- serveErr
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("Received %v, shutting down", sig)
	case serveErr := <-serverErrCh:
		logger.Error("HTTP server failed: %v", serveErr)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown failed: %v", err)
	}
	if err := dispatcher.Stop(shutdownCtx); err != nil {
		logger.Warn("Dispatcher stop failed: %v", err)
		return 1
	}

	logger.Info("Shutdown complete")
	return 0
}

// buildTracker selects the tracker client. A configured tracker_url gets the
// REST client authenticated with the tracker PAT from the secrets store;
// without one the in-memory tracker backs the process.
func buildTracker(cfg *config.Config, baseDir string, logger *logx.Logger) (tracker.Client, error) {
	if err := loadSecrets(baseDir, logger); err != nil {
		return nil, err
	}

	if cfg.TrackerURL == "" {
		logger.Info("No tracker_url configured, using in-memory tracker")
		return tracker.NewStatic(), nil
	}

	token, err := config.GetSecret(config.SecretTrackerToken)
	if err != nil {
		return nil, fmt.Errorf("tracker_url is set but no %s secret is available: %w", config.SecretTrackerToken, err)
	}
	logger.Info("Using tracker at %s", cfg.TrackerURL)
	return tracker.NewREST(cfg.TrackerURL, token), nil
}

// loadSecrets decrypts the secrets file when one exists under baseDir. The
// password comes from FACTORY_SECRETS_PASSWORD; secrets absent from the file
// still resolve from the environment through config.GetSecret.
func loadSecrets(baseDir string, logger *logx.Logger) error {
	if !config.SecretsFileExists(baseDir) {
		return nil
	}

	password := os.Getenv("FACTORY_SECRETS_PASSWORD")
	if password == "" {
		return fmt.Errorf("secrets file exists but FACTORY_SECRETS_PASSWORD is not set")
	}

	secrets, err := config.DecryptSecretsFile(baseDir, password)
	if err != nil {
		return fmt.Errorf("failed to decrypt secrets file: %w", err)
	}
	config.SetDecryptedSecrets(secrets)
	logger.Info("Loaded %d secrets from encrypted store", len(secrets))
	return nil
}

// buildRoster creates the configured persona instances and registers them
// with the dispatcher's pool.
func buildRoster(dispatcher *dispatch.Dispatcher, registry *persona.Registry, cfg *config.Config) error {
	for _, spec := range cfg.Personas {
		inst, err := persona.NewInstance(registry, spec.Type, spec.DisplayName, spec.ExtraSkills)
		if err != nil {
			return fmt.Errorf("persona %q: %w", spec.Type, err)
		}
		dispatcher.Pool().Add(inst)
	}

	total, _ := dispatcher.Pool().Counts()
	logx.Infof("Persona pool ready with %d instances", total)
	return nil
}

// logMaintenanceLoop deletes aged log rows once a day. Retention windows can
// be overridden through the settings table without a restart.
func logMaintenanceLoop(ctx context.Context, cfg *config.Config, logger *logx.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	cleanup := func() {
		systemDays := settingDays(persistence.SettingLogRetentionDays, cfg.Retention.SystemLogDays)
		personaDays := settingDays(persistence.SettingPersonaLogRetentionDays, cfg.Retention.PersonaLogDays)

		systemDeleted, personaDeleted, err := persistence.Ops().DeleteOldLogs(systemDays, personaDays)
		if err != nil {
			logger.Warn("Log cleanup failed: %v", err)
			return
		}
		if systemDeleted+personaDeleted > 0 {
			logger.Info("Log cleanup removed %d system and %d persona rows", systemDeleted, personaDeleted)
		}
	}

	cleanup()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cleanup()
		}
	}
}

func splitProjects(raw string) []string {
	parts := strings.Split(raw, ",")
	projects := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			projects = append(projects, trimmed)
		}
	}
	return projects
}

func settingDays(key string, fallback int) int {
	raw, err := persistence.Ops().GetSetting(key, "")
	if err != nil || raw == "" {
		return fallback
	}
	days := 0
	if _, err := fmt.Sscanf(raw, "%d", &days); err != nil || days <= 0 {
		return fallback
	}
	return days
}

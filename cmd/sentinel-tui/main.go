package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"neurosentinel/internal/clock"
	"neurosentinel/internal/ingest"
	"neurosentinel/internal/logging"
	"neurosentinel/internal/topology"
)

type appConfig struct {
	url          string
	topologyPath string
	window       int
	frameMS      int
	logFile      string
	logLevel     string
	altScreen    bool
	offline      bool
	seed         int64
	incidentNode string
}

func parseFlags(args []string, stderr io.Writer) (appConfig, error) {
	cfg := appConfig{}
	flagSet := pflag.NewFlagSet("sentinel-tui", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&cfg.url, "url", envOr("SENTINEL_SOCKET_URL", ingest.DefaultURL), "Agent backend websocket URL")
	flagSet.StringVar(&cfg.topologyPath, "topology", envOr("SENTINEL_TOPOLOGY", ""), "YAML lattice definition (default: built-in layout)")
	flagSet.IntVar(&cfg.window, "window", envOrInt("SENTINEL_WINDOW", 100), "Number of thoughts kept in the log view")
	flagSet.IntVar(&cfg.frameMS, "frame-ms", envOrInt("SENTINEL_FRAME_MS", 80), "Render tick interval in milliseconds")
	flagSet.StringVar(&cfg.logFile, "log-file", envOr("SENTINEL_LOG_FILE", filepath.Join(os.TempDir(), "sentinel-tui.log")), "Structured log destination")
	flagSet.StringVar(&cfg.logLevel, "log-level", envOr("SENTINEL_LOG_LEVEL", "info"), "Log level (debug|info|warn|error)")
	flagSet.BoolVar(&cfg.altScreen, "alt-screen", envOrBool("SENTINEL_ALT_SCREEN", true), "Use alternate screen buffer")
	flagSet.BoolVar(&cfg.offline, "offline", envOrBool("SENTINEL_OFFLINE", false), "Skip the backend and run the local simulation only")
	flagSet.Int64Var(&cfg.seed, "seed", int64(envOrInt("SENTINEL_SEED", 0)), "Simulation random seed (0: time based)")
	flagSet.StringVar(&cfg.incidentNode, "incident-node", envOr("SENTINEL_INCIDENT_NODE", ""), "Node targeted by simulated incidents (default: from topology)")

	if err := flagSet.Parse(args); err != nil {
		return appConfig{}, err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return appConfig{}, fmt.Errorf("unexpected argument: %s", rest[0])
	}

	cfg.url = strings.TrimSpace(cfg.url)
	if cfg.url == "" {
		cfg.url = ingest.DefaultURL
	}
	cfg.window = clampInt(cfg.window, 10, 1000)
	cfg.frameMS = clampInt(cfg.frameMS, 16, 1000)
	cfg.logLevel = strings.ToLower(strings.TrimSpace(cfg.logLevel))
	cfg.incidentNode = strings.TrimSpace(cfg.incidentNode)
	if cfg.seed == 0 {
		cfg.seed = time.Now().UnixNano()
	}
	return cfg, nil
}

func (c appConfig) frameInterval() time.Duration {
	return time.Duration(c.frameMS) * time.Millisecond
}

func envOr(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if value == "" {
		return fallback
	}
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func run() error {
	cfg, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	logFile, err := os.OpenFile(cfg.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()
	logging.Init(logging.Config{Level: cfg.logLevel, Format: "json", Output: logFile})

	topo, err := topology.Load(cfg.topologyPath)
	if err != nil {
		return err
	}
	if cfg.incidentNode == "" {
		cfg.incidentNode = topo.IncidentNode
	}

	client := ingest.NewClient(ingest.DefaultConfig(cfg.url))
	sess := newSession(clock.Real(), client, topo.Nodes, cfg)
	defer sess.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sess.Start(ctx)

	logging.Info().
		Add(logging.Component("main")).
		Add(logging.URL(cfg.url)).
		Add(logging.Count("nodes", len(topo.Nodes))).
		Msg("console started")

	options := []tea.ProgramOption{tea.WithMouseCellMotion()}
	if cfg.altScreen {
		options = append(options, tea.WithAltScreen())
	}
	program := tea.NewProgram(newModel(cfg, sess), options...)
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("run program: %w", err)
	}
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "sentinel-tui fatal error: %v\n", err)
		os.Exit(1)
	}
}

// simdash is a terminal dashboard for the simulation service.
//
// It lists simulations and machines, creates and deletes them, and follows
// a running simulation's loss curve live over the push channel.
//
// Usage:
//
//	simdash                                  # List page, config auto-discovered
//	simdash --config <path>                  # Use a specific config file
//	simdash --api http://host:4000           # Override the service URL
//	simdash --push ws://host:4000/ws         # Override the push channel URL
//	simdash --path /simulation/7             # Start on a simulation's detail page
//	simdash --json                           # Dump machines and simulations as JSON and exit
//	simdash --path /simulation/7 --export-chart loss.png
//	simdash --new                            # Prompt for a new simulation and exit
//	simdash --version                        # Print version and exit
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/daviddao/simdash/internal/api"
	"github.com/daviddao/simdash/internal/chart"
	"github.com/daviddao/simdash/internal/config"
	"github.com/daviddao/simdash/internal/logging"
	"github.com/daviddao/simdash/internal/push"
	"github.com/daviddao/simdash/internal/snapshot"
	"github.com/daviddao/simdash/internal/ui"
)

// Version is set via ldflags at build time (e.g. -X main.Version=v0.1.0).
var Version = "dev"

const (
	exportWidth  = 960
	exportHeight = 540
)

// jsonOutput is the structure for --json mode.
type jsonOutput struct {
	Machines    []jsonMachine    `json:"machines"`
	Simulations []jsonSimulation `json:"simulations"`
	Query       jsonQuery        `json:"query"`
	Stats       jsonStats        `json:"stats"`
}

type jsonMachine struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Available bool   `json:"available"`
}

type jsonSimulation struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Machine string `json:"machine"`
	Status  string `json:"status"`
}

type jsonQuery struct {
	Status         string `json:"status"`
	OrderBy        string `json:"order_by"`
	OrderDirection string `json:"order_direction"`
}

type jsonStats struct {
	Machines          int    `json:"machines"`
	AvailableMachines int    `json:"available_machines"`
	Pending           int    `json:"pending"`
	Running           int    `json:"running"`
	Finished          int    `json:"finished"`
	BuiltAt           string `json:"built_at"`
}

type flags struct {
	configPath string
	apiURL     string
	pushURL    string
	startPath  string
	jsonMode   bool
	exportPath string
	newMode    bool
}

func main() {
	var f flags
	flag.StringVar(&f.configPath, "config", "", "path to config.yml (default: auto-discover .simdash/config.yml)")
	flag.StringVar(&f.apiURL, "api", "", "simulation service base URL (overrides config)")
	flag.StringVar(&f.pushURL, "push", "", "push channel websocket URL (default: derived from --api)")
	flag.StringVar(&f.startPath, "path", ui.ListPath, "start page (/ or /simulation/<id>)")
	flag.BoolVar(&f.jsonMode, "json", false, "dump machines and simulations as JSON and exit (no TUI)")
	flag.StringVar(&f.exportPath, "export-chart", "", "write the convergence chart of --path to a PNG file and exit")
	flag.BoolVar(&f.newMode, "new", false, "prompt for a new simulation and exit")
	versionFlag := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("simdash %s\n", Version)
		os.Exit(0)
	}

	if err := run(f); err != nil {
		fmt.Fprintf(os.Stderr, "simdash: %v\n", err)
		os.Exit(1)
	}
}

func run(f flags) error {
	if err := config.LoadDotEnv(); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}
	cfg, cfgPath, err := loadConfig(f.configPath)
	if err != nil {
		return err
	}
	applyFlags(&cfg, f)
	if err := ui.ValidatePath(f.startPath); err != nil {
		return err
	}

	log, closer, err := logging.New(cfg.LogPath(), cfg.LogLevel)
	if err != nil {
		return err
	}
	defer closer.Close()
	log.Info().Str("api", cfg.APIURL).Str("push", cfg.PushEndpoint()).Str("config", cfgPath).Msg("config loaded")

	client := newClient(cfg, log)
	ctx := context.Background()

	switch {
	case f.jsonMode:
		return dumpJSON(ctx, os.Stdout, client, listQuery(cfg.List))
	case f.exportPath != "":
		id, err := ui.ParseSimulationID(f.startPath)
		if err != nil {
			return fmt.Errorf("--export-chart needs --path /simulation/<id>: %w", err)
		}
		if err := exportChart(ctx, client, id, f.exportPath); err != nil {
			return err
		}
		fmt.Printf("chart written to %s\n", f.exportPath)
		return nil
	case f.newMode:
		return promptNewSimulation(ctx, client, os.Stdout)
	}

	m, err := ui.New(ui.Options{
		Service: client,
		Dial: func() ui.PushChannel {
			return push.New(cfg.PushEndpoint(), push.WithLogger(log))
		},
		Log:      log,
		List:     listDefaultsMsg(cfg.List),
		Endpoint: cfg.APIURL,
	}, f.startPath)
	if err != nil {
		return err
	}

	p := tea.NewProgram(m, tea.WithAltScreen())

	// Feed config file changes into the TUI.
	if cfgPath != "" {
		w, err := config.NewWatcher(cfgPath)
		if err != nil {
			log.Warn().Err(err).Str("path", cfgPath).Msg("config watch disabled")
		} else {
			defer w.Close()
			go func() {
				for r := range w.Reloads() {
					if r.Err != nil {
						log.Error().Err(r.Err).Msg("config reload")
						continue
					}
					log.Info().Str("path", w.Path()).Msg("config reloaded")
					p.Send(listDefaultsMsg(r.Config.List))
				}
			}()
		}
	}

	final, err := p.Run()
	if fm, ok := final.(ui.Model); ok {
		fm.Close()
	}
	return err
}

// loadConfig loads an explicit config file, or discovers one.
func loadConfig(path string) (config.Config, string, error) {
	if path == "" {
		return config.Open()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, "", err
	}
	return cfg, path, nil
}

// applyFlags lets command-line URLs win over file and environment.
func applyFlags(cfg *config.Config, f flags) {
	if f.apiURL != "" {
		cfg.APIURL = strings.TrimRight(f.apiURL, "/")
	}
	if f.pushURL != "" {
		cfg.PushURL = f.pushURL
	}
}

func newClient(cfg config.Config, log zerolog.Logger) *api.Client {
	return api.New(cfg.APIURL,
		api.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
		api.WithLogger(log),
	)
}

func listQuery(d config.ListDefaults) api.ListQuery {
	return api.ListQuery{
		Status:         api.Status(d.Status),
		OrderBy:        d.OrderBy,
		OrderDirection: strings.ToUpper(d.OrderDirection),
	}
}

func listDefaultsMsg(d config.ListDefaults) ui.ListDefaultsChangedMsg {
	return ui.ListDefaultsChangedMsg{
		Status:         d.Status,
		OrderBy:        d.OrderBy,
		OrderDirection: d.OrderDirection,
	}
}

// dumpJSON builds a snapshot and writes it as indented JSON.
func dumpJSON(ctx context.Context, w io.Writer, src snapshot.Source, q api.ListQuery) error {
	snap, err := snapshot.Build(ctx, src, q)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(buildJSONOutput(snap)); err != nil {
		return fmt.Errorf("json: %w", err)
	}
	return nil
}

// buildJSONOutput converts a snapshot into the JSON output structure.
func buildJSONOutput(snap *snapshot.ListSnapshot) jsonOutput {
	machines := make([]jsonMachine, len(snap.Machines))
	for i, m := range snap.Machines {
		machines[i] = jsonMachine{ID: m.ID, Name: m.Name, Available: m.Availability}
	}

	sims := make([]jsonSimulation, len(snap.Simulations))
	for i, s := range snap.Simulations {
		sims[i] = jsonSimulation{ID: s.ID, Name: s.Name, Machine: s.MachineName, Status: string(s.Status)}
	}

	return jsonOutput{
		Machines:    machines,
		Simulations: sims,
		Query: jsonQuery{
			Status:         string(snap.Query.Status),
			OrderBy:        snap.Query.OrderBy,
			OrderDirection: snap.Query.OrderDirection,
		},
		Stats: jsonStats{
			Machines:          len(snap.Machines),
			AvailableMachines: snap.AvailableMachines,
			Pending:           snap.ByStatus[api.StatusPending],
			Running:           snap.ByStatus[api.StatusRunning],
			Finished:          snap.ByStatus[api.StatusFinished],
			BuiltAt:           snap.BuiltAt.Format(time.RFC3339),
		},
	}
}

type convergenceSource interface {
	Convergence(ctx context.Context, id int64) ([]api.Sample, error)
}

// exportChart fetches a simulation's history and writes it as a PNG.
func exportChart(ctx context.Context, src convergenceSource, id int64, path string) error {
	samples, err := src.Convergence(ctx, id)
	if err != nil {
		return fmt.Errorf("convergence: %w", err)
	}
	if err := chart.New(samples).SavePNG(path, exportWidth, exportHeight); err != nil {
		if errors.Is(err, chart.ErrEmpty) {
			return fmt.Errorf("simulation %d: %w", id, err)
		}
		return fmt.Errorf("export chart: %w", err)
	}
	return nil
}

package ui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/daviddao/simdash/internal/api"
)

// Service is the REST surface the pages use. *api.Client implements it.
type Service interface {
	ListMachines(ctx context.Context) ([]api.Machine, error)
	CreateMachine(ctx context.Context, name string) error
	ListSimulations(ctx context.Context, q api.ListQuery) ([]api.SimulationSummary, error)
	CreateSimulation(ctx context.Context, s api.NewSimulation) error
	DeleteSimulation(ctx context.Context, id int64) error
	GetSimulation(ctx context.Context, id int64) (*api.Simulation, error)
	UpdateStatus(ctx context.Context, id int64, status api.Status) error
	AssignMachine(ctx context.Context, id, machineID int64) error
	Convergence(ctx context.Context, id int64) ([]api.Sample, error)
}

// PushChannel is the live-update subscription. *push.Channel implements it.
type PushChannel interface {
	Start()
	OnConnect(func())
	OnUpdate(func(api.Sample))
	RemoveAllListeners()
	Connected() bool
	Join(simulationID int64) error
	Leave(simulationID int64) error
	Close() error
}

// pageID identifies one page instance. Every navigation creates a new id.
type pageID uint64

// page is one screen of the dashboard. A page owns all of its state and
// is discarded on navigation after teardown.
type page interface {
	id() pageID
	init() tea.Cmd
	update(msg tea.Msg) tea.Cmd
	view(width, height int) string
	title() string
	helpLine() string
	// capturesInput reports whether a text field has focus, in which case
	// only ctrl+c is interpreted globally.
	capturesInput() bool
	teardown()
}

// pageRef tags an async result with the page instance that issued it.
type pageRef struct {
	page pageID
}

func (r pageRef) target() pageID { return r.page }

type pageMsg interface {
	target() pageID
}

// navigateMsg asks the root model to replace the current page.
type navigateMsg struct {
	pageRef
	path string
}

// alertMsg opens the blocking error modal.
type alertMsg struct {
	pageRef
	text string
}

// tickMsg redraws the status bar clock.
type tickMsg struct{}

// ListDefaultsChangedMsg carries new list controls after a config reload.
type ListDefaultsChangedMsg struct {
	Status         string
	OrderBy        string
	OrderDirection string
}

func navigate(from pageID, path string) tea.Cmd {
	return func() tea.Msg {
		return navigateMsg{pageRef{from}, path}
	}
}

func alert(from pageID, prefix string, err error) tea.Cmd {
	return func() tea.Msg {
		return alertMsg{pageRef{from}, prefix + ": " + err.Error()}
	}
}

// Route paths.
const (
	ListPath       = "/"
	simulationPath = "/simulation/"
)

// SimulationPath returns the navigation path of a simulation detail page.
func SimulationPath(id int64) string {
	return simulationPath + strconv.FormatInt(id, 10)
}

// ParseSimulationID extracts the simulation id from the trailing segment
// of a navigation path such as /simulation/7.
func ParseSimulationID(path string) (int64, error) {
	trimmed := strings.TrimRight(path, "/")
	seg := trimmed[strings.LastIndex(trimmed, "/")+1:]
	id, err := strconv.ParseInt(seg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("no simulation id in path %q", path)
	}
	return id, nil
}

// ValidatePath reports whether path names a page.
func ValidatePath(path string) error {
	if path == "" || path == ListPath {
		return nil
	}
	if !strings.HasPrefix(path, simulationPath) {
		return fmt.Errorf("unknown page %q (valid: /, /simulation/<id>)", path)
	}
	_, err := ParseSimulationID(path)
	return err
}

// MachineOption is one entry of a machine selector.
type MachineOption struct {
	Label  string
	Choice api.MachineChoice
}

// MachineOptions returns the sentinel "None" entry followed by one entry
// per available machine.
func MachineOptions(machines []api.Machine) []MachineOption {
	avail := api.AvailableMachines(machines)
	opts := make([]MachineOption, 0, len(avail)+1)
	opts = append(opts, MachineOption{Label: "None", Choice: api.NoMachine})
	for _, m := range avail {
		opts = append(opts, MachineOption{Label: m.Name, Choice: api.ChoiceFor(m)})
	}
	return opts
}

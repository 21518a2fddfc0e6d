package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/daviddao/simdash/internal/api"
	"github.com/daviddao/simdash/internal/snapshot"
)

// --- Messages ---

type machinesLoadedMsg struct {
	pageRef
	machines []api.Machine
	err      error
}

type simulationsLoadedMsg struct {
	pageRef
	query api.ListQuery
	sims  []api.SimulationSummary
	err   error
}

type simulationCreatedMsg struct {
	pageRef
	err error
}

type machineCreatedMsg struct {
	pageRef
	err error
}

type simulationDeletedMsg struct {
	pageRef
	id  int64
	err error
}

// --- List controls ---

var (
	statusFilters = []string{"", string(api.StatusPending), string(api.StatusRunning), string(api.StatusFinished)}
	orderFields   = []string{"creation_date", "update_date", "name", "status"}
	orderDirs     = []string{"DESC", "ASC"}
)

// cycle is a selector over a fixed set of values.
type cycle struct {
	values []string
	pos    int
}

// newCycle selects v, adding it to the values when unknown.
func newCycle(values []string, v string) cycle {
	c := cycle{values: append([]string(nil), values...)}
	c.set(v)
	return c
}

func (c *cycle) set(v string) {
	for i, x := range c.values {
		if x == v {
			c.pos = i
			return
		}
	}
	c.values = append(c.values, v)
	c.pos = len(c.values) - 1
}

func (c *cycle) next() { c.pos = (c.pos + 1) % len(c.values) }

func (c cycle) value() string { return c.values[c.pos] }

type listFocus int

const (
	focusSimulations listFocus = iota
	focusSimName
	focusMachineSelect
	focusMachineName
	focusCount
)

// --- Model ---

type listPage struct {
	pid pageID
	svc Service
	log zerolog.Logger

	machines []api.Machine
	options  []MachineOption
	selected int

	sims      []api.SimulationSummary
	counts    map[api.Status]int
	countedBy api.Status
	cursor    int

	status    cycle
	orderBy   cycle
	direction cycle

	simName     textinput.Model
	machineName textinput.Model
	focus       listFocus

	lastRefresh time.Time
}

func newListPage(pid pageID, svc Service, log zerolog.Logger, d ListDefaultsChangedMsg) *listPage {
	p := &listPage{
		pid:         pid,
		svc:         svc,
		log:         log,
		options:     MachineOptions(nil),
		simName:     newInput("simulation name"),
		machineName: newInput("machine name"),
	}
	p.applyDefaults(d)
	return p
}

func newInput(placeholder string) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = 128
	ti.Width = 32
	ti.Cursor.SetMode(cursor.CursorStatic)
	return ti
}

func (p *listPage) applyDefaults(d ListDefaultsChangedMsg) {
	p.status = newCycle(statusFilters, d.Status)
	p.orderBy = newCycle(orderFields, d.OrderBy)
	p.direction = newCycle(orderDirs, strings.ToUpper(d.OrderDirection))
}

func (p *listPage) id() pageID { return p.pid }

func (p *listPage) title() string { return "Simulations" }

func (p *listPage) init() tea.Cmd {
	return tea.Batch(p.loadMachines(), p.loadSimulations())
}

func (p *listPage) teardown() {}

func (p *listPage) capturesInput() bool {
	return p.focus == focusSimName || p.focus == focusMachineName
}

func (p *listPage) helpLine() string {
	switch p.focus {
	case focusSimName:
		return "type name | enter: create simulation | tab: machine | esc: list | ctrl+c: quit"
	case focusMachineSelect:
		return "h/l: choose machine | enter: create simulation | tab: next | q: quit"
	case focusMachineName:
		return "type name | enter: create machine | tab: list | esc: list | ctrl+c: quit"
	default:
		return "j/k: select | enter: open | x: delete | f/o/d: filter/order/dir | tab: forms | ?: help | q: quit"
	}
}

func (p *listPage) query() api.ListQuery {
	return api.ListQuery{
		Status:         api.Status(p.status.value()),
		OrderBy:        p.orderBy.value(),
		OrderDirection: p.direction.value(),
	}
}

// --- Commands ---

func (p *listPage) loadMachines() tea.Cmd {
	svc, ref := p.svc, pageRef{p.pid}
	return func() tea.Msg {
		ms, err := svc.ListMachines(context.Background())
		return machinesLoadedMsg{ref, ms, err}
	}
}

func (p *listPage) loadSimulations() tea.Cmd {
	svc, ref, q := p.svc, pageRef{p.pid}, p.query()
	return func() tea.Msg {
		sims, err := svc.ListSimulations(context.Background(), q)
		return simulationsLoadedMsg{ref, q, sims, err}
	}
}

func (p *listPage) createSimulation() tea.Cmd {
	req, err := api.NewSimulationRequest(p.simName.Value(), p.options[p.selected].Choice)
	if err != nil {
		return alert(p.pid, "Error", err)
	}
	svc, ref := p.svc, pageRef{p.pid}
	return func() tea.Msg {
		return simulationCreatedMsg{ref, svc.CreateSimulation(context.Background(), req)}
	}
}

func (p *listPage) createMachine() tea.Cmd {
	svc, ref, name := p.svc, pageRef{p.pid}, p.machineName.Value()
	return func() tea.Msg {
		return machineCreatedMsg{ref, svc.CreateMachine(context.Background(), name)}
	}
}

func (p *listPage) deleteSimulation(id int64) tea.Cmd {
	svc, ref := p.svc, pageRef{p.pid}
	return func() tea.Msg {
		return simulationDeletedMsg{ref, id, svc.DeleteSimulation(context.Background(), id)}
	}
}

// --- Update ---

func (p *listPage) update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return p.handleKey(msg)

	case machinesLoadedMsg:
		if msg.err != nil {
			p.log.Error().Err(msg.err).Msg("error loading machines")
			return nil
		}
		p.machines = msg.machines
		p.options = MachineOptions(msg.machines)
		p.selected = 0

	case simulationsLoadedMsg:
		if msg.err != nil {
			p.log.Error().Err(msg.err).Msg("error loading simulations")
			return nil
		}
		p.sims = msg.sims
		p.counts = snapshot.CountByStatus(msg.sims)
		p.countedBy = msg.query.Status
		p.lastRefresh = time.Now()
		if p.cursor >= len(p.sims) {
			p.cursor = max(0, len(p.sims)-1)
		}

	case simulationCreatedMsg:
		if msg.err != nil {
			return alert(p.pid, "Error", msg.err)
		}
		p.simName.Reset()
		p.selected = 0
		return tea.Batch(p.loadMachines(), p.loadSimulations())

	case machineCreatedMsg:
		if msg.err != nil {
			return alert(p.pid, "Error", msg.err)
		}
		p.machineName.Reset()
		return p.loadMachines()

	case simulationDeletedMsg:
		if msg.err != nil {
			return alert(p.pid, "Error", msg.err)
		}
		return tea.Batch(p.loadSimulations(), p.loadMachines())

	case ListDefaultsChangedMsg:
		p.applyDefaults(msg)
		return p.loadSimulations()
	}
	return nil
}

func (p *listPage) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, keys.Tab):
		p.setFocus((p.focus + 1) % focusCount)
		return nil
	case key.Matches(msg, keys.ShiftTab):
		p.setFocus((p.focus + focusCount - 1) % focusCount)
		return nil
	case key.Matches(msg, keys.Esc):
		p.setFocus(focusSimulations)
		return nil
	}

	switch p.focus {
	case focusSimName:
		if key.Matches(msg, keys.Enter) {
			return p.createSimulation()
		}
		var cmd tea.Cmd
		p.simName, cmd = p.simName.Update(msg)
		return cmd

	case focusMachineName:
		if key.Matches(msg, keys.Enter) {
			return p.createMachine()
		}
		var cmd tea.Cmd
		p.machineName, cmd = p.machineName.Update(msg)
		return cmd

	case focusMachineSelect:
		switch {
		case key.Matches(msg, keys.Left):
			p.selected = (p.selected + len(p.options) - 1) % len(p.options)
		case key.Matches(msg, keys.Right):
			p.selected = (p.selected + 1) % len(p.options)
		case key.Matches(msg, keys.Enter):
			return p.createSimulation()
		}
		return nil
	}

	switch {
	case key.Matches(msg, keys.Up):
		if p.cursor > 0 {
			p.cursor--
		}
	case key.Matches(msg, keys.Down):
		if p.cursor < len(p.sims)-1 {
			p.cursor++
		}
	case key.Matches(msg, keys.Enter):
		if s, ok := p.current(); ok {
			return navigate(p.pid, SimulationPath(s.ID))
		}
	case key.Matches(msg, keys.Delete):
		if s, ok := p.current(); ok {
			return p.deleteSimulation(s.ID)
		}
	case key.Matches(msg, keys.Filter):
		p.status.next()
		return p.loadSimulations()
	case key.Matches(msg, keys.Order):
		p.orderBy.next()
		return p.loadSimulations()
	case key.Matches(msg, keys.Direction):
		p.direction.next()
		return p.loadSimulations()
	case key.Matches(msg, keys.Refresh):
		return tea.Batch(p.loadMachines(), p.loadSimulations())
	}
	return nil
}

func (p *listPage) setFocus(f listFocus) {
	p.focus = f
	p.simName.Blur()
	p.machineName.Blur()
	switch f {
	case focusSimName:
		p.simName.Focus()
	case focusMachineName:
		p.machineName.Focus()
	}
}

func (p *listPage) current() (api.SimulationSummary, bool) {
	if p.cursor < 0 || p.cursor >= len(p.sims) {
		return api.SimulationSummary{}, false
	}
	return p.sims[p.cursor], true
}

// --- View ---

func (p *listPage) view(width, height int) string {
	var b strings.Builder

	b.WriteString(p.renderControls())
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render("Simulations"))
	b.WriteString(dimStyle.Render(p.renderCounts()))
	b.WriteRune('\n')
	b.WriteString(p.renderSimulations(max(3, height-12)))
	b.WriteRune('\n')

	b.WriteString(headerStyle.Render("New simulation"))
	b.WriteRune('\n')
	b.WriteString(p.renderField("Name", p.simName.View(), p.focus == focusSimName))
	b.WriteString(p.renderField("Machine", p.renderMachineSelect(), p.focus == focusMachineSelect))
	b.WriteRune('\n')

	b.WriteString(headerStyle.Render("New machine"))
	b.WriteRune('\n')
	b.WriteString(p.renderField("Name", p.machineName.View(), p.focus == focusMachineName))

	return b.String()
}

// renderCounts summarises the loaded rows. The rows come from the filtered
// query, so a status filter narrows the summary to that status.
func (p *listPage) renderCounts() string {
	if p.countedBy != "" {
		return fmt.Sprintf("  %d %s (filtered)", p.counts[p.countedBy], p.countedBy)
	}
	return fmt.Sprintf("  %d pending | %d running | %d finished",
		p.counts[api.StatusPending], p.counts[api.StatusRunning], p.counts[api.StatusFinished])
}

func (p *listPage) renderControls() string {
	status := p.status.value()
	if status == "" {
		status = "all"
	}
	return strings.Join([]string{
		controlStyle.Render("[f] status: " + status),
		controlStyle.Render("[o] order by: " + p.orderBy.value()),
		controlStyle.Render("[d] " + p.direction.value()),
	}, " ")
}

func (p *listPage) renderSimulations(maxRows int) string {
	if len(p.sims) == 0 {
		return dimStyle.Render("  (no simulations)") + "\n"
	}

	// Keep the cursor row visible.
	start := 0
	if p.cursor >= maxRows {
		start = p.cursor - maxRows + 1
	}
	end := min(len(p.sims), start+maxRows)

	var b strings.Builder
	for i := start; i < end; i++ {
		s := p.sims[i]
		cursor := "  "
		if i == p.cursor && p.focus == focusSimulations {
			cursor = "> "
		}
		line := fmt.Sprintf("%sName: %s, Machine: %s, Status: %s",
			cursor, s.Name, s.MachineName, statusStyle(s.Status).Render(string(s.Status)))
		b.WriteString(line)
		b.WriteString(dimStyle.Render("  [x] delete"))
		b.WriteRune('\n')
	}
	return b.String()
}

func (p *listPage) renderMachineSelect() string {
	opts := make([]string, len(p.options))
	for i, o := range p.options {
		if i == p.selected {
			opts[i] = focusStyle.Render(o.Label)
		} else {
			opts[i] = dimStyle.Render(o.Label)
		}
	}
	return strings.Join(opts, " ")
}

func (p *listPage) renderField(label, value string, focused bool) string {
	marker := "  "
	if focused {
		marker = "> "
	}
	return marker + labelStyle.Render(label) + value + "\n"
}

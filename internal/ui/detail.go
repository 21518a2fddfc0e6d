package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/daviddao/simdash/internal/api"
	"github.com/daviddao/simdash/internal/chart"
	"github.com/daviddao/simdash/internal/push"
)

// --- Messages ---

type detailsLoadedMsg struct {
	pageRef
	sim       *api.Simulation
	subscribe bool
	err       error
}

type convergenceLoadedMsg struct {
	pageRef
	samples []api.Sample
	err     error
}

type availableMachinesMsg struct {
	pageRef
	machines []api.Machine
	err      error
}

type sampleMsg struct {
	pageRef
	sample api.Sample
}

type machineAssignedMsg struct {
	pageRef
	err error
}

type statusUpdatedMsg struct {
	pageRef
	err error
}

type chartExportedMsg struct {
	pageRef
	path string
	err  error
}

// controlsKind is the management variant shown for a status.
type controlsKind int

const (
	controlsNone controlsKind = iota
	controlsRun
	controlsEnd
)

func controlsFor(s api.Status) controlsKind {
	switch s {
	case api.StatusPending, api.StatusFinished:
		return controlsRun
	case api.StatusRunning:
		return controlsEnd
	}
	return controlsNone
}

// --- Model ---

type detailPage struct {
	pid   pageID
	simID int64
	svc   Service
	dial  func() PushChannel
	log   zerolog.Logger

	sim      *api.Simulation
	controls controlsKind
	machines []api.Machine
	selected int
	chart    *chart.Convergence

	// Created on first subscribe, released by teardown.
	channel PushChannel
	samples chan api.Sample
	done    chan struct{}

	notice string
}

func newDetailPage(pid pageID, simID int64, svc Service, dial func() PushChannel, log zerolog.Logger) *detailPage {
	return &detailPage{
		pid:   pid,
		simID: simID,
		svc:   svc,
		dial:  dial,
		log:   log.With().Int64("simulation_id", simID).Logger(),
		done:  make(chan struct{}),
	}
}

func (p *detailPage) id() pageID { return p.pid }

func (p *detailPage) title() string {
	if p.sim != nil {
		return "Simulation: " + p.sim.Name
	}
	return fmt.Sprintf("Simulation #%d", p.simID)
}

func (p *detailPage) capturesInput() bool { return false }

func (p *detailPage) helpLine() string {
	switch p.controls {
	case controlsRun:
		return "h/l: choose machine | enter: run on machine | p: export png | esc: back | q: quit"
	case controlsEnd:
		return "e: end simulation | p: export png | esc: back | q: quit"
	}
	return "esc: back | q: quit"
}

func (p *detailPage) init() tea.Cmd {
	return tea.Batch(p.loadDetails(true), p.loadConvergence())
}

// teardown announces departure and releases the push channel. Samples
// still queued are discarded.
func (p *detailPage) teardown() {
	select {
	case <-p.done:
		return
	default:
	}
	close(p.done)
	if p.channel == nil {
		return
	}
	if err := p.channel.Leave(p.simID); err != nil && !errors.Is(err, push.ErrNotConnected) {
		p.log.Warn().Err(err).Msg("leave on teardown")
	}
	if err := p.channel.Close(); err != nil {
		p.log.Warn().Err(err).Msg("close push channel")
	}
}

// --- Commands ---

func (p *detailPage) loadDetails(subscribe bool) tea.Cmd {
	svc, ref, id := p.svc, pageRef{p.pid}, p.simID
	return func() tea.Msg {
		sim, err := svc.GetSimulation(context.Background(), id)
		return detailsLoadedMsg{ref, sim, subscribe, err}
	}
}

func (p *detailPage) loadConvergence() tea.Cmd {
	svc, ref, id := p.svc, pageRef{p.pid}, p.simID
	return func() tea.Msg {
		samples, err := svc.Convergence(context.Background(), id)
		return convergenceLoadedMsg{ref, samples, err}
	}
}

func (p *detailPage) loadAvailableMachines() tea.Cmd {
	svc, ref := p.svc, pageRef{p.pid}
	return func() tea.Msg {
		ms, err := svc.ListMachines(context.Background())
		return availableMachinesMsg{ref, ms, err}
	}
}

// waitForSample delivers the next pushed sample into the update loop.
// It returns nil once the page is torn down.
func waitForSample(ref pageRef, samples <-chan api.Sample, done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case s := <-samples:
			return sampleMsg{ref, s}
		case <-done:
			return nil
		}
	}
}

// subscribe attaches this page's listeners to the push channel, creating
// and starting the channel on first use. Listeners are replaced, never
// added, so repeated calls leave exactly one handler per event.
func (p *detailPage) subscribe() tea.Cmd {
	var cmd tea.Cmd
	first := p.channel == nil
	if first {
		p.channel = p.dial()
		p.samples = make(chan api.Sample, 64)
		cmd = waitForSample(pageRef{p.pid}, p.samples, p.done)
	}

	ch, id, samples, done, log := p.channel, p.simID, p.samples, p.done, p.log
	ch.RemoveAllListeners()
	ch.OnConnect(func() {
		log.Info().Msg("push connected, joining")
		if err := ch.Join(id); err != nil {
			log.Warn().Err(err).Msg("join")
		}
	})
	ch.OnUpdate(func(s api.Sample) {
		select {
		case samples <- s:
		case <-done:
		}
	})

	if first {
		ch.Start()
	}
	return cmd
}

func (p *detailPage) runOnMachine() tea.Cmd {
	if p.selected >= len(p.machines) {
		return alert(p.pid, "Error assigning machine",
			&api.ValidationError{Field: "machine_id", Message: "no available machine selected"})
	}
	svc, ref, id, machineID := p.svc, pageRef{p.pid}, p.simID, p.machines[p.selected].ID

	// Re-announce interest right away; a channel that does not exist yet
	// joins from its connect listener once the details reload subscribes.
	if p.channel != nil {
		if err := p.channel.Join(id); err != nil {
			p.log.Warn().Err(err).Msg("join after assign")
		}
	} else {
		p.log.Debug().Msg("no push channel yet, join deferred to connect")
	}

	return func() tea.Msg {
		return machineAssignedMsg{ref, svc.AssignMachine(context.Background(), id, machineID)}
	}
}

func (p *detailPage) endSimulation() tea.Cmd {
	svc, ref, id := p.svc, pageRef{p.pid}, p.simID
	if p.channel != nil {
		if err := p.channel.Leave(id); err != nil {
			p.log.Warn().Err(err).Msg("leave on end")
		}
	}
	return func() tea.Msg {
		return statusUpdatedMsg{ref, svc.UpdateStatus(context.Background(), id, api.StatusFinished)}
	}
}

func (p *detailPage) exportChart() tea.Cmd {
	if p.chart == nil || p.chart.Len() == 0 {
		p.notice = "nothing to export yet"
		return nil
	}
	// Copy so later appends don't race the export.
	snap := chart.New(nil)
	snap.Labels = append(snap.Labels, p.chart.Labels...)
	snap.Series[0].Data = append(snap.Series[0].Data, p.chart.Series[0].Data...)
	ref, path := pageRef{p.pid}, fmt.Sprintf("simulation-%d.png", p.simID)
	return func() tea.Msg {
		return chartExportedMsg{ref, path, snap.SavePNG(path, 960, 540)}
	}
}

// --- Update ---

func (p *detailPage) update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return p.handleKey(msg)

	case detailsLoadedMsg:
		if msg.err != nil {
			p.log.Error().Err(msg.err).Msg("failed to load simulation details")
			return nil
		}
		p.sim = msg.sim
		var cmds []tea.Cmd
		p.controls = controlsFor(msg.sim.Status)
		if p.controls == controlsRun {
			cmds = append(cmds, p.loadAvailableMachines())
		}
		if msg.subscribe && msg.sim.Status == api.StatusRunning {
			cmds = append(cmds, p.subscribe())
		}
		return tea.Batch(cmds...)

	case convergenceLoadedMsg:
		if msg.err != nil {
			p.log.Error().Err(msg.err).Msg("failed to load convergence data")
			return nil
		}
		p.chart = chart.New(msg.samples)

	case availableMachinesMsg:
		if msg.err != nil {
			p.log.Error().Err(msg.err).Msg("error loading available machines")
			return nil
		}
		p.machines = api.AvailableMachines(msg.machines)
		p.selected = 0

	case sampleMsg:
		if p.chart != nil {
			p.chart.Append(msg.sample)
		}
		return tea.Batch(p.loadDetails(false), waitForSample(pageRef{p.pid}, p.samples, p.done))

	case machineAssignedMsg:
		if msg.err != nil {
			return alert(p.pid, "Error assigning machine", msg.err)
		}
		return p.loadDetails(true)

	case statusUpdatedMsg:
		if msg.err != nil {
			return alert(p.pid, "Error updating status", msg.err)
		}
		return p.loadDetails(true)

	case chartExportedMsg:
		if msg.err != nil {
			p.log.Error().Err(msg.err).Msg("chart export")
			p.notice = "export failed: " + msg.err.Error()
			return nil
		}
		p.notice = "chart written to " + msg.path
	}
	return nil
}

func (p *detailPage) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, keys.Esc):
		return navigate(p.pid, ListPath)
	case key.Matches(msg, keys.Export):
		return p.exportChart()
	}

	switch p.controls {
	case controlsRun:
		switch {
		case key.Matches(msg, keys.Left):
			if len(p.machines) > 0 {
				p.selected = (p.selected + len(p.machines) - 1) % len(p.machines)
			}
		case key.Matches(msg, keys.Right):
			if len(p.machines) > 0 {
				p.selected = (p.selected + 1) % len(p.machines)
			}
		case key.Matches(msg, keys.Run):
			return p.runOnMachine()
		}
	case controlsEnd:
		if key.Matches(msg, keys.End) {
			return p.endSimulation()
		}
	}
	return nil
}

// --- View ---

func (p *detailPage) view(width, height int) string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("Details"))
	if p.channel != nil && p.channel.Connected() {
		b.WriteString("  " + liveStyle.Render("● live"))
	}
	b.WriteRune('\n')
	b.WriteString(p.renderDetails())
	b.WriteRune('\n')

	b.WriteString(headerStyle.Render("Management"))
	b.WriteRune('\n')
	b.WriteString(p.renderControls())
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render("Convergence"))
	b.WriteRune('\n')
	chartHeight := max(6, height-17)
	b.WriteString(p.chart.Render(width-2, chartHeight))

	if p.notice != "" {
		b.WriteString("\n")
		b.WriteString(dimStyle.Render(p.notice))
	}
	return b.String()
}

func (p *detailPage) renderDetails() string {
	s := p.sim
	if s == nil {
		return dimStyle.Render("  loading...") + "\n"
	}
	rows := [][2]string{
		{"Name", s.Name},
		{"Creation Date", s.CreationDate},
		{"Update Date", s.UpdateDate},
		{"Machine", orDash(s.MachineName, "%s")},
		{"Status", statusStyle(s.Status).Render(string(s.Status))},
		{"Epochs", orDash(s.Epochs, "%d")},
		{"Final Loss", orDash(s.FinalLoss, "%g")},
		{"Total Seconds", orDash(s.TotalSeconds, "%g")},
	}
	var b strings.Builder
	for _, r := range rows {
		b.WriteString("  " + labelStyle.Render(r[0]) + r[1] + "\n")
	}
	return b.String()
}

func (p *detailPage) renderControls() string {
	switch p.controls {
	case controlsRun:
		if len(p.machines) == 0 {
			return "  " + dimStyle.Render("(no available machines)") + "  " + controlStyle.Render("[enter] Run on Machine")
		}
		opts := make([]string, len(p.machines))
		for i, m := range p.machines {
			if i == p.selected {
				opts[i] = focusStyle.Render(m.Name)
			} else {
				opts[i] = dimStyle.Render(m.Name)
			}
		}
		return "  " + strings.Join(opts, " ") + "  " + controlStyle.Render("[enter] Run on Machine")
	case controlsEnd:
		return "  " + controlStyle.Render("[e] End Simulation")
	}
	return ""
}

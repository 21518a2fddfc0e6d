// Package ui is the bubbletea front end of simdash.
//
// The root model hosts exactly one page at a time: the simulations list
// ("/") or one simulation's detail page ("/simulation/<id>"). Navigating
// tears the current page down and builds a fresh instance, so no page ever
// observes state left behind by another. Every async result is tagged with
// the page instance that issued it and is dropped if that page is gone.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
)

// Options wires the root model to its collaborators.
type Options struct {
	Service Service
	// Dial creates a push channel; called lazily, at most once per detail page.
	Dial func() PushChannel
	Log  zerolog.Logger
	// List holds the initial simulations list controls.
	List ListDefaultsChangedMsg
	// Endpoint is shown in the title bar.
	Endpoint string
}

// Model is the root bubbletea model.
type Model struct {
	opts Options

	page   page
	nextID pageID
	path   string

	width  int
	height int

	alert    string
	help     help.Model
	showHelp bool

	startedAt time.Time
}

// New builds the root model starting at path.
func New(opts Options, path string) (Model, error) {
	if err := ValidatePath(path); err != nil {
		return Model{}, err
	}
	m := Model{
		opts:      opts,
		help:      help.New(),
		startedAt: time.Now(),
	}
	m.help.ShowAll = true
	m.open(path)
	return m, nil
}

// open tears down the current page and builds the page for path.
func (m *Model) open(path string) {
	if m.page != nil {
		m.page.teardown()
	}
	m.nextID++
	m.path = path
	m.alert = ""

	if path == "" || path == ListPath {
		m.path = ListPath
		m.page = newListPage(m.nextID, m.opts.Service, m.opts.Log, m.opts.List)
		return
	}
	// Paths were validated by New or built by SimulationPath.
	id, _ := ParseSimulationID(path)
	m.page = newDetailPage(m.nextID, id, m.opts.Service, m.opts.Dial, m.opts.Log)
}

// Path returns the navigation path of the current page.
func (m Model) Path() string {
	return m.path
}

// Close tears down the current page. Call after the program exits.
func (m Model) Close() {
	if m.page != nil {
		m.page.teardown()
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.page.init(), tickEvery())
}

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tickMsg:
		return m, tickEvery()

	case ListDefaultsChangedMsg:
		// Later list pages start from the reloaded defaults too.
		m.opts.List = msg
		return m, m.page.update(msg)

	case navigateMsg:
		if msg.target() != m.page.id() {
			return m, nil
		}
		m.opts.Log.Debug().Str("from", m.path).Str("to", msg.path).Msg("navigate")
		m.open(msg.path)
		return m, m.page.init()

	case alertMsg:
		if msg.target() != m.page.id() {
			return m, nil
		}
		m.opts.Log.Warn().Str("alert", msg.text).Msg("operation failed")
		m.alert = msg.text
		return m, nil

	case pageMsg:
		if msg.target() != m.page.id() {
			m.opts.Log.Debug().Str("msg", fmt.Sprintf("%T", msg)).Msg("dropping result for closed page")
			return m, nil
		}
	}

	return m, m.page.update(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.page.teardown()
		return m, tea.Quit
	}

	// The alert blocks all other input until dismissed.
	if m.alert != "" {
		if key.Matches(msg, keys.Enter) || key.Matches(msg, keys.Esc) {
			m.alert = ""
		}
		return m, nil
	}

	if !m.page.capturesInput() {
		switch {
		case key.Matches(msg, keys.Quit):
			m.page.teardown()
			return m, tea.Quit
		case key.Matches(msg, keys.Help):
			m.showHelp = !m.showHelp
			return m, nil
		}
	}

	return m, m.page.update(msg)
}

// --- View ---

func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	footer := m.renderStatusBar()
	if m.showHelp {
		footer = m.help.View(keys)
	}
	footerHeight := lipgloss.Height(footer)

	var b strings.Builder
	b.WriteString(m.renderTitleBar())
	b.WriteString("\n\n")

	contentHeight := m.height - 3 - footerHeight // title + gap + padding
	var content string
	if m.alert != "" {
		content = lipgloss.Place(m.width, contentHeight, lipgloss.Center, lipgloss.Center, m.renderAlert())
	} else {
		content = m.page.view(m.width, contentHeight)
	}
	content = truncateLines(clipLines(content, contentHeight), m.width)
	b.WriteString(content)

	// Pad to fill screen.
	rendered := strings.Count(b.String(), "\n")
	for rendered < m.height-footerHeight-1 {
		b.WriteRune('\n')
		rendered++
	}
	b.WriteRune('\n')
	b.WriteString(footer)
	return b.String()
}

func (m Model) renderTitleBar() string {
	title := titleStyle.Render("simdash") + " " + headerStyle.Render(m.page.title())
	endpoint := dimStyle.Render(m.opts.Endpoint)
	gap := strings.Repeat(" ", max(0, m.width-lipgloss.Width(title)-lipgloss.Width(endpoint)-1))
	return title + gap + endpoint
}

func (m Model) renderStatusBar() string {
	left := " " + m.page.helpLine()
	if m.alert != "" {
		left = " enter/esc: dismiss"
	}
	right := fmt.Sprintf("up %s ", shortDuration(time.Since(m.startedAt).Truncate(time.Second)))
	gap := strings.Repeat(" ", max(0, m.width-lipgloss.Width(left)-lipgloss.Width(right)))
	return statusBarStyle.Render(left + gap + right)
}

func (m Model) renderAlert() string {
	return alertStyle.Render(headerStyle.Render("Error") + "\n\n" + m.alert + "\n\n" + dimStyle.Render("press enter to dismiss"))
}

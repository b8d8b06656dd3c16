// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package dashboard

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/costlens/internal/usage"
)

// =============================================================================
// DASHBOARD STATE
// =============================================================================

// View determines what the dashboard displays.
type View int

const (
	ViewSummary View = iota
	ViewVendors
	ViewTrends
)

// refreshInterval is how often the dashboard re-reads the ledger.
const refreshInterval = 2 * time.Second

// trendDays is the window rendered in the trend view.
const trendDays = 7

// snapshot is one consistent read of the ledger.
type snapshot struct {
	summary         usage.Summary
	vendors         []usage.VendorUsage
	trend           []usage.DailyUsage
	recommendations []string
	err             error
}

type tickMsg time.Time

type snapshotMsg snapshot

// =============================================================================
// DASHBOARD MODEL
// =============================================================================

// Model is the Bubble Tea model for the usage dashboard.
type Model struct {
	controller *usage.Controller
	view       View
	width      int
	height     int

	spinner spinner.Model
	loaded  bool
	data    snapshot
}

// New creates a dashboard over the given controller.
func New(controller *usage.Controller) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		controller: controller,
		view:       ViewSummary,
		spinner:    sp,
	}
}

// Init starts the spinner and the first ledger read.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.load())
}

// load reads the ledger off the update loop.
func (m Model) load() tea.Cmd {
	controller := m.controller
	return func() tea.Msg {
		snap := snapshot{summary: controller.Summary()}
		ledger := controller.Ledger()

		var err error
		if snap.vendors, err = ledger.VendorBreakdown(); err != nil {
			snap.err = err
		}
		if snap.trend, err = ledger.Trends(trendDays); err != nil && snap.err == nil {
			snap.err = err
		}
		snap.recommendations = controller.Recommendations()
		return snapshotMsg(snap)
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles key presses, refresh ticks, and ledger snapshots.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "1", "s":
			m.view = ViewSummary
		case "2", "v":
			m.view = ViewVendors
		case "3", "t":
			m.view = ViewTrends
		case "tab":
			m.view = (m.view + 1) % 3
		case "r":
			return m, m.load()
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case snapshotMsg:
		m.data = snapshot(msg)
		if !m.loaded {
			m.loaded = true
			return m, tick()
		}
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.load(), tick())

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// Run starts the dashboard program and blocks until it exits.
func Run(controller *usage.Controller) error {
	p := tea.NewProgram(New(controller), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

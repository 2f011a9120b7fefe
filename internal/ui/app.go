package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/stm2mon/internal/ingest"
	"github.com/five82/stm2mon/internal/logtail"
	"github.com/five82/stm2mon/internal/prefs"
	"github.com/five82/stm2mon/internal/state"
)

// Controller is the part of ingest.Controller the console drives.
type Controller interface {
	Start(ctx context.Context, cfg ingest.RunConfig) error
	Stop() error
	Running() bool
}

var _ Controller = (*ingest.Controller)(nil)

const (
	previewLines = 3
	previewEvery = 2 * time.Second
)

// Status line texts.
const (
	statusWaiting  = "Waiting…"
	statusStarting = "Starting…"
	statusStarted  = "Logging started…"
	statusStopping = "Stopping…"
	statusStopped  = "Stopped"
)

// Options configures the UI.
type Options struct {
	Context       context.Context
	Controller    Controller
	Store         *state.Store
	AlertFraction float64
	Form          ingest.RunInput
	Prefs         prefs.Prefs
	PrefsPath     string
	ThemeName     string
	PollTick      time.Duration
	Logger        *slog.Logger
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx           context.Context
	ctrl          Controller
	store         *state.Store
	alertFraction float64
	prefs         prefs.Prefs
	prefsPath     string
	pollTick      time.Duration
	logger        *slog.Logger
	keys          keyMap

	// UI state
	theme    Theme
	width    int
	height   int
	ready    bool
	showHelp bool
	form     form
	bar      progress.Model

	// Session state
	busy     bool
	status   string
	statusOK bool
	snapshot state.Snapshot

	// Last lines of the log file named in the form, refreshed while idle.
	preview     []string
	previewPath string
	previewErr  error
	previewAt   time.Time
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	pollTick := opts.PollTick
	if pollTick == 0 {
		pollTick = 250 * time.Millisecond
	}

	themeName := opts.ThemeName
	if themeName == "" {
		themeName = opts.Prefs.Theme
	}

	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	theme := GetTheme(themeName)
	return Model{
		ctx:           ctx,
		ctrl:          opts.Controller,
		store:         opts.Store,
		alertFraction: opts.AlertFraction,
		prefs:         opts.Prefs,
		prefsPath:     prefsPath,
		pollTick:      pollTick,
		logger:        logger,
		keys:          DefaultKeyMap(),
		theme:         theme,
		form:          newForm(opts.Form),
		bar:           newProgressBar(theme),
		status:        statusWaiting,
		statusOK:      true,
	}
}

func newProgressBar(t Theme) progress.Model {
	return progress.New(
		progress.WithSolidFill(t.Accent),
		progress.WithoutPercentage(),
	)
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tickCmd(m.pollTick)}
	if m.store != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.store))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = max(msg.Width-labelWidth-10, 10)
		m.ready = true
		return m, nil

	case tickMsg:
		var cmds []tea.Cmd
		if m.store != nil {
			cmds = append(cmds, fetchSnapshotCmd(m.store))
		}
		if cmd := m.maybePreview(time.Time(msg)); cmd != nil {
			cmds = append(cmds, cmd)
		}
		cmds = append(cmds, tickCmd(m.pollTick))
		return m, tea.Batch(cmds...)

	case previewMsg:
		m.preview = msg.lines
		m.previewPath = msg.path
		m.previewErr = msg.err
		return m, nil

	case snapshotMsg:
		m.applySnapshot(state.Snapshot(msg))
		return m, nil

	case startedMsg:
		m.busy = false
		if msg.err != nil {
			m.setError("Start failed", msg.err)
			return m, nil
		}
		m.setStatus(statusStarted, true)
		m.rememberRun(msg.input)
		return m, fetchSnapshotCmd(m.store)

	case stoppedMsg:
		m.busy = false
		if msg.err != nil {
			m.setError("Stop failed", msg.err)
			return m, nil
		}
		m.setStatus(statusStopped, true)
		return m, nil
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	return m.renderMain()
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		// Any key closes help
		m.showHelp = false
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.bar = newProgressBar(m.theme)
		m.bar.Width = max(m.width-labelWidth-10, 10)
		m.prefs.Theme = m.theme.Name
		m.savePrefs()
		return m, nil

	case key.Matches(msg, m.keys.Start):
		return m.start()

	case key.Matches(msg, m.keys.Stop):
		return m.stop()

	case key.Matches(msg, m.keys.Next):
		m.form.next()
		return m, nil

	case key.Matches(msg, m.keys.Prev):
		m.form.prev()
		return m, nil
	}

	return m, m.form.update(msg)
}

// start validates the form synchronously and runs Controller.Start off the
// UI goroutine, since the settings write may wait on the network.
func (m Model) start() (tea.Model, tea.Cmd) {
	if m.busy || m.ctrl == nil {
		return m, nil
	}
	input := m.form.Input()
	cfg, err := input.Config(m.alertFraction)
	if err != nil {
		m.setError("Start failed", err)
		return m, nil
	}
	m.busy = true
	m.setStatus(statusStarting, true)
	ctx, ctrl := m.ctx, m.ctrl
	return m, func() tea.Msg {
		return startedMsg{input: input, err: ctrl.Start(ctx, cfg)}
	}
}

func (m Model) stop() (tea.Model, tea.Cmd) {
	if m.busy || m.ctrl == nil {
		return m, nil
	}
	m.busy = true
	m.setStatus(statusStopping, true)
	ctrl := m.ctrl
	return m, func() tea.Msg {
		return stoppedMsg{err: ctrl.Stop()}
	}
}

// maybePreview refreshes the file preview while no session is running, so
// the operator can check the path before starting.
func (m *Model) maybePreview(now time.Time) tea.Cmd {
	if m.snapshot.Status == state.StatusRunning {
		return nil
	}
	path := m.form.Input().LogPath
	if path == "" {
		m.preview, m.previewPath, m.previewErr = nil, "", nil
		return nil
	}
	if path == m.previewPath && now.Sub(m.previewAt) < previewEvery {
		return nil
	}
	m.previewAt = now
	return previewCmd(path)
}

func (m *Model) applySnapshot(snap state.Snapshot) {
	prev := m.snapshot
	m.snapshot = snap
	if m.busy {
		return
	}
	// A session that ends on its own reports here rather than through Stop.
	if snap.Status == state.StatusFailed && (prev.Status != state.StatusFailed || prev.SessionID != snap.SessionID) {
		m.setError("Logging stopped", snap.LastError)
	}
}

func (m *Model) setStatus(text string, ok bool) {
	m.status = text
	m.statusOK = ok
}

func (m *Model) setError(prefix string, err error) {
	m.setStatus(errorText(prefix, err), false)
	m.logger.Warn(prefix, "category", ingest.Category(err), "error", err)
}

func errorText(prefix string, err error) string {
	if err == nil {
		return prefix
	}
	if errors.Is(err, ingest.ErrNotRunning) {
		return "Not running"
	}
	if errors.Is(err, ingest.ErrAlreadyRunning) {
		return "Already running"
	}
	if category := ingest.Category(err); category != "" {
		return fmt.Sprintf("%s (%s): %v", prefix, category, err)
	}
	return fmt.Sprintf("%s: %v", prefix, err)
}

func (m *Model) rememberRun(input ingest.RunInput) {
	m.prefs.LastRun = input
	m.savePrefs()
}

func (m *Model) savePrefs() {
	if err := prefs.Save(m.prefsPath, m.prefs); err != nil {
		m.logger.Warn("save prefs failed", "error", err)
	}
}

// Messages

type tickMsg time.Time

type snapshotMsg state.Snapshot

type startedMsg struct {
	input ingest.RunInput
	err   error
}

type stoppedMsg struct {
	err error
}

type previewMsg struct {
	path  string
	lines []string
	err   error
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshotCmd(store *state.Store) tea.Cmd {
	if store == nil {
		return nil
	}
	return func() tea.Msg {
		return snapshotMsg(store.Snapshot())
	}
}

func previewCmd(path string) tea.Cmd {
	return func() tea.Msg {
		lines, err := logtail.Preview(path, previewLines)
		return previewMsg{path: path, lines: lines, err: err}
	}
}

// Run starts the Bubble Tea program and blocks until the operator quits or
// the context is cancelled.
func Run(opts Options) error {
	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && m.ctx.Err() != nil {
		return nil
	}
	return err
}

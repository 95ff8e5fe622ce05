// Package monitor implements the live sensor monitoring TUI using
// BubbleTea with real-time sparkline charts and color-coded bounds.
package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/luki/hwsensors/internal/chart"
	"github.com/luki/hwsensors/internal/history"
	"github.com/luki/hwsensors/internal/indicator"
	"github.com/luki/hwsensors/internal/sensor"
	"github.com/luki/hwsensors/internal/store"
)

const (
	defaultPollInterval = 1 * time.Second
	defaultHistorySize  = 600 // 10 minutes at 1s interval
)

// Options configures the live monitor.
type Options struct {
	Indicator *indicator.Indicator
	// Plugin is re-enumerated on rescan.
	Plugin       indicator.Plugin
	PollInterval time.Duration
	HistorySize  int
	// Store records every poll when set.
	Store  *store.DiskStore
	Clock  clock.Clock
	Logger *zap.SugaredLogger
	// StartErr is shown until the user quits. The monitor runs with an
	// empty dashboard when the backend failed to start.
	StartErr error
}

// ── Messages ─────────────────────────────────────────────────────────

type tickMsg time.Time

type sensorDataMsg struct {
	readings []sensor.Reading
	time     time.Time
}

type rescanMsg struct{ sensors int }

// ── Model ────────────────────────────────────────────────────────────

// Model is the BubbleTea model for the live monitor.
type Model struct {
	opts      Options
	readings  []sensor.Reading
	history   *history.Store
	err       error
	width     int
	height    int
	scroll    int
	lastPoll  time.Time
	startTime time.Time
	paused    bool
	status    string
}

// New creates the initial model for the live monitor.
func New(opts Options) Model {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = defaultHistorySize
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	return Model{
		opts:      opts,
		history:   history.NewStore(opts.HistorySize),
		err:       opts.StartErr,
		startTime: opts.Clock.Now(),
	}
}

// Run starts the monitor and blocks until the user quits.
func Run(opts Options) error {
	m := New(opts)
	defer func() {
		if m.opts.Store != nil {
			if err := m.opts.Store.Close(); err != nil {
				m.opts.Logger.Warnw("closing data store", "error", err)
			}
		}
	}()
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return errors.Wrap(err, "monitor")
}

// ── Commands ─────────────────────────────────────────────────────────

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.opts.PollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) pollCmd() tea.Cmd {
	ind, clk := m.opts.Indicator, m.opts.Clock
	return func() tea.Msg {
		ind.UpdateAll()
		return sensorDataMsg{readings: ind.Readings(), time: clk.Now()}
	}
}

func (m Model) rescanCmd() tea.Cmd {
	ind, p := m.opts.Indicator, m.opts.Plugin
	return func() tea.Msg {
		return rescanMsg{sensors: ind.Rescan(p)}
	}
}

// ── Init / Update ────────────────────────────────────────────────────

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.pollCmd(), m.tickCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			if m.scroll > 0 {
				m.scroll--
			}
		case "down", "j":
			m.scroll++
		case "home":
			m.scroll = 0
		case " ", "p":
			m.paused = !m.paused
		case "r":
			if m.opts.Plugin != nil {
				m.status = "rescanning..."
				return m, m.rescanCmd()
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		if m.paused {
			return m, m.tickCmd()
		}
		return m, tea.Batch(m.pollCmd(), m.tickCmd())

	case rescanMsg:
		m.status = fmt.Sprintf("rescan found %d sensors", msg.sensors)
		m.opts.Logger.Infow("sensors rescanned", "sensors", msg.sensors)
		return m, m.pollCmd()

	case sensorDataMsg:
		m.record(msg)
	}

	return m, nil
}

func (m *Model) record(msg sensorDataMsg) {
	m.readings = msg.readings
	m.lastPoll = msg.time

	keep := make(map[string]bool, len(msg.readings))
	for _, r := range msg.readings {
		key := r.StableKey()
		keep[key] = true
		if r.HasValue && r.Err == "" {
			m.history.Record(key, r.Value, msg.time)
		}
	}
	m.history.Prune(keep)

	if m.opts.Store != nil {
		if err := m.opts.Store.Write(msg.readings, msg.time); err != nil {
			m.err = errors.Wrap(err, "write")
			m.opts.Logger.Errorw("recording readings", "error", err)
		}
	}
}

// ── Color palette ────────────────────────────────────────────────────

var (
	colorTitleBg  = lipgloss.Color("17")
	colorTitleFg  = lipgloss.Color("51")
	colorBorder   = lipgloss.Color("62")
	colorChipName = lipgloss.Color("147")
	colorLabel    = lipgloss.Color("252")
	colorDim      = lipgloss.Color("240")
	colorFooterBg = lipgloss.Color("235")
	colorOk       = lipgloss.Color("78")
	colorWarn     = lipgloss.Color("220")
	colorLow      = lipgloss.Color("208")
	colorCrit     = lipgloss.Color("196")
	colorPaused   = lipgloss.Color("196")
)

// ── View ─────────────────────────────────────────────────────────────

func (m Model) View() string {
	if m.width == 0 {
		return "  Initializing..."
	}

	contentWidth := max(m.width-2, 40)

	var sections []string

	sections = append(sections, m.renderTitleBar(contentWidth))

	if m.err != nil {
		errBox := lipgloss.NewStyle().
			Foreground(colorCrit).
			Bold(true).
			Width(contentWidth).
			Padding(0, 1).
			Render(fmt.Sprintf(" ERROR: %v", m.err))
		sections = append(sections, errBox)
	}

	if len(m.readings) == 0 {
		waiting := lipgloss.NewStyle().
			Foreground(colorDim).
			Width(contentWidth).
			Align(lipgloss.Center).
			Padding(2, 0).
			Render("Waiting for sensor data... (r to rescan)")
		sections = append(sections, waiting)
	} else {
		sections = append(sections, m.renderSensorPanels(contentWidth)...)
	}

	sections = append(sections, m.renderFooter(contentWidth))

	content := lipgloss.JoinVertical(lipgloss.Left, sections...)

	lines := strings.Split(content, "\n")
	visibleLines := max(m.height, 5)
	maxScroll := max(len(lines)-visibleLines, 0)
	start := min(m.scroll, maxScroll)
	end := min(start+visibleLines, len(lines))

	return strings.Join(lines[start:end], "\n")
}

func (m Model) renderTitleBar(width int) string {
	logo := lipgloss.NewStyle().
		Bold(true).
		Foreground(colorTitleFg).
		Render("SENSORS MONITOR")

	dimS := lipgloss.NewStyle().Foreground(colorDim)
	var statusParts []string

	statusParts = append(statusParts,
		dimS.Render(fmt.Sprintf("up %s", fmtDuration(m.opts.Clock.Since(m.startTime)))))

	if !m.lastPoll.IsZero() {
		statusParts = append(statusParts, dimS.Render(m.lastPoll.Format("15:04:05")))
	}

	if m.status != "" {
		statusParts = append(statusParts, dimS.Render(m.status))
	}

	if m.paused {
		p := lipgloss.NewStyle().
			Foreground(colorPaused).
			Bold(true).
			Render("PAUSED")
		statusParts = append(statusParts, p)
	}

	if m.opts.Store != nil {
		rec := lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Render("REC") +
			dimS.Render(" "+m.opts.Store.Dir())
		statusParts = append(statusParts, rec)
	}

	sep := dimS.Render(" │ ")
	right := strings.Join(statusParts, sep)

	gap := max(width-lipgloss.Width(logo)-lipgloss.Width(right)-4, 1)

	return lipgloss.NewStyle().
		Background(colorTitleBg).
		Width(width).
		Padding(0, 1).
		Render(logo + strings.Repeat(" ", gap) + right)
}

type chipGroup struct {
	chip     string
	readings []sensor.Reading
}

func groupByChip(readings []sensor.Reading) []*chipGroup {
	index := make(map[string]*chipGroup)
	var groups []*chipGroup
	for _, r := range readings {
		g, ok := index[r.Chip]
		if !ok {
			g = &chipGroup{chip: r.Chip}
			index[r.Chip] = g
			groups = append(groups, g)
		}
		g.readings = append(g.readings, r)
	}
	return groups
}

func (m Model) renderSensorPanels(totalWidth int) []string {
	innerWidth := max(totalWidth-4, 30)
	chartWidth := min(max(innerWidth-66, 15), 140)

	labelW := 14
	valueW := 9

	dimS := lipgloss.NewStyle().Foreground(colorDim)
	valS := lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	frameL := lipgloss.NewStyle().Foreground(colorBorder).Render("▕")
	frameR := lipgloss.NewStyle().Foreground(colorBorder).Render("▏")

	var panels []string

	for _, g := range groupByChip(m.readings) {
		var rows []string

		friendlyText := lipgloss.NewStyle().
			Bold(true).
			Foreground(colorChipName).
			Render(sensor.FriendlyName(g.chip))
		chipID := lipgloss.NewStyle().
			Foreground(lipgloss.Color("238")).
			Render(g.chip)
		rows = append(rows, friendlyText+"  "+chipID)

		var lastPts []history.Point

		for _, r := range g.readings {
			label := lipgloss.NewStyle().
				Foreground(colorLabel).
				Width(labelW).
				Render(truncate(r.Label, labelW))

			th := chart.ThresholdsOf(r)
			value := lipgloss.NewStyle().
				Width(valueW).
				Align(lipgloss.Right).
				Render(chart.RenderValue(r.Value, r.Kind, th))

			hist := m.history.Get(r.StableKey())
			if hist == nil || r.Err != "" {
				msg := "no data"
				if r.Err != "" {
					msg = "read error: " + r.Err
				}
				rows = append(rows, label+" "+value+" "+
					lipgloss.NewStyle().Foreground(colorCrit).Render(truncate(msg, chartWidth+30)))
				continue
			}

			rangeMin, rangeMax := chart.Range(hist.Min, hist.Peak, th)
			pts := hist.LastNPoints(chartWidth)
			lastPts = pts
			spark := chart.RenderSparklinePoints(pts, chartWidth, rangeMin, rangeMax, th)

			prec := "%5.1f"
			if r.Kind == sensor.KindFan {
				prec = "%5.0f"
			}
			stats := dimS.Render(" avg") + valS.Render(fmt.Sprintf(prec, hist.Avg())) +
				dimS.Render(" lo") + valS.Render(fmt.Sprintf(prec, hist.Min)) +
				dimS.Render(" pk") + valS.Render(fmt.Sprintf(prec, hist.Peak))

			var boundTags string
			if r.HasLow {
				boundTags += dimS.Render(" L") + lipgloss.NewStyle().Foreground(colorLow).Render(fmt.Sprintf("%g", r.Low))
			}
			if r.HasHigh {
				boundTags += dimS.Render(" H") + lipgloss.NewStyle().Foreground(colorCrit).Render(fmt.Sprintf("%g", r.High))
			}

			rows = append(rows, label+" "+value+" "+frameL+spark+frameR+stats+boundTags)
		}

		if lastPts != nil {
			timeline := chart.RenderTimeline(lastPts, chartWidth)
			if strings.TrimSpace(timeline) != "" {
				pad := strings.Repeat(" ", labelW+valueW+2)
				rows = append(rows, pad+" "+timeline)
			}
		}

		panel := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1).
			Width(totalWidth).
			Render(lipgloss.JoinVertical(lipgloss.Left, rows...))

		panels = append(panels, panel)
	}

	return panels
}

func (m Model) renderFooter(width int) string {
	okS := lipgloss.NewStyle().Foreground(colorOk).Render("██")
	warnS := lipgloss.NewStyle().Foreground(colorWarn).Render("██")
	lowS := lipgloss.NewStyle().Foreground(colorLow).Render("██")
	critS := lipgloss.NewStyle().Foreground(colorCrit).Render("██")
	tickS := lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Render("│")

	dimS := lipgloss.NewStyle().Foreground(colorDim)
	keyS := lipgloss.NewStyle().Foreground(colorLabel)
	legend := okS + dimS.Render(" ok ") +
		warnS + dimS.Render(" near ") +
		lowS + dimS.Render(" low ") +
		critS + dimS.Render(" high ") +
		tickS + dimS.Render(" 1min")

	keys := dimS.Render("q") + keyS.Render(":quit") +
		dimS.Render("  j/k") + keyS.Render(":scroll") +
		dimS.Render("  p") + keyS.Render(":pause") +
		dimS.Render("  r") + keyS.Render(":rescan")

	gap := max(width-lipgloss.Width(legend)-lipgloss.Width(keys)-4, 1)

	return lipgloss.NewStyle().
		Background(colorFooterBg).
		Width(width).
		Padding(0, 1).
		Render(legend + strings.Repeat(" ", gap) + keys)
}

func truncate(s string, w int) string {
	r := []rune(s)
	if len(r) <= w {
		return s
	}
	if w <= 3 {
		return string(r[:w])
	}
	return string(r[:w-1]) + "…"
}

func fmtDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}

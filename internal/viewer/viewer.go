// Package viewer implements the historical sensor data browser TUI
// with time scrubbing, day navigation, and sparkline windows.
package viewer

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"

	"github.com/luki/hwsensors/internal/chart"
	"github.com/luki/hwsensors/internal/history"
	"github.com/luki/hwsensors/internal/sensor"
	"github.com/luki/hwsensors/internal/store"
)

// Run launches the historical data viewer TUI over the logs in dir.
func Run(dir string) error {
	if dir == "" {
		dir = store.DefaultDir()
	}
	days, err := store.ListDays(dir)
	if err != nil {
		return err
	}
	if len(days) == 0 {
		return errors.Errorf("no history data found in %s", dir)
	}

	p := tea.NewProgram(
		initModel(dir, days),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	_, err = p.Run()
	return errors.Wrap(err, "viewer")
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
	colorLow      = lipgloss.Color("208")
	colorCrit     = lipgloss.Color("196")
)

// ── Model ────────────────────────────────────────────────────────────

// seriesInfo describes one recorded sensor.
type seriesInfo struct {
	chip   string
	label  string
	kind   sensor.Kind
	bounds chart.Thresholds
}

type model struct {
	dir      string
	days     []string // available dates, newest first
	dayIdx   int      // currently selected day
	rows     int      // readings in the current day
	sensors  []string // unique sensor keys (sorted)
	cursor   int      // time cursor position
	scroll   int      // vertical scroll offset
	width    int
	height   int
	err      error

	timeSlots []time.Time            // unique timestamps (sorted)
	series    map[string][]dataPoint // sensor key -> sorted data points
	info      map[string]seriesInfo
}

type dataPoint struct {
	time  time.Time
	value float64
}

func initModel(dir string, days []string) model {
	m := model{
		dir:  dir,
		days: days,
	}
	m.loadDay()
	return m
}

func (m *model) loadDay() {
	readings, err := store.LoadDay(m.dir, m.days[m.dayIdx])
	if err != nil {
		m.err = err
		return
	}
	m.err = nil
	m.index(readings)
}

func (m *model) index(readings []store.StoredReading) {
	m.rows = len(readings)
	timeSet := make(map[int64]time.Time)
	seriesMap := make(map[string][]dataPoint)
	info := make(map[string]seriesInfo)

	for _, r := range readings {
		key := r.Key()
		timeSet[r.Time.Unix()] = r.Time
		seriesMap[key] = append(seriesMap[key], dataPoint{time: r.Time, value: r.Value})

		// The latest row carries the current bounds.
		info[key] = seriesInfo{
			chip:  r.Chip,
			label: r.Label,
			kind:  r.Kind,
			bounds: chart.Thresholds{
				Low: r.Low, High: r.High, HasLow: r.HasLow, HasHigh: r.HasHigh,
			},
		}
	}

	sensors := make([]string, 0, len(info))
	for k := range info {
		sensors = append(sensors, k)
	}
	sort.Strings(sensors)
	m.sensors = sensors

	times := make([]time.Time, 0, len(timeSet))
	for _, t := range timeSet {
		times = append(times, t)
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	m.timeSlots = times

	for k, pts := range seriesMap {
		sort.Slice(pts, func(i, j int) bool { return pts[i].time.Before(pts[j].time) })
		seriesMap[k] = pts
	}
	m.series = seriesMap
	m.info = info

	m.cursor = max(len(m.timeSlots)-1, 0)
	m.scroll = 0
}

// ── Init / Update ────────────────────────────────────────────────────

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		last := max(len(m.timeSlots)-1, 0)
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit

		case "left", "h":
			m.cursor = max(m.cursor-1, 0)
		case "right", "l":
			m.cursor = min(m.cursor+1, last)
		case "shift+left", "H":
			m.cursor = max(m.cursor-60, 0)
		case "shift+right", "L":
			m.cursor = min(m.cursor+60, last)
		case "home":
			m.cursor = 0
		case "end":
			m.cursor = last

		case "[":
			if m.dayIdx < len(m.days)-1 {
				m.dayIdx++
				m.loadDay()
			}
		case "]":
			if m.dayIdx > 0 {
				m.dayIdx--
				m.loadDay()
			}

		case "up", "k":
			if m.scroll > 0 {
				m.scroll--
			}
		case "down", "j":
			m.scroll++
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	}

	return m, nil
}

// ── View ─────────────────────────────────────────────────────────────

func (m model) View() string {
	if m.width == 0 {
		return "  Loading..."
	}

	contentWidth := max(m.width-2, 40)

	var sections []string

	sections = append(sections, m.renderTitle(contentWidth))

	if m.err != nil {
		errBox := lipgloss.NewStyle().
			Foreground(colorCrit).
			Bold(true).
			Padding(0, 1).
			Render(fmt.Sprintf("ERROR: %v", m.err))
		sections = append(sections, errBox)
	}

	if len(m.timeSlots) == 0 {
		empty := lipgloss.NewStyle().
			Foreground(colorDim).
			Padding(2, 0).
			Align(lipgloss.Center).
			Width(contentWidth).
			Render("No data for this day.")
		sections = append(sections, empty)
	} else {
		sections = append(sections, m.renderCursorInfo(contentWidth))
		sections = append(sections, m.renderPanels(contentWidth)...)
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

func (m model) renderTitle(width int) string {
	logo := lipgloss.NewStyle().
		Bold(true).
		Foreground(colorTitleFg).
		Render("SENSORS HISTORY")

	dayText := lipgloss.NewStyle().
		Foreground(lipgloss.Color("214")).
		Bold(true).
		Render(m.days[m.dayIdx])

	nav := lipgloss.NewStyle().
		Foreground(colorDim).
		Render(fmt.Sprintf("  [ %d/%d ]", m.dayIdx+1, len(m.days)))

	dataInfo := ""
	if len(m.timeSlots) > 0 {
		first := m.timeSlots[0].Format("15:04:05")
		last := m.timeSlots[len(m.timeSlots)-1].Format("15:04:05")
		dataInfo = lipgloss.NewStyle().
			Foreground(colorDim).
			Render(fmt.Sprintf("  %s - %s  (%d readings, %d sensors)",
				first, last, m.rows, len(m.sensors)))
	}

	right := dayText + nav + dataInfo
	gap := max(width-lipgloss.Width(logo)-lipgloss.Width(right)-4, 1)

	return lipgloss.NewStyle().
		Background(colorTitleBg).
		Width(width).
		Padding(0, 1).
		Render(logo + strings.Repeat(" ", gap) + right)
}

func (m model) renderCursorInfo(width int) string {
	if m.cursor < 0 || m.cursor >= len(m.timeSlots) {
		return ""
	}

	ts := lipgloss.NewStyle().
		Foreground(lipgloss.Color("214")).
		Bold(true).
		Render(m.timeSlots[m.cursor].Format("15:04:05"))

	pos := lipgloss.NewStyle().
		Foreground(colorDim).
		Render(fmt.Sprintf("  %d/%d", m.cursor+1, len(m.timeSlots)))

	scrubber := m.renderScrubber(max(width-30, 10))

	return lipgloss.NewStyle().
		Padding(0, 1).
		Render("  " + ts + pos + "  " + scrubber)
}

func (m model) renderScrubber(width int) string {
	if len(m.timeSlots) == 0 || width <= 0 {
		return ""
	}

	pos := 0
	if len(m.timeSlots) > 1 {
		pos = m.cursor * (width - 1) / (len(m.timeSlots) - 1)
	}
	pos = min(pos, width-1)

	var sb strings.Builder
	dimS := lipgloss.NewStyle().Foreground(lipgloss.Color("237"))
	curS := lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	tickS := lipgloss.NewStyle().Foreground(lipgloss.Color("239"))

	for i := 0; i < width; i++ {
		if i == pos {
			sb.WriteString(curS.Render("◆"))
			continue
		}
		slotIdx := 0
		if len(m.timeSlots) > 1 && width > 1 {
			slotIdx = i * (len(m.timeSlots) - 1) / (width - 1)
		}
		if slotIdx > 0 && slotIdx < len(m.timeSlots) &&
			m.timeSlots[slotIdx].Hour() != m.timeSlots[slotIdx-1].Hour() {
			sb.WriteString(tickS.Render("│"))
			continue
		}
		sb.WriteString(dimS.Render("─"))
	}

	return sb.String()
}

func (m model) renderPanels(totalWidth int) []string {
	if m.cursor < 0 || m.cursor >= len(m.timeSlots) {
		return nil
	}

	cursorTime := m.timeSlots[m.cursor]

	innerWidth := max(totalWidth-4, 30)
	chartWidth := min(max(innerWidth-66, 15), 140)

	labelW := 16
	valueW := 10

	type chipGroup struct {
		chip    string
		sensors []string
	}
	chipMap := make(map[string]*chipGroup)
	var chipOrder []string

	for _, key := range m.sensors {
		chip := m.info[key].chip
		g, ok := chipMap[chip]
		if !ok {
			g = &chipGroup{chip: chip}
			chipMap[chip] = g
			chipOrder = append(chipOrder, chip)
		}
		g.sensors = append(g.sensors, key)
	}

	dimS := lipgloss.NewStyle().Foreground(colorDim)
	valS := lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	frameL := lipgloss.NewStyle().Foreground(colorBorder).Render("▕")
	frameR := lipgloss.NewStyle().Foreground(colorBorder).Render("▏")

	var panels []string

	for _, chipName := range chipOrder {
		g := chipMap[chipName]

		var rows []string

		friendlyText := lipgloss.NewStyle().
			Bold(true).
			Foreground(colorChipName).
			Render(sensor.FriendlyName(g.chip))
		chipID := lipgloss.NewStyle().
			Foreground(colorDim).
			Render(g.chip)
		rows = append(rows, friendlyText+"  "+chipID)

		colLabel := lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Width(labelW).Render("sensor")
		colVal := lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Width(valueW).Align(lipgloss.Right).Render("value")
		colHist := lipgloss.NewStyle().Foreground(lipgloss.Color("237")).
			Render(strings.Repeat(" ", max(chartWidth/2-3, 0)) + "history")
		rows = append(rows, colLabel+" "+colVal+"  "+colHist)

		rows = append(rows, lipgloss.NewStyle().
			Foreground(lipgloss.Color("237")).
			Render(strings.Repeat("─", innerWidth)))

		for _, key := range g.sensors {
			pts := m.series[key]
			if len(pts) == 0 {
				continue
			}
			info := m.info[key]
			th := info.bounds

			cur := valueAtTime(pts, cursorTime)
			lo, pk, avg := stats(pts)
			rangeMin, rangeMax := chart.Range(lo, pk, th)

			sparkPts := buildSparkWindow(pts, m.cursor, chartWidth, m.timeSlots)

			label := lipgloss.NewStyle().
				Foreground(colorLabel).
				Bold(true).
				Width(labelW).
				Render(truncate(info.label, labelW))

			value := lipgloss.NewStyle().
				Width(valueW).
				Align(lipgloss.Right).
				Render(chart.RenderValue(cur, info.kind, th))

			spark := chart.RenderSparklinePoints(sparkPts, chartWidth, rangeMin, rangeMax, th)

			prec := "%5.1f"
			if info.kind == sensor.KindFan {
				prec = "%5.0f"
			}
			statText := dimS.Render("avg") + valS.Render(fmt.Sprintf(prec, avg)) +
				dimS.Render(" lo") + valS.Render(fmt.Sprintf(prec, lo)) +
				dimS.Render(" pk") + valS.Render(fmt.Sprintf(prec, pk))

			var boundTags string
			if th.HasLow {
				boundTags += " " + lipgloss.NewStyle().Foreground(colorLow).Render(fmt.Sprintf("L:%g", th.Low))
			}
			if th.HasHigh {
				boundTags += " " + lipgloss.NewStyle().Foreground(colorCrit).Render(fmt.Sprintf("H:%g", th.High))
			}

			rows = append(rows, label+" "+value+" "+frameL+spark+frameR+" "+statText+boundTags)

			timeline := chart.RenderTimeline(sparkPts, chartWidth)
			if strings.TrimSpace(timeline) != "" {
				rows = append(rows, strings.Repeat(" ", labelW+valueW+2)+" "+timeline)
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

func (m model) renderFooter(width int) string {
	dimS := lipgloss.NewStyle().Foreground(colorDim)
	keyS := lipgloss.NewStyle().Foreground(colorLabel)

	keys := dimS.Render("q") + keyS.Render(":quit") +
		dimS.Render("  h/l") + keyS.Render(":scrub") +
		dimS.Render("  H/L") + keyS.Render(":skip 1m") +
		dimS.Render("  home/end") + keyS.Render(":jump") +
		dimS.Render("  [/]") + keyS.Render(":day") +
		dimS.Render("  j/k") + keyS.Render(":scroll")

	return lipgloss.NewStyle().
		Background(colorFooterBg).
		Width(width).
		Padding(0, 1).
		Render(keys)
}

// ── Helpers ──────────────────────────────────────────────────────────

func stats(pts []dataPoint) (lo, pk, avg float64) {
	lo, pk = math.MaxFloat64, -math.MaxFloat64
	for _, p := range pts {
		lo = math.Min(lo, p.value)
		pk = math.Max(pk, p.value)
		avg += p.value
	}
	return lo, pk, avg / float64(len(pts))
}

// valueAtTime returns the value of the point nearest to t. pts is sorted
// and non-empty.
func valueAtTime(pts []dataPoint, t time.Time) float64 {
	best := pts[0].value
	bestDiff := absDuration(pts[0].time.Sub(t))
	for _, p := range pts {
		diff := absDuration(p.time.Sub(t))
		if diff < bestDiff {
			bestDiff = diff
			best = p.value
		}
		if p.time.After(t) && diff > bestDiff {
			break
		}
	}
	return best
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// buildSparkWindow returns the points of the width time slots ending at
// the cursor.
func buildSparkWindow(pts []dataPoint, cursorIdx int, width int, timeSlots []time.Time) []history.Point {
	if len(pts) == 0 || len(timeSlots) == 0 {
		return nil
	}

	byTime := make(map[int64]float64, len(pts))
	for _, p := range pts {
		byTime[p.time.Unix()] = p.value
	}

	var result []history.Point
	for slotIdx := max(cursorIdx-width+1, 0); slotIdx <= cursorIdx && slotIdx < len(timeSlots); slotIdx++ {
		t := timeSlots[slotIdx]
		if v, ok := byTime[t.Unix()]; ok {
			result = append(result, history.Point{Value: v, Time: t})
		}
	}
	return result
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

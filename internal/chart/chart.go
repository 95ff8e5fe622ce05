// Package chart provides sparkline rendering with color-coded sensor
// bounds, minute tick marks and timeline labels.
package chart

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/luki/hwsensors/internal/history"
	"github.com/luki/hwsensors/internal/sensor"
)

var sparkBlocks = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

var (
	colorOk   = lipgloss.Color("78")  // soft green
	colorNear = lipgloss.Color("220") // yellow
	colorLow  = lipgloss.Color("208") // orange
	colorOver = lipgloss.Color("196") // red
)

// Thresholds are the optional bounds a value is colored against.
type Thresholds struct {
	Low     float64
	High    float64
	HasLow  bool
	HasHigh bool
}

// ThresholdsOf returns the bounds carried by r.
func ThresholdsOf(r sensor.Reading) Thresholds {
	return Thresholds{Low: r.Low, High: r.High, HasLow: r.HasLow, HasHigh: r.HasHigh}
}

// Over reports whether v is at or above the high bound.
func (t Thresholds) Over(v float64) bool {
	return t.HasHigh && v >= t.High
}

// Under reports whether v is below the low bound.
func (t Thresholds) Under(v float64) bool {
	return t.HasLow && v < t.Low
}

// ValueColor returns the color for v given the bounds.
func ValueColor(v float64, t Thresholds) lipgloss.Color {
	switch {
	case t.Over(v):
		return colorOver
	case t.Under(v):
		return colorLow
	case t.HasHigh && t.High > 0 && v >= t.High*0.85:
		return colorNear
	default:
		return colorOk
	}
}

// FormatValue formats v with the unit symbol of kind.
func FormatValue(v float64, kind sensor.Kind) string {
	switch kind {
	case sensor.KindVoltage:
		return fmt.Sprintf("%6.3f%s", v, kind.Symbol())
	case sensor.KindFan:
		return fmt.Sprintf("%5.0f %s", v, kind.Symbol())
	default:
		return fmt.Sprintf("%5.1f%s", v, kind.Symbol())
	}
}

// RenderValue renders v with color coding.
func RenderValue(v float64, kind sensor.Kind, t Thresholds) string {
	style := lipgloss.NewStyle().Foreground(ValueColor(v, t))
	if t.Over(v) {
		style = style.Bold(true)
	}
	return style.Render(FormatValue(v, kind))
}

// RenderSparkline renders a sparkline from bare values (no timestamp ticks).
func RenderSparkline(values []float64, width int, rangeMin, rangeMax float64, t Thresholds) string {
	if width <= 0 {
		return ""
	}
	pts := make([]history.Point, len(values))
	for i, v := range values {
		pts[i] = history.Point{Value: v}
	}
	return RenderSparklinePoints(pts, width, rangeMin, rangeMax, t)
}

// RenderSparklinePoints renders a sparkline with minute tick marks on the
// timeline. A subtle pipe is drawn at each minute boundary.
func RenderSparklinePoints(points []history.Point, width int, rangeMin, rangeMax float64, t Thresholds) string {
	if width <= 0 {
		return ""
	}

	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("236"))
	if len(points) == 0 {
		return dim.Render(strings.Repeat("╌", width))
	}

	if len(points) > width {
		points = points[len(points)-width:]
	}

	padLen := width - len(points)
	span := rangeMax - rangeMin
	if span <= 0 {
		span = 1
	}

	var sb strings.Builder
	for i := 0; i < padLen; i++ {
		sb.WriteString(dim.Render("╌"))
	}

	tickStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("239"))

	for i, p := range points {
		if isMinuteTick(points, i) {
			sb.WriteString(tickStyle.Render("│"))
			continue
		}
		norm := math.Max(0, math.Min(1, (p.Value-rangeMin)/span))
		idx := min(int(norm*7), 7)

		style := lipgloss.NewStyle().Foreground(ValueColor(p.Value, t))
		if t.Over(p.Value) {
			style = style.Bold(true)
		}
		sb.WriteString(style.Render(string(sparkBlocks[idx])))
	}

	return sb.String()
}

func isMinuteTick(points []history.Point, i int) bool {
	p := points[i]
	if p.Time.IsZero() {
		return false
	}
	if p.Time.Second() == 0 {
		return true
	}
	return i > 0 && !points[i-1].Time.IsZero() && p.Time.Minute() != points[i-1].Time.Minute()
}

// RenderTimeline renders the time labels under the sparkline, showing
// HH:MM at each minute tick position.
func RenderTimeline(points []history.Point, width int) string {
	if len(points) == 0 || width <= 0 {
		return ""
	}

	if len(points) > width {
		points = points[len(points)-width:]
	}

	padLen := width - len(points)

	line := []rune(strings.Repeat(" ", width))

	lastEnd := -1
	for i, p := range points {
		if !isMinuteTick(points, i) {
			continue
		}
		label := p.Time.Format("15:04")
		start := max(padLen+i-2, 0)
		end := start + len(label)
		if end > width || start <= lastEnd+1 {
			continue
		}
		for j, ch := range label {
			line[start+j] = ch
		}
		lastEnd = end
	}

	return lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Render(string(line))
}

// Range returns a display range around lo..hi that leaves room for the
// high bound, padded by a tenth of the span. Low bounds never widen the
// range: drivers report placeholders such as -273.15 for them. The range
// stays above zero unless the data itself goes negative.
func Range(lo, hi float64, t Thresholds) (float64, float64) {
	if t.HasHigh && t.High > hi {
		hi = t.High
	}
	pad := (hi - lo) / 10
	if pad <= 0 {
		pad = math.Max(math.Abs(hi)/10, 1)
	}
	floor := lo - pad
	if floor < 0 && lo >= 0 {
		floor = 0
	}
	return floor, hi + pad
}

package chart

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/luki/hwsensors/internal/history"
	"github.com/luki/hwsensors/internal/sensor"
)

func TestSparkline(t *testing.T) {
	values := []float64{30, 35, 40, 50, 60, 70, 80, 90, 100}
	result := RenderSparkline(values, 20, 20, 110, Thresholds{High: 80, HasHigh: true})
	if len(result) == 0 {
		t.Error("sparkline should not be empty")
	}
	if w := lipgloss.Width(result); w != 20 {
		t.Errorf("sparkline width: got %d, want 20", w)
	}
}

func TestSparklineMinuteTicks(t *testing.T) {
	base := time.Date(2026, 2, 21, 14, 0, 50, 0, time.Local)
	var pts []history.Point
	for i := 0; i < 20; i++ {
		pts = append(pts, history.Point{
			Value: float64(40 + i%5),
			Time:  base.Add(time.Duration(i) * time.Second),
		})
	}

	result := RenderSparklinePoints(pts, 20, 30, 55, Thresholds{})
	if !strings.Contains(result, "│") {
		t.Error("expected minute tick mark in sparkline")
	}
	if timeline := RenderTimeline(pts, 20); !strings.Contains(timeline, "14:01") {
		t.Errorf("timeline missing 14:01: %q", timeline)
	}
}

func TestValueColor(t *testing.T) {
	fan := Thresholds{Low: 300, HasLow: true}
	temp := Thresholds{High: 100, HasHigh: true}
	tests := []struct {
		name string
		v    float64
		t    Thresholds
		want lipgloss.Color
	}{
		{"fan ok", 1200, fan, colorOk},
		{"fan stalled", 0, fan, colorLow},
		{"temp ok", 50, temp, colorOk},
		{"temp near", 90, temp, colorNear},
		{"temp over", 100, temp, colorOver},
		{"no bounds", 1e6, Thresholds{}, colorOk},
	}
	for _, tt := range tests {
		if got := ValueColor(tt.v, tt.t); got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		v    float64
		kind sensor.Kind
		want string
	}{
		{1.152, sensor.KindVoltage, " 1.152V"},
		{1234, sensor.KindFan, " 1234 RPM"},
		{42.5, sensor.KindTemperature, " 42.5°C"},
	}
	for _, tt := range tests {
		if got := FormatValue(tt.v, tt.kind); got != tt.want {
			t.Errorf("FormatValue(%v, %v) = %q, want %q", tt.v, tt.kind, got, tt.want)
		}
	}
}

func TestRange(t *testing.T) {
	lo, hi := Range(40, 50, Thresholds{High: 80, HasHigh: true})
	if lo != 36 || hi != 84 {
		t.Errorf("Range: got %v..%v, want 36..84", lo, hi)
	}
	lo, hi = Range(1000, 1000, Thresholds{})
	if lo >= 1000 || hi <= 1000 {
		t.Errorf("flat Range: got %v..%v", lo, hi)
	}

	// NVMe drives report temp1_min as -273.15.
	nvme := Thresholds{Low: -273.15, HasLow: true, High: 84.85, HasHigh: true}
	lo, hi = Range(30, 35, nvme)
	if lo < 20 || lo > 30 {
		t.Errorf("Range with absolute-zero low bound: lo %v, want near the data", lo)
	}
	if hi < 84.85 {
		t.Errorf("Range with absolute-zero low bound: hi %v, want above 84.85", hi)
	}

	lo, _ = Range(-10, 5, Thresholds{})
	if lo >= -10 {
		t.Errorf("negative data Range: lo %v, want below -10", lo)
	}
}

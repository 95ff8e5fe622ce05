// Package store handles persistent CSV storage of sensor readings with
// daily file rotation.
package store

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/luki/hwsensors/internal/sensor"
)

const (
	dirName    = ".sensors-data"
	timeLayout = "2006-01-02T15:04:05"
	fileLayout = "2006-01-02"
)

var header = []string{"time", "chip", "label", "kind", "value", "low", "high"}

// DiskStore handles persistent CSV storage of sensor readings.
// Files are stored as <dir>/YYYY-MM-DD.csv with the format:
//
//	time,chip,label,kind,value,low,high
//
// Unset bounds are written as empty fields.
type DiskStore struct {
	dir     string
	current *os.File
	writer  *csv.Writer
	curDate string
}

// StoredReading is a single row from a CSV log file.
type StoredReading struct {
	Time    time.Time
	Chip    string
	Label   string
	Kind    sensor.Kind
	Value   float64
	Low     float64
	High    float64
	HasLow  bool
	HasHigh bool
}

// Key identifies the sensor the row belongs to, matching
// sensor.Reading.StableKey.
func (r StoredReading) Key() string {
	return r.Chip + "/" + r.Label
}

// New creates a disk store under dir, creating the directory if needed.
func New(dir string) (*DiskStore, error) {
	if dir == "" {
		dir = DefaultDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "cannot create data dir")
	}
	return &DiskStore{dir: dir}, nil
}

// Dir returns the directory the store writes to.
func (d *DiskStore) Dir() string { return d.dir }

// Write appends a batch of sensor readings to the CSV file of t's day.
// Readings without a good current value are skipped.
func (d *DiskStore) Write(readings []sensor.Reading, t time.Time) error {
	dateStr := t.Format(fileLayout)

	if d.curDate != dateStr || d.current == nil {
		if err := d.Close(); err != nil {
			return err
		}
		if err := d.open(dateStr); err != nil {
			return err
		}
	}

	ts := t.Format(timeLayout)
	for _, r := range readings {
		if !r.HasValue || r.Err != "" {
			continue
		}
		if err := d.writer.Write([]string{
			ts,
			r.Chip,
			r.Label,
			r.Kind.String(),
			formatFloat(r.Value),
			formatBound(r.Low, r.HasLow),
			formatBound(r.High, r.HasHigh),
		}); err != nil {
			return errors.Wrap(err, "write reading")
		}
	}
	d.writer.Flush()
	return d.writer.Error()
}

func (d *DiskStore) open(dateStr string) error {
	path := filepath.Join(d.dir, dateStr+".csv")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	info, err := f.Stat()
	if err != nil {
		return multierr.Append(errors.Wrapf(err, "stat %s", path), f.Close())
	}
	d.current = f
	d.writer = csv.NewWriter(f)
	d.curDate = dateStr
	if info.Size() == 0 {
		return d.writer.Write(header)
	}
	return nil
}

// Close flushes and closes the current file.
func (d *DiskStore) Close() error {
	var err error
	if d.writer != nil {
		d.writer.Flush()
		err = d.writer.Error()
		d.writer = nil
	}
	if d.current != nil {
		err = multierr.Append(err, d.current.Close())
		d.current = nil
	}
	return err
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func formatBound(v float64, ok bool) string {
	if !ok {
		return ""
	}
	return formatFloat(v)
}

// ListDays returns available log dates under dir (newest first).
func ListDays(dir string) ([]string, error) {
	if dir == "" {
		dir = DefaultDir()
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "list data dir")
	}

	var days []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".csv") {
			continue
		}
		day := strings.TrimSuffix(name, ".csv")
		if _, err := time.Parse(fileLayout, day); err != nil {
			continue
		}
		days = append(days, day)
	}
	slices.Sort(days)
	slices.Reverse(days)
	return days, nil
}

// LoadDay reads all readings from one day's CSV file under dir.
func LoadDay(dir, day string) ([]StoredReading, error) {
	if dir == "" {
		dir = DefaultDir()
	}
	return LoadFile(filepath.Join(dir, day+".csv"))
}

// LoadFile reads all readings from a CSV file. Rows that do not parse
// are skipped.
func LoadFile(path string) ([]StoredReading, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open log")
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}

	var readings []StoredReading
	for i, row := range records {
		if i == 0 && len(row) > 0 && row[0] == "time" {
			continue
		}
		r, ok := parseRow(row)
		if ok {
			readings = append(readings, r)
		}
	}

	return readings, nil
}

func parseRow(row []string) (StoredReading, bool) {
	if len(row) < len(header) {
		return StoredReading{}, false
	}
	t, err := time.ParseInLocation(timeLayout, row[0], time.Local)
	if err != nil {
		return StoredReading{}, false
	}
	kind, err := sensor.ParseKind(row[3])
	if err != nil {
		return StoredReading{}, false
	}
	value, err := strconv.ParseFloat(row[4], 64)
	if err != nil {
		return StoredReading{}, false
	}
	r := StoredReading{Time: t, Chip: row[1], Label: row[2], Kind: kind, Value: value}
	r.Low, r.HasLow = parseBound(row[5])
	r.High, r.HasHigh = parseBound(row[6])
	return r, true
}

func parseBound(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// DefaultDir returns ~/.sensors-data, or a relative .sensors-data when
// the home directory is unknown.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return dirName
	}
	return filepath.Join(home, dirName)
}

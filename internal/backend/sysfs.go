package backend

import (
	"cmp"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

const classPath = "sys/class/hwmon"

type busType int

const (
	busUnknown busType = iota
	busVirtual
	busISA
	busPCI
	busI2C
	busSPI
	busACPI
	busHID
	busSCSI
)

var featurePrefixes = map[string]FeatureType{
	"in":        FeatureIn,
	"fan":       FeatureFan,
	"temp":      FeatureTemp,
	"power":     FeaturePower,
	"energy":    FeatureEnergy,
	"curr":      FeatureCurr,
	"humidity":  FeatureHumidity,
	"intrusion": FeatureIntrusion,
}

var subfeatureSuffixes = map[FeatureType]map[string]SubfeatureType{
	FeatureIn: {
		"input": InInput, "min": InMin, "max": InMax,
		"lcrit": InLcrit, "crit": InCrit, "alarm": InAlarm,
	},
	FeatureFan: {
		"input": FanInput, "min": FanMin, "max": FanMax,
		"div": FanDiv, "alarm": FanAlarm,
	},
	FeatureTemp: {
		"input": TempInput, "min": TempMin, "max": TempMax, "crit": TempCrit,
		"max_hyst": TempMaxHyst, "crit_hyst": TempCritHyst, "lcrit": TempLcrit,
		"emergency": TempEmergency, "alarm": TempAlarm,
	},
	FeaturePower:     {"input": PowerInput, "average": PowerAverage, "max": PowerMax, "cap": PowerCap},
	FeatureEnergy:    {"input": EnergyInput},
	FeatureCurr:      {"input": CurrInput, "min": CurrMin, "max": CurrMax},
	FeatureHumidity:  {"input": HumidityInput},
	FeatureIntrusion: {"alarm": IntrusionAlarm},
}

// Sysfs exports values in milli-units (micro for power and energy).
var valueScales = map[FeatureType]float64{
	FeatureIn:        1000,
	FeatureFan:       1,
	FeatureTemp:      1000,
	FeaturePower:     1e6,
	FeatureEnergy:    1e6,
	FeatureCurr:      1000,
	FeatureHumidity:  1000,
	FeatureIntrusion: 1,
}

var attrRe = regexp.MustCompile(`^([a-z]+)(\d+)_([a-z_]+)$`)

// ChipOverrides adjusts what one chip reports, keyed by feature name
// ("temp1", "fan2"): Labels replaces the driver label, Ignore hides the
// feature entirely.
type ChipOverrides struct {
	Labels map[string]string
	Ignore []string
}

type subEntry struct {
	Subfeature
	path  string
	scale float64
}

type featureEntry struct {
	Feature
	labelPath string
	label     string
	subs      map[SubfeatureType]int
}

type chipEntry struct {
	prefix   string
	bus      busType
	busNr    int
	addr     int
	dir      string
	features []featureEntry
	subs     []subEntry
}

// Sysfs reads chips from /sys/class/hwmon. The chip table is built once in
// Init and released in Cleanup.
type Sysfs struct {
	root      string
	overrides map[string]ChipOverrides
	chips     []*chipEntry
}

// Option configures a Sysfs backend.
type Option func(*Sysfs)

// WithRoot reads the hwmon class below root instead of "/".
func WithRoot(root string) Option {
	return func(s *Sysfs) {
		if root != "" {
			s.root = root
		}
	}
}

// WithOverrides applies per-chip label overrides and ignore lists, keyed
// by chip name.
func WithOverrides(overrides map[string]ChipOverrides) Option {
	return func(s *Sysfs) { s.overrides = overrides }
}

// NewSysfs returns an uninitialized sysfs backend.
func NewSysfs(opts ...Option) *Sysfs {
	s := &Sysfs{root: "/"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init scans the hwmon class directory and builds the chip table.
func (s *Sysfs) Init() error {
	classDir := filepath.Join(s.root, classPath)
	entries, err := os.ReadDir(classDir)
	if err != nil {
		return &Error{Code: codeFor(err), Op: "init", Path: classDir, Err: err}
	}

	type hwmonDir struct {
		path string
		nr   int
	}
	var dirs []hwmonDir
	for _, entry := range entries {
		nr, err := strconv.Atoi(strings.TrimPrefix(entry.Name(), "hwmon"))
		if err != nil || !strings.HasPrefix(entry.Name(), "hwmon") {
			continue
		}
		dirs = append(dirs, hwmonDir{path: filepath.Join(classDir, entry.Name()), nr: nr})
	}
	slices.SortFunc(dirs, func(a, b hwmonDir) int { return cmp.Compare(a.nr, b.nr) })

	seen := make(map[string]bool)
	chips := make([]*chipEntry, 0, len(dirs))
	for _, d := range dirs {
		c, ok := readChip(d.path)
		if !ok {
			continue
		}
		var overrides ChipOverrides
		if name, err := c.name(); err == nil {
			// Virtual and ACPI chips share address 0; bump until unique.
			for seen[name] {
				c.addr++
				name, _ = c.name()
			}
			seen[name] = true
			overrides = s.overrides[name]
		}
		c.scanFeatures(overrides)
		chips = append(chips, c)
	}
	s.chips = chips
	return nil
}

// Cleanup drops the chip table. Handles from before are invalid afterwards.
func (s *Sysfs) Cleanup() {
	s.chips = nil
}

func (s *Sysfs) DetectedChips() iter.Seq[Chip] {
	chips := s.chips
	return func(yield func(Chip) bool) {
		for i := range chips {
			if !yield(Chip(i)) {
				return
			}
		}
	}
}

func (s *Sysfs) ChipName(chip Chip) (string, error) {
	c, err := s.lookup(chip)
	if err != nil {
		return "", err
	}
	return c.name()
}

func (s *Sysfs) Features(chip Chip) iter.Seq[Feature] {
	c, err := s.lookup(chip)
	return func(yield func(Feature) bool) {
		if err != nil {
			return
		}
		for _, f := range c.features {
			if !yield(f.Feature) {
				return
			}
		}
	}
}

func (s *Sysfs) Subfeature(chip Chip, feature Feature, typ SubfeatureType) (Subfeature, bool) {
	f, c, err := s.feature(chip, feature)
	if err != nil {
		return Subfeature{}, false
	}
	n, ok := f.subs[typ]
	if !ok {
		return Subfeature{}, false
	}
	return c.subs[n].Subfeature, true
}

// Label returns the configured override, the driver's <feature>_label
// text, or the feature name, in that order.
func (s *Sysfs) Label(chip Chip, feature Feature) (string, error) {
	f, _, err := s.feature(chip, feature)
	if err != nil {
		return "", err
	}
	if f.label != "" {
		return f.label, nil
	}
	if f.labelPath == "" {
		return f.Name, nil
	}
	data, err := os.ReadFile(f.labelPath)
	if err != nil {
		return "", &Error{Code: codeFor(err), Op: "read label", Path: f.labelPath, Err: err}
	}
	if label := strings.TrimSpace(string(data)); label != "" {
		return label, nil
	}
	return f.Name, nil
}

func (s *Sysfs) Value(chip Chip, number int) (float64, error) {
	c, err := s.lookup(chip)
	if err != nil {
		return 0, err
	}
	if number < 0 || number >= len(c.subs) {
		return 0, &Error{Code: ErrNoEntry, Op: fmt.Sprintf("read subfeature %d", number)}
	}
	sub := c.subs[number]
	data, err := os.ReadFile(sub.path)
	if err != nil {
		return 0, &Error{Code: codeFor(err), Op: "read", Path: sub.path, Err: err}
	}
	raw, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return 0, &Error{Code: ErrKernel, Op: "parse", Path: sub.path, Err: err}
	}
	return raw / sub.scale, nil
}

func (s *Sysfs) lookup(chip Chip) (*chipEntry, error) {
	if chip < 0 || int(chip) >= len(s.chips) {
		return nil, &Error{Code: ErrNoEntry, Op: fmt.Sprintf("lookup chip %d", int(chip))}
	}
	return s.chips[chip], nil
}

func (s *Sysfs) feature(chip Chip, feature Feature) (*featureEntry, *chipEntry, error) {
	c, err := s.lookup(chip)
	if err != nil {
		return nil, nil, err
	}
	if feature.Number < 0 || feature.Number >= len(c.features) {
		return nil, nil, &Error{Code: ErrNoEntry, Op: "lookup feature " + feature.Name}
	}
	return &c.features[feature.Number], c, nil
}

func readChip(dir string) (*chipEntry, bool) {
	c := &chipEntry{dir: dir}
	c.prefix = readString(filepath.Join(dir, "name"))
	if c.prefix == "" {
		// Older drivers keep their attributes on the device itself.
		c.dir = filepath.Join(dir, "device")
		c.prefix = readString(filepath.Join(c.dir, "name"))
		if c.prefix == "" {
			return nil, false
		}
	}
	c.locate(filepath.Join(dir, "device"))
	return c, true
}

// locate derives the bus type and address from the device the chip hangs
// off. A chip without a device is virtual.
func (c *chipEntry) locate(deviceLink string) {
	devPath, err := filepath.EvalSymlinks(deviceLink)
	if err != nil {
		c.bus = busVirtual
		return
	}
	subsystem, err := filepath.EvalSymlinks(filepath.Join(devPath, "subsystem"))
	if err != nil {
		return
	}
	devName := filepath.Base(devPath)

	switch filepath.Base(subsystem) {
	case "i2c":
		var nr, addr int
		if n, _ := fmt.Sscanf(devName, "%d-%x", &nr, &addr); n == 2 {
			c.bus, c.busNr, c.addr = busI2C, nr, addr
		}
	case "spi":
		var nr, cs int
		if n, _ := fmt.Sscanf(devName, "spi%d.%d", &nr, &cs); n == 2 {
			c.bus, c.busNr, c.addr = busSPI, nr, cs
		}
	case "pci":
		var domain, bus, slot, fn int
		if n, _ := fmt.Sscanf(devName, "%x:%x:%x.%x", &domain, &bus, &slot, &fn); n == 4 {
			c.bus, c.addr = busPCI, domain<<16+bus<<8+slot<<3+fn
		}
	case "platform", "of_platform":
		c.bus = busISA
		if i := strings.LastIndexByte(devName, '.'); i >= 0 {
			if addr, err := strconv.Atoi(devName[i+1:]); err == nil {
				c.addr = addr
			}
		}
	case "acpi":
		c.bus = busACPI
	case "hid":
		var bus, vendor, product, id int
		if n, _ := fmt.Sscanf(devName, "%x:%x:%x.%x", &bus, &vendor, &product, &id); n == 4 {
			c.bus, c.busNr, c.addr = busHID, bus, id
		}
	case "scsi":
		var host, channel, target, lun int
		if n, _ := fmt.Sscanf(devName, "%d:%d:%d:%x", &host, &channel, &target, &lun); n == 4 {
			c.bus, c.busNr, c.addr = busSCSI, host, lun
		}
	}
}

func (c *chipEntry) name() (string, error) {
	switch c.bus {
	case busVirtual:
		return fmt.Sprintf("%s-virtual-%x", c.prefix, c.addr), nil
	case busISA:
		return fmt.Sprintf("%s-isa-%04x", c.prefix, c.addr), nil
	case busPCI:
		return fmt.Sprintf("%s-pci-%04x", c.prefix, c.addr), nil
	case busI2C:
		return fmt.Sprintf("%s-i2c-%d-%02x", c.prefix, c.busNr, c.addr), nil
	case busSPI:
		return fmt.Sprintf("%s-spi-%d-%x", c.prefix, c.busNr, c.addr), nil
	case busACPI:
		return fmt.Sprintf("%s-acpi-%x", c.prefix, c.addr), nil
	case busHID:
		return fmt.Sprintf("%s-hid-%d-%x", c.prefix, c.busNr, c.addr), nil
	case busSCSI:
		return fmt.Sprintf("%s-scsi-%d-%x", c.prefix, c.busNr, c.addr), nil
	}
	return "", &Error{Code: ErrBusName, Op: "chip name", Path: c.dir}
}

func (c *chipEntry) scanFeatures(overrides ChipOverrides) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return
	}

	type key struct {
		typ FeatureType
		nr  int
	}
	type attr struct {
		suffix string
		path   string
	}
	type group struct {
		name      string
		labelPath string
		attrs     map[SubfeatureType]attr
	}
	groups := make(map[key]*group)

	for _, entry := range entries {
		m := attrRe.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		typ, ok := featurePrefixes[m[1]]
		if !ok {
			continue
		}
		nr, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		k := key{typ, nr}
		g, ok := groups[k]
		if !ok {
			g = &group{name: m[1] + m[2], attrs: make(map[SubfeatureType]attr)}
			groups[k] = g
		}
		path := filepath.Join(c.dir, entry.Name())
		if m[3] == "label" {
			g.labelPath = path
			continue
		}
		if st, ok := subfeatureSuffixes[typ][m[3]]; ok {
			g.attrs[st] = attr{suffix: m[3], path: path}
		}
	}

	keys := make([]key, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b key) int {
		if a.typ != b.typ {
			return cmp.Compare(a.typ, b.typ)
		}
		return cmp.Compare(a.nr, b.nr)
	})

	for _, k := range keys {
		g := groups[k]
		if len(g.attrs) == 0 || slices.Contains(overrides.Ignore, g.name) {
			continue
		}
		f := featureEntry{
			Feature:   Feature{Name: g.name, Number: len(c.features), Type: k.typ},
			labelPath: g.labelPath,
			label:     overrides.Labels[g.name],
			subs:      make(map[SubfeatureType]int, len(g.attrs)),
		}
		types := make([]SubfeatureType, 0, len(g.attrs))
		for st := range g.attrs {
			types = append(types, st)
		}
		slices.Sort(types)
		for _, st := range types {
			a := g.attrs[st]
			scale := valueScales[k.typ]
			if a.suffix == "alarm" || a.suffix == "div" {
				scale = 1
			}
			n := len(c.subs)
			c.subs = append(c.subs, subEntry{
				Subfeature: Subfeature{Name: g.name + "_" + a.suffix, Number: n, Type: st},
				path:       a.path,
				scale:      scale,
			})
			f.subs[st] = n
		}
		c.features = append(c.features, f)
	}
}

func readString(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

var _ Backend = (*Sysfs)(nil)

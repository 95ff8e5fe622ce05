package sensor

import "strings"

// driverComponents maps hwmon driver name prefixes to the component they
// usually sit on. First match wins, so longer prefixes come first.
var driverComponents = []struct {
	prefix    string
	component string
}{
	{"coretemp", "CPU"},
	{"k10temp", "CPU"},
	{"k8temp", "CPU"},
	{"zenpower", "CPU"},
	{"cpu_thermal", "CPU"},
	{"amdgpu", "GPU (AMD)"},
	{"radeon", "GPU (AMD)"},
	{"nouveau", "GPU (NVIDIA)"},
	{"nvidia", "GPU (NVIDIA)"},
	{"i915", "GPU (Intel)"},
	{"xe", "GPU (Intel)"},
	{"nvme", "NVMe SSD"},
	{"drivetemp", "HDD/SSD"},
	{"jc42", "Memory"},
	{"spd5118", "Memory"},
	{"iwlwifi", "WiFi"},
	{"ath", "WiFi"},
	{"mt7", "WiFi"},
	{"rtw", "WiFi"},
	{"pch", "PCH (Chipset)"},
	{"acpitz", "ACPI Thermal"},
	{"it87", "Motherboard"},
	{"nct", "Motherboard"},
	{"w83", "Motherboard"},
	{"f71", "Motherboard"},
	{"asus", "Motherboard"},
	{"gigabyte", "Motherboard"},
	{"thinkpad", "Laptop EC"},
	{"dell", "Laptop EC"},
	{"hp", "Laptop EC"},
	{"bat", "Battery"},
}

// FriendlyName returns a human-readable component name for a chip name
// such as "coretemp-isa-0000".
func FriendlyName(chip string) string {
	driver, _, _ := strings.Cut(strings.ToLower(chip), "-")
	for _, entry := range driverComponents {
		if strings.HasPrefix(driver, entry.prefix) {
			return entry.component
		}
	}
	return "Sensor"
}

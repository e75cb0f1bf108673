package audio

import "strings"

// DefaultExcludedDevices are virtual capture devices exposed by PulseAudio,
// JACK and ALSA that never carry microphone input.
var DefaultExcludedDevices = []string{
	"Discard all samples (playback) or generate zero samples (capture)",
	"JACK Audio Connection Kit",
	"PulseAudio Sound Server",
}

const monitorMarker = "Monitor of"

// DeviceFilter drops virtual devices from a device listing.
type DeviceFilter struct {
	exact map[string]struct{}
}

// NewDeviceFilter builds a filter from the default exclusions plus extra
// exact device names.
func NewDeviceFilter(extra ...string) *DeviceFilter {
	f := &DeviceFilter{exact: make(map[string]struct{}, len(DefaultExcludedDevices)+len(extra))}
	for _, name := range DefaultExcludedDevices {
		f.exact[name] = struct{}{}
	}
	for _, name := range extra {
		if name = strings.TrimSpace(name); name != "" {
			f.exact[name] = struct{}{}
		}
	}
	return f
}

// Excluded reports whether name is a virtual device.
func (f *DeviceFilter) Excluded(name string) bool {
	if strings.Contains(name, monitorMarker) {
		return true
	}
	_, ok := f.exact[name]
	return ok
}

// Device is a capture device that passed the filter, with its index in the
// unfiltered listing.
type Device struct {
	Index int
	Name  string
}

// Apply returns the devices that are not excluded, in listing order.
// Repeated names keep their first index.
func (f *DeviceFilter) Apply(names []string) []Device {
	devices := make([]Device, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for i, name := range names {
		if f.Excluded(name) {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		devices = append(devices, Device{Index: i, Name: name})
	}
	return devices
}

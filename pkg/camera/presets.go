package camera

import "sort"

// Preset names for common capture modes.
const (
	PresetNative = "native"
	PresetVGA    = "vga"
	Preset720p   = "720p"
	Preset1080p  = "1080p"
)

// Presets returns all available preset configurations.
// Device is left empty and filled in by the caller.
func Presets() map[string]Config {
	return map[string]Config{
		PresetNative: {},
		PresetVGA:    {Width: 640, Height: 480, FPS: 30},
		Preset720p:   {Width: 1280, Height: 720, FPS: 30},
		Preset1080p:  {Width: 1920, Height: 1080, FPS: 30},
	}
}

// PresetNames returns the sorted list of preset names.
func PresetNames() []string {
	names := make([]string, 0, 4)
	for name := range Presets() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ApplyPreset returns cfg with the capture mode of the named preset.
// The device is kept. ok is false for unknown names.
func ApplyPreset(cfg Config, name string) (Config, bool) {
	p, ok := Presets()[name]
	if !ok {
		return cfg, false
	}
	p.Device = cfg.Device
	return p, true
}

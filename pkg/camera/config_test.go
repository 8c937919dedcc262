package camera

import "testing"

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"default", DefaultConfig(), false},
		{"file path", Config{Device: "/tmp/clip.mp4"}, false},
		{"vga", Config{Device: "1", Width: 640, Height: 480, FPS: 30}, false},
		{"missing device", Config{}, true},
		{"negative width", Config{Device: "0", Width: -1}, true},
		{"huge height", Config{Device: "0", Height: 99999}, true},
		{"fps too high", Config{Device: "0", FPS: 500}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestConfig_DeviceIndex(t *testing.T) {
	tests := []struct {
		device string
		want   int
		ok     bool
	}{
		{"0", 0, true},
		{"2", 2, true},
		{"-1", 0, false},
		{"/dev/video0", 0, false},
		{"clip.mp4", 0, false},
	}

	for _, tc := range tests {
		t.Run(tc.device, func(t *testing.T) {
			cfg := Config{Device: tc.device}
			got, ok := cfg.DeviceIndex()
			if got != tc.want || ok != tc.ok {
				t.Errorf("DeviceIndex(%q) = %d, %v; want %d, %v", tc.device, got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestApplyPreset(t *testing.T) {
	cfg := Config{Device: "/tmp/clip.mp4"}

	got, ok := ApplyPreset(cfg, PresetVGA)
	if !ok {
		t.Fatal("vga preset should exist")
	}
	if got.Device != cfg.Device || got.Width != 640 || got.Height != 480 {
		t.Errorf("unexpected preset config %+v", got)
	}

	if _, ok := ApplyPreset(cfg, "8k"); ok {
		t.Error("unknown preset should not apply")
	}

	names := PresetNames()
	if len(names) != len(Presets()) || names[0] != Preset1080p {
		t.Errorf("unexpected preset names %v", names)
	}
}

package tracking

import "github.com/teslashibe/go-lockon/pkg/tracking/detection"

// TuningParams holds the real-time adjustable tracking parameters.
// These can be modified via the tuning API without restarting.
type TuningParams struct {
	LockThreshold float64             `json:"lock_threshold"` // Distance gate (pixels)
	Tolerance     detection.Tolerance `json:"tolerance"`      // Calibration half-width

	// Read-only
	Range      detection.Range `json:"range"`
	Locked     bool            `json:"locked"`
	Candidates int             `json:"candidates"`
	Frames     uint64          `json:"frames"`
}

// GetTuningParams returns current tuning parameters from the tracker.
func (t *Tracker) GetTuningParams() TuningParams {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return TuningParams{
		LockThreshold: t.engine.Threshold(),
		Tolerance:     t.tolerance,
		Range:         t.rng,
		Locked:        t.engine.State().Locked(),
		Candidates:    len(t.candidates),
		Frames:        t.frames,
	}
}

// SetTuningParams updates tuning parameters at runtime.
// Only positive threshold values and valid tolerances are applied.
func (t *Tracker) SetTuningParams(params TuningParams) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if params.LockThreshold > 0 {
		t.engine.SetThreshold(params.LockThreshold)
	}
	if params.Tolerance != (detection.Tolerance{}) && params.Tolerance.Validate() == nil {
		t.tolerance = params.Tolerance
	}

	t.logger.Info("tuning updated",
		"lock_threshold", t.engine.Threshold(),
		"tolerance", t.tolerance)
}

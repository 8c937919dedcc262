package tracking

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-lockon/pkg/metrics"
	"github.com/teslashibe/go-lockon/pkg/state"
	"github.com/teslashibe/go-lockon/pkg/tracking/detection"
)

// fakeFrame is a detection.Frame without pixel data
type fakeFrame struct {
	seq    int
	mu     sync.Mutex
	closed bool
}

func (f *fakeFrame) Bounds() image.Rectangle { return image.Rect(0, 0, 640, 480) }

func (f *fakeFrame) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeFrame) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// scriptedSource yields fakeFrames until the script runs out
type scriptedSource struct {
	n      int
	next   int
	frames []*fakeFrame
}

func (s *scriptedSource) Next() (detection.Frame, error) {
	if s.next >= s.n {
		return nil, errors.New("end of stream")
	}
	f := &fakeFrame{seq: s.next}
	s.next++
	s.frames = append(s.frames, f)
	return f, nil
}

// scriptedDetector returns blobs per frame, repeating the last entry
type scriptedDetector struct {
	mu     sync.Mutex
	script [][]detection.Blob
	calls  int
	ranges []detection.Range
	err    error
}

func (d *scriptedDetector) Detect(f detection.Frame, r detection.Range) ([]detection.Blob, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ranges = append(d.ranges, r)
	if d.err != nil {
		return nil, d.err
	}
	i := d.calls
	d.calls++
	if len(d.script) == 0 {
		return nil, nil
	}
	if i >= len(d.script) {
		i = len(d.script) - 1
	}
	return d.script[i], nil
}

type fakeCalibrator struct {
	rng     detection.Range
	err     error
	regions []image.Rectangle
}

func (c *fakeCalibrator) Calibrate(f detection.Frame, region image.Rectangle, tol detection.Tolerance) (detection.Range, error) {
	c.regions = append(c.regions, region)
	return c.rng, c.err
}

type countingSink struct {
	count int
}

func (s *countingSink) SendFrame(f detection.Frame) { s.count++ }

var redRange = detection.Range{
	Lower: detection.HSV{H: 0, S: 205, V: 205},
	Upper: detection.HSV{H: 10, S: 255, V: 255},
}

func newTestTracker(cfg Config, det Detector) (*Tracker, *state.Publisher, *fakeCalibrator) {
	pub := state.NewPublisher("test")
	cal := &fakeCalibrator{rng: redRange}
	tr := New(cfg, &scriptedSource{}, det, pub)
	tr.SetCalibrator(cal)
	return tr, pub, cal
}

func TestTracker_AcquireAndMaintain(t *testing.T) {
	det := &scriptedDetector{script: [][]detection.Blob{
		{blob(100, 100, 50, 50)},
		{blob(110, 105, 50, 50)},
	}}
	tr, pub, cal := newTestTracker(DefaultConfig(), det)

	// Frame 1: select inside the blob
	if err := tr.Select(image.Pt(120, 130)); err != nil {
		t.Fatal(err)
	}
	tr.Step(&fakeFrame{})

	snap := pub.Snapshot()
	if snap.Target == nil || *snap.Target != (state.Point{X: 125, Y: 125}) {
		t.Fatalf("target after acquire = %v, want (125,125)", snap.Target)
	}
	if snap.SelectedRegion == nil || *snap.SelectedRegion != (state.Region{X: 100, Y: 100, W: 50, H: 50}) {
		t.Fatalf("region after acquire = %v", snap.SelectedRegion)
	}
	if len(cal.regions) != 1 || cal.regions[0] != image.Rect(100, 100, 150, 150) {
		t.Errorf("calibrated regions = %v", cal.regions)
	}
	if tr.Range() != redRange {
		t.Errorf("range = %v, want calibrated %v", tr.Range(), redRange)
	}

	// Frame 2: the object moved
	tr.Step(&fakeFrame{})
	snap = pub.Snapshot()
	if snap.Target == nil || *snap.Target != (state.Point{X: 135, Y: 130}) {
		t.Fatalf("target after move = %v, want (135,130)", snap.Target)
	}
	if det.ranges[1] != redRange {
		t.Errorf("second frame detected with %v, want calibrated range", det.ranges[1])
	}
}

func TestTracker_LegacyNoCalibration(t *testing.T) {
	det := &scriptedDetector{script: [][]detection.Blob{{blob(100, 100, 50, 50)}}}
	tr, _, cal := newTestTracker(LegacyConfig(), det)

	tr.Select(image.Pt(120, 130))
	tr.Step(&fakeFrame{})

	if len(cal.regions) != 0 {
		t.Errorf("legacy mode should not calibrate, got %d calls", len(cal.regions))
	}
	if tr.Range() != detection.DefaultRange() {
		t.Errorf("range changed to %v", tr.Range())
	}
	if !tr.Lock().Locked() {
		t.Error("expected lock in legacy mode")
	}
}

func TestTracker_CalibrationFailureKeepsLock(t *testing.T) {
	det := &scriptedDetector{script: [][]detection.Blob{{blob(100, 100, 50, 50)}}}
	tr, pub, cal := newTestTracker(DefaultConfig(), det)
	cal.err = detection.ErrEmptyRegion

	tr.Select(image.Pt(120, 130))
	tr.Step(&fakeFrame{})

	if !tr.Lock().Locked() || pub.Snapshot().Target == nil {
		t.Error("lock should survive a calibration failure")
	}
	if tr.Range() != detection.DefaultRange() {
		t.Errorf("range should be unchanged, got %v", tr.Range())
	}
}

func TestTracker_SelectMissPublishesNothing(t *testing.T) {
	det := &scriptedDetector{script: [][]detection.Blob{{blob(100, 100, 50, 50)}}}
	tr, pub, _ := newTestTracker(DefaultConfig(), det)

	tr.Select(image.Pt(10, 10))
	tr.Step(&fakeFrame{})

	snap := pub.Snapshot()
	if snap.Target != nil || snap.SelectedRegion != nil {
		t.Errorf("expected empty snapshot, got target=%v region=%v", snap.Target, snap.SelectedRegion)
	}
	if snap.Seq != 1 {
		t.Errorf("one publish per frame expected, seq=%d", snap.Seq)
	}
}

func TestTracker_LossClearsPublishedState(t *testing.T) {
	det := &scriptedDetector{script: [][]detection.Blob{
		{blob(100, 100, 50, 50)},
		{blob(300, 100, 50, 50)}, // 200 px away
	}}
	tr, pub, _ := newTestTracker(LegacyConfig(), det)

	tr.Select(image.Pt(120, 130))
	tr.Step(&fakeFrame{})
	tr.Step(&fakeFrame{})

	snap := pub.Snapshot()
	if snap.Target != nil || snap.SelectedRegion != nil {
		t.Errorf("lost lock should clear target and region")
	}
	if tr.Lock().Locked() {
		t.Error("expected unlocked")
	}
}

func TestTracker_ResetRestoresDefaultRange(t *testing.T) {
	det := &scriptedDetector{script: [][]detection.Blob{{blob(100, 100, 50, 50)}}}
	tr, pub, _ := newTestTracker(DefaultConfig(), det)

	tr.Select(image.Pt(120, 130))
	tr.Step(&fakeFrame{})
	if tr.Range() != redRange {
		t.Fatalf("expected calibrated range")
	}

	tr.Reset()
	tr.Step(&fakeFrame{})

	if tr.Lock().Locked() {
		t.Error("reset should unlock")
	}
	if tr.Range() != detection.DefaultRange() {
		t.Errorf("range after reset = %v", tr.Range())
	}
	if pub.Snapshot().Target != nil {
		t.Error("reset should clear published target")
	}
}

func TestTracker_Override(t *testing.T) {
	tr, _, _ := newTestTracker(DefaultConfig(), &scriptedDetector{})

	tr.Override(detection.Range{
		Lower: detection.HSV{H: -5, S: 10, V: 10},
		Upper: detection.HSV{H: 200, S: 300, V: 100},
	})
	tr.Step(&fakeFrame{})

	want := detection.Range{
		Lower: detection.HSV{H: 0, S: 10, V: 10},
		Upper: detection.HSV{H: 180, S: 255, V: 100},
	}
	if tr.Range() != want {
		t.Errorf("range = %v, want clamped %v", tr.Range(), want)
	}
}

func TestTracker_DetectErrorSkipsFrame(t *testing.T) {
	det := &scriptedDetector{err: errors.New("boom")}
	tr, pub, _ := newTestTracker(DefaultConfig(), det)
	m := metrics.New()
	tr.SetMetrics(m)

	f := &fakeFrame{}
	tr.Step(f)

	if pub.Snapshot().Seq != 0 {
		t.Error("failed frame should not publish")
	}
	if !f.isClosed() {
		t.Error("failed frame should be released")
	}
	if m.DetectErrors.Load() != 1 {
		t.Errorf("DetectErrors = %d", m.DetectErrors.Load())
	}
}

func TestTracker_ReleasesPreviousFrame(t *testing.T) {
	tr, _, _ := newTestTracker(DefaultConfig(), &scriptedDetector{})

	first, second := &fakeFrame{}, &fakeFrame{}
	tr.Step(first)
	if first.isClosed() {
		t.Fatal("current frame closed too early")
	}
	tr.Step(second)
	if !first.isClosed() {
		t.Error("previous frame should be released")
	}
	if second.isClosed() {
		t.Error("current frame should still be held")
	}
}

func TestTracker_FrameStream(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FrameStreamEvery = 2
	tr, _, _ := newTestTracker(cfg, &scriptedDetector{})
	sink := &countingSink{}
	tr.SetFrameSink(sink)

	for i := 0; i < 6; i++ {
		tr.Step(&fakeFrame{})
	}
	if sink.count != 3 {
		t.Errorf("streamed %d frames, want 3", sink.count)
	}
}

func TestTracker_RunEndOfStream(t *testing.T) {
	pub := state.NewPublisher("test")
	src := &scriptedSource{n: 3}
	tr := New(DefaultConfig(), src, &scriptedDetector{}, pub)

	if err := tr.Run(context.Background()); err != nil {
		t.Fatalf("Run = %v, want nil at end of stream", err)
	}
	if tr.Frames() != 3 {
		t.Errorf("processed %d frames, want 3", tr.Frames())
	}
	for _, f := range src.frames {
		if !f.isClosed() {
			t.Errorf("frame %d not released", f.seq)
		}
	}
}

func TestTracker_RunStopsOnShutdownFlag(t *testing.T) {
	pub := state.NewPublisher("test")
	pub.RequestShutdown()
	src := &scriptedSource{n: 10}
	tr := New(DefaultConfig(), src, &scriptedDetector{}, pub)

	if err := tr.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if src.next != 0 {
		t.Errorf("no frame should be read after shutdown, read %d", src.next)
	}
}

func TestTracker_LegacyIgnoresShutdownFlag(t *testing.T) {
	pub := state.NewPublisher("test")
	pub.RequestShutdown()
	src := &scriptedSource{n: 4}
	tr := New(LegacyConfig(), src, &scriptedDetector{}, pub)

	tr.Run(context.Background())
	if tr.Frames() != 4 {
		t.Errorf("legacy tracker should run to end of stream, processed %d", tr.Frames())
	}
}

func TestTracker_RunQuit(t *testing.T) {
	pub := state.NewPublisher("test")
	src := &scriptedSource{n: 100}
	tr := New(DefaultConfig(), src, &scriptedDetector{}, pub)
	tr.Quit()

	done := make(chan error, 1)
	go func() { done <- tr.Run(context.Background()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after quit")
	}
	if tr.Frames() != 1 {
		t.Errorf("quit should stop after the current frame, processed %d", tr.Frames())
	}
}

func TestTracker_RunContextCancelled(t *testing.T) {
	pub := state.NewPublisher("test")
	src := &scriptedSource{n: 100}
	tr := New(DefaultConfig(), src, &scriptedDetector{}, pub)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := tr.Run(ctx); err != nil {
		t.Fatal(err)
	}
	if src.next != 0 {
		t.Errorf("cancelled run read %d frames", src.next)
	}
}

func TestTracker_InboxFull(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EventBuffer = 1
	tr, _, _ := newTestTracker(cfg, &scriptedDetector{})

	if err := tr.Reset(); err != nil {
		t.Fatal(err)
	}
	if err := tr.Reset(); !errors.Is(err, ErrInboxFull) {
		t.Errorf("second event = %v, want ErrInboxFull", err)
	}
}

func TestTracker_Tuning(t *testing.T) {
	det := &scriptedDetector{script: [][]detection.Blob{{blob(100, 100, 50, 50)}}}
	tr, _, _ := newTestTracker(DefaultConfig(), det)

	tr.SetTuningParams(TuningParams{
		LockThreshold: 150,
		Tolerance:     detection.Tolerance{H: 5, S: 20, V: 20},
	})
	tr.Step(&fakeFrame{})

	p := tr.GetTuningParams()
	if p.LockThreshold != 150 {
		t.Errorf("LockThreshold = %v, want 150", p.LockThreshold)
	}
	if p.Tolerance != (detection.Tolerance{H: 5, S: 20, V: 20}) {
		t.Errorf("Tolerance = %+v", p.Tolerance)
	}
	if p.Candidates != 1 || p.Frames != 1 || p.Locked {
		t.Errorf("unexpected status %+v", p)
	}

	// Invalid values are ignored
	tr.SetTuningParams(TuningParams{LockThreshold: -1, Tolerance: detection.Tolerance{H: -1}})
	if p2 := tr.GetTuningParams(); p2.LockThreshold != 150 || p2.Tolerance != p.Tolerance {
		t.Errorf("invalid tuning applied: %+v", p2)
	}
}

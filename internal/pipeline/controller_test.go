package pipeline

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus/hooks/test"
	"gocv.io/x/gocv"

	"github.com/ayusman/haarlens/internal/capture"
	"github.com/ayusman/haarlens/internal/detector"
)

type recorder struct {
	mu       sync.Mutex
	displays int
	lastSize image.Point
	statuses []Status
	events   []string // "frame" or the state of each status, in delivery order
}

func (r *recorder) Display(frame *gocv.Mat) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.displays++
	r.lastSize = image.Pt(frame.Cols(), frame.Rows())
	r.events = append(r.events, "frame")
}

func (r *recorder) StatusChanged(st Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, st)
	r.events = append(r.events, st.State.String())
}

func (r *recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.events...)
}

func (r *recorder) Displays() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.displays
}

func (r *recorder) Statuses() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Status{}, r.statuses...)
}

type fakeHistory struct {
	mu        sync.Mutex
	started   []string
	ended     map[string][2]int
	snapshots []string
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{ended: make(map[string][2]int)}
}

func (h *fakeHistory) StartSession(mode, source, classifier string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := mode + ":" + source + ":" + classifier
	h.started = append(h.started, id)
	return id, nil
}

func (h *fakeHistory) EndSession(id string, frames, peak int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ended[id] = [2]int{frames, peak}
	return nil
}

func (h *fakeHistory) RecordSnapshot(sessionID, path string, detections int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.snapshots = append(h.snapshots, path)
	return nil
}

func newFrames(t *testing.T, n int) []*gocv.Mat {
	t.Helper()
	frames := make([]*gocv.Mat, n)
	for i := range frames {
		m := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
		frames[i] = &m
	}
	t.Cleanup(func() {
		for _, f := range frames {
			f.Close()
		}
	})
	return frames
}

type fixture struct {
	ctrl *Controller
	rig  *capture.MockRig
	det  *detector.MockDetector
	obs  *recorder
	hist *fakeHistory
	cams map[int]*capture.MockCamera
}

func newFixture(t *testing.T, devices ...int) *fixture {
	t.Helper()
	return newFixtureWith(t, nil, devices...)
}

// newFixtureWith is newFixture with a hook to adjust the controller options.
func newFixtureWith(t *testing.T, adjust func(*Options), devices ...int) *fixture {
	t.Helper()

	rig := capture.NewMockRig()
	cams := make(map[int]*capture.MockCamera)
	for _, id := range devices {
		cam := capture.NewMockCamera(newFrames(t, 3), true)
		rig.Attach(id, cam)
		cams[id] = cam
	}

	logger, _ := test.NewNullLogger()
	det := detector.NewMockDetector()
	hist := newFakeHistory()

	opts := Options{
		Cameras:     capture.NewCameraSourceWith(rig.Opener(), 3),
		Classifier:  det,
		History:     hist,
		Log:         logger,
		SnapshotDir: t.TempDir(),
	}
	if adjust != nil {
		adjust(&opts)
	}
	ctrl := New(opts)
	obs := &recorder{}
	ctrl.Subscribe(obs)
	t.Cleanup(ctrl.Shutdown)

	return &fixture{ctrl: ctrl, rig: rig, det: det, obs: obs, hist: hist, cams: cams}
}

func writeImage(t *testing.T) string {
	t.Helper()
	img := gocv.NewMatWithSize(60, 80, gocv.MatTypeCV8UC3)
	defer img.Close()

	path := filepath.Join(t.TempDir(), "still.png")
	if !gocv.IMWrite(path, img) {
		t.Fatal("failed to write test image")
	}
	return path
}

func TestController_NoCamera(t *testing.T) {
	f := newFixture(t)

	st := f.ctrl.Status()
	if len(st.Cameras) != 0 {
		t.Errorf("Cameras = %v, want empty", st.Cameras)
	}
	if st.Cameras == nil {
		t.Error("Cameras should be an empty list, not nil")
	}
	if st.Affordances.Start {
		t.Error("Start should be disabled without cameras")
	}
	if st.Message != "no camera detected" {
		t.Errorf("Message = %q, want %q", st.Message, "no camera detected")
	}

	if err := f.ctrl.SelectLive(0); !errors.Is(err, ErrNoCamera) {
		t.Fatalf("SelectLive() error = %v, want ErrNoCamera", err)
	}
	if got := f.ctrl.State(); got != Idle {
		t.Errorf("State = %v, want idle", got)
	}
	if got := f.ctrl.Status().Message; got != "no camera detected" {
		t.Errorf("Message = %q", got)
	}
}

func TestController_StopTwiceFromIdle(t *testing.T) {
	f := newFixture(t, 0)

	for i := 0; i < 2; i++ {
		if err := f.ctrl.Stop(); err != nil {
			t.Errorf("Stop() #%d error = %v", i+1, err)
		}
		if got := f.ctrl.State(); got != Idle {
			t.Errorf("State after Stop() #%d = %v, want idle", i+1, got)
		}
	}
	if err := f.ctrl.Reset(); err != nil {
		t.Errorf("Reset() from idle error = %v", err)
	}
	if len(f.obs.Statuses()) != 0 {
		t.Error("no-op Stop/Reset should not publish status")
	}
}

func TestController_SelectLiveUnavailableDevice(t *testing.T) {
	f := newFixture(t, 0)

	err := f.ctrl.SelectLive(2)
	if !errors.Is(err, capture.ErrDeviceUnavailable) {
		t.Fatalf("SelectLive(2) error = %v, want ErrDeviceUnavailable", err)
	}
	if got := f.ctrl.State(); got != Idle {
		t.Errorf("State = %v, want idle", got)
	}
}

func TestController_LiveLifecycle(t *testing.T) {
	f := newFixture(t, 0)
	f.det.SetBoxes([]image.Rectangle{image.Rect(1, 1, 10, 10), image.Rect(20, 20, 30, 30)})

	if err := f.ctrl.SelectLive(0); err != nil {
		t.Fatalf("SelectLive() error = %v", err)
	}

	st := f.ctrl.Status()
	if st.State != LiveRunning || st.Mode != Live {
		t.Fatalf("State = %v/%v, want live/live", st.State, st.Mode)
	}
	if !f.cams[0].IsOpen() {
		t.Error("camera should be open while live")
	}
	want := Affordances{Stop: true}
	if st.Affordances != want {
		t.Errorf("Affordances = %+v, want %+v before the first frame", st.Affordances, want)
	}

	if err := f.ctrl.Tick(); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if got := f.obs.Displays(); got != 1 {
		t.Errorf("displays = %d, want 1", got)
	}
	if f.obs.lastSize != image.Pt(64, 48) {
		t.Errorf("displayed frame size = %v, want 64x48", f.obs.lastSize)
	}

	st = f.ctrl.Status()
	if st.Detections != 2 {
		t.Errorf("Detections = %d, want 2", st.Detections)
	}
	if !st.Affordances.Snapshot {
		t.Error("Snapshot should be enabled once a frame is shown")
	}

	if err := f.ctrl.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	st = f.ctrl.Status()
	if st.State != Idle {
		t.Errorf("State = %v, want idle", st.State)
	}
	if st.Detections != 0 {
		t.Errorf("Detections = %d, want 0 after stop", st.Detections)
	}
	if f.cams[0].IsOpen() {
		t.Error("camera should be released after stop")
	}
	if !st.Affordances.Start || st.Affordances.Snapshot {
		t.Errorf("Affordances = %+v after stop", st.Affordances)
	}

	if err := f.ctrl.Tick(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Tick() after stop error = %v, want ErrNotRunning", err)
	}
}

func TestController_CounterPublishedOnlyOnChange(t *testing.T) {
	f := newFixture(t, 0)
	f.det.SetBoxes([]image.Rectangle{image.Rect(1, 1, 10, 10)})

	if err := f.ctrl.SelectLive(0); err != nil {
		t.Fatalf("SelectLive() error = %v", err)
	}
	base := len(f.obs.Statuses())

	for i := 0; i < 3; i++ {
		if err := f.ctrl.Tick(); err != nil {
			t.Fatalf("Tick() error = %v", err)
		}
	}
	if got := len(f.obs.Statuses()) - base; got != 1 {
		t.Errorf("status published %d times for a steady count, want 1", got)
	}

	f.det.SetBoxes(nil)
	if err := f.ctrl.Tick(); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	statuses := f.obs.Statuses()
	if got := len(statuses) - base; got != 2 {
		t.Errorf("status published %d times, want 2 after the count changed", got)
	}
	if last := statuses[len(statuses)-1]; last.Detections != 0 {
		t.Errorf("last published Detections = %d, want 0", last.Detections)
	}
	if got := f.obs.Displays(); got != 4 {
		t.Errorf("displays = %d, want 4", got)
	}
}

func TestController_CameraDisconnect(t *testing.T) {
	f := newFixture(t, 0, 1)

	if err := f.ctrl.SelectLive(0); err != nil {
		t.Fatalf("SelectLive() error = %v", err)
	}
	if err := f.ctrl.Tick(); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}

	f.rig.Detach(0)

	err := f.ctrl.Tick()
	if !errors.Is(err, capture.ErrDeviceUnavailable) {
		t.Fatalf("Tick() after disconnect error = %v, want ErrDeviceUnavailable", err)
	}

	st := f.ctrl.Status()
	if st.State != Idle {
		t.Errorf("State = %v, want idle", st.State)
	}
	if len(st.Cameras) != 1 || st.Cameras[0] != 1 {
		t.Errorf("Cameras = %v, want [1] after re-enumeration", st.Cameras)
	}
	if !st.Affordances.Start {
		t.Error("Start should be enabled again")
	}
	if st.Message != "camera disconnected" {
		t.Errorf("Message = %q", st.Message)
	}
	if f.cams[0].IsOpen() {
		t.Error("lost camera should be released")
	}
}

func TestController_DetectionErrorKeepsPreviousFrame(t *testing.T) {
	f := newFixture(t, 0)
	f.det.SetBoxes([]image.Rectangle{image.Rect(1, 1, 10, 10)})

	if err := f.ctrl.SelectLive(0); err != nil {
		t.Fatalf("SelectLive() error = %v", err)
	}
	if err := f.ctrl.Tick(); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}

	f.det.SetError(errors.Wrap(detector.ErrDetection, "bad frame"))
	err := f.ctrl.Tick()
	if !errors.Is(err, detector.ErrDetection) {
		t.Fatalf("Tick() error = %v, want ErrDetection", err)
	}

	if got := f.obs.Displays(); got != 1 {
		t.Errorf("displays = %d, want 1; failed cycle must not display", got)
	}
	st := f.ctrl.Status()
	if st.State != LiveRunning {
		t.Errorf("State = %v, want live to continue", st.State)
	}
	if st.Detections != 0 {
		t.Errorf("Detections = %d, want 0 after a failed cycle", st.Detections)
	}
	if !st.Affordances.Snapshot {
		t.Error("previous frame should still be available for snapshots")
	}
}

func TestController_FileMode(t *testing.T) {
	f := newFixture(t, 0)
	path := writeImage(t)

	if err := f.ctrl.SelectFile(path); err != nil {
		t.Fatalf("SelectFile() error = %v", err)
	}
	st := f.ctrl.Status()
	if st.State != FileRunning || st.Mode != File {
		t.Fatalf("State = %v/%v, want file/file", st.State, st.Mode)
	}
	if st.Source != "still.png" {
		t.Errorf("Source = %q, want still.png", st.Source)
	}
	if !st.Affordances.Reset || st.Affordances.Stop || st.Affordances.LoadImage {
		t.Errorf("Affordances = %+v", st.Affordances)
	}

	for i := 0; i < 2; i++ {
		if err := f.ctrl.Tick(); err != nil {
			t.Fatalf("Tick() error = %v", err)
		}
	}
	if f.obs.lastSize != image.Pt(80, 60) {
		t.Errorf("displayed frame size = %v, want 80x60", f.obs.lastSize)
	}

	if err := f.ctrl.Stop(); err != nil {
		t.Errorf("Stop() in file mode error = %v", err)
	}
	if got := f.ctrl.State(); got != FileRunning {
		t.Errorf("Stop() should not clear a loaded image, state = %v", got)
	}

	if err := f.ctrl.Reset(); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	st = f.ctrl.Status()
	if st.State != Idle || st.Detections != 0 || st.Source != "" {
		t.Errorf("after Reset() status = %+v", st)
	}
}

func TestController_SelectFileErrors(t *testing.T) {
	f := newFixture(t, 0)

	bad := filepath.Join(t.TempDir(), "bad.png")
	if err := os.WriteFile(bad, []byte("not an image"), 0644); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{"", filepath.Join(t.TempDir(), "missing.png"), bad} {
		if err := f.ctrl.SelectFile(path); !errors.Is(err, capture.ErrImageLoad) {
			t.Errorf("SelectFile(%q) error = %v, want ErrImageLoad", path, err)
		}
		if got := f.ctrl.State(); got != Idle {
			t.Errorf("State = %v, want idle", got)
		}
	}
}

func TestController_FailedFileKeepsLiveSource(t *testing.T) {
	f := newFixture(t, 0)

	if err := f.ctrl.SelectLive(0); err != nil {
		t.Fatalf("SelectLive() error = %v", err)
	}
	if err := f.ctrl.SelectFile(filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Fatal("SelectFile() should fail")
	}
	if got := f.ctrl.State(); got != LiveRunning {
		t.Errorf("State = %v, want live to continue", got)
	}
}

func TestController_SwitchSourceReleasesCamera(t *testing.T) {
	f := newFixture(t, 0)

	if err := f.ctrl.SelectLive(0); err != nil {
		t.Fatalf("SelectLive() error = %v", err)
	}
	if err := f.ctrl.SelectFile(writeImage(t)); err != nil {
		t.Fatalf("SelectFile() error = %v", err)
	}
	if f.cams[0].IsOpen() {
		t.Error("camera should be released when switching to a file")
	}
	if got := f.ctrl.State(); got != FileRunning {
		t.Errorf("State = %v, want file", got)
	}
	if len(f.hist.ended) != 1 {
		t.Errorf("ended sessions = %d, want the live session closed", len(f.hist.ended))
	}
}

func TestController_SelectClassifier(t *testing.T) {
	f := newFixture(t, 0)

	if err := f.ctrl.SelectClassifier(detector.KindEye); err != nil {
		t.Fatalf("SelectClassifier(eye) error = %v", err)
	}
	eye, _, _ := detector.Preset(detector.KindEye)
	if st := f.ctrl.Status(); st.Classifier != detector.KindEye || st.Params != eye {
		t.Errorf("status = %s %+v, want eye preset", st.Classifier, st.Params)
	}

	f.det.FailLoad(detector.KindSmile)
	err := f.ctrl.SelectClassifier(detector.KindSmile)
	if !errors.Is(err, detector.ErrModelLoad) {
		t.Fatalf("SelectClassifier(smile) error = %v, want ErrModelLoad", err)
	}
	face, _, _ := detector.Preset(detector.KindFace)
	if st := f.ctrl.Status(); st.Classifier != detector.KindFace || st.Params != face {
		t.Errorf("status = %s %+v, want face fallback", st.Classifier, st.Params)
	}

	if err := f.ctrl.SelectClassifier("cat"); !errors.Is(err, detector.ErrUnknownKind) {
		t.Errorf("SelectClassifier(cat) error = %v, want ErrUnknownKind", err)
	}
	if err := f.ctrl.SelectClassifier(detector.KindCustom); !errors.Is(err, detector.ErrModelLoad) {
		t.Errorf("SelectClassifier(custom) before a load error = %v, want ErrModelLoad", err)
	}
}

func TestController_SelectClassifierFallbackFails(t *testing.T) {
	f := newFixture(t, 0)

	if err := f.ctrl.SelectClassifier(detector.KindEye); err != nil {
		t.Fatalf("SelectClassifier(eye) error = %v", err)
	}

	f.det.FailLoad(detector.KindSmile)
	f.det.FailLoad(detector.KindFace)
	if err := f.ctrl.SelectClassifier(detector.KindSmile); !errors.Is(err, detector.ErrModelLoad) {
		t.Fatalf("SelectClassifier(smile) error = %v, want ErrModelLoad", err)
	}

	eye, _, _ := detector.Preset(detector.KindEye)
	if st := f.ctrl.Status(); st.Classifier != detector.KindEye || st.Params != eye {
		t.Errorf("status = %s %+v, want eye model and eye preset kept", st.Classifier, st.Params)
	}
}

func TestController_CameraFPS(t *testing.T) {
	f := newFixtureWith(t, func(o *Options) { o.CameraFPS = 15 }, 0)

	if err := f.ctrl.SelectLive(0); err != nil {
		t.Fatalf("SelectLive() error = %v", err)
	}
	if got := f.cams[0].FPS(); got != 15 {
		t.Errorf("camera FPS = %d, want 15", got)
	}

	d := newFixture(t, 0)
	if err := d.ctrl.SelectLive(0); err != nil {
		t.Fatalf("SelectLive() error = %v", err)
	}
	if got := d.cams[0].FPS(); got != capture.DefaultFPS {
		t.Errorf("camera FPS = %d, want default %d", got, capture.DefaultFPS)
	}
}

func TestController_CustomClassifierParams(t *testing.T) {
	f := newFixture(t, 0)

	name, err := f.ctrl.LoadCustomClassifier("/models/cat_face.xml")
	if err != nil {
		t.Fatalf("LoadCustomClassifier() error = %v", err)
	}
	if name != "cat_face.xml" {
		t.Errorf("name = %q, want cat_face.xml", name)
	}

	f.ctrl.SetScaleFactor(1.0)
	f.ctrl.SetMinNeighbors(7)
	f.ctrl.SetMinSize(0)

	if err := f.ctrl.SelectLive(0); err != nil {
		t.Fatalf("SelectLive() error = %v", err)
	}
	if err := f.ctrl.Tick(); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}

	want := detector.Params{ScaleFactor: 1.01, MinNeighbors: 7, MinSize: image.Pt(1, 1)}
	if got := f.det.LastParams(); got != want {
		t.Errorf("detector saw %+v, want %+v", got, want)
	}

	f.ctrl.SetMinSize(45)
	if err := f.ctrl.Tick(); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if got := f.det.LastParams().MinSize; got != image.Pt(45, 45) {
		t.Errorf("MinSize = %v, want latest value at tick time", got)
	}

	f.det.FailCustom()
	if _, err := f.ctrl.LoadCustomClassifier("/models/broken.xml"); !errors.Is(err, detector.ErrModelLoad) {
		t.Errorf("LoadCustomClassifier() error = %v, want ErrModelLoad", err)
	}
	if st := f.ctrl.Status(); st.Classifier != detector.KindCustom || st.Model != "cat_face.xml" {
		t.Errorf("status = %s/%s, want previous custom model kept", st.Classifier, st.Model)
	}
}

func TestController_Snapshot(t *testing.T) {
	f := newFixture(t, 0)

	if _, err := f.ctrl.Snapshot(""); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("Snapshot() while idle error = %v, want ErrNotRunning", err)
	}

	if err := f.ctrl.SelectLive(0); err != nil {
		t.Fatalf("SelectLive() error = %v", err)
	}
	if err := f.ctrl.Tick(); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}

	explicit := filepath.Join(t.TempDir(), "out", "shot.png")
	got, err := f.ctrl.Snapshot(explicit)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if got != explicit {
		t.Errorf("path = %q, want %q", got, explicit)
	}
	if _, err := os.Stat(explicit); err != nil {
		t.Errorf("snapshot not written: %v", err)
	}

	generated, err := f.ctrl.Snapshot("")
	if err != nil {
		t.Fatalf("Snapshot(\"\") error = %v", err)
	}
	if filepath.Ext(generated) != ".png" {
		t.Errorf("generated path %q should be a png", generated)
	}
	if _, err := os.Stat(generated); err != nil {
		t.Errorf("generated snapshot not written: %v", err)
	}

	if len(f.hist.snapshots) != 2 {
		t.Errorf("recorded snapshots = %d, want 2", len(f.hist.snapshots))
	}
}

func TestController_HistorySessions(t *testing.T) {
	f := newFixture(t, 0)
	f.det.SetBoxes([]image.Rectangle{image.Rect(1, 1, 5, 5), image.Rect(6, 6, 9, 9)})

	if err := f.ctrl.SelectLive(0); err != nil {
		t.Fatalf("SelectLive() error = %v", err)
	}
	id := f.ctrl.Status().SessionID
	if id == "" {
		t.Fatal("SessionID should be set while running")
	}

	for i := 0; i < 3; i++ {
		if err := f.ctrl.Tick(); err != nil {
			t.Fatalf("Tick() error = %v", err)
		}
	}
	if err := f.ctrl.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	got, ok := f.hist.ended[id]
	if !ok {
		t.Fatalf("session %q not ended", id)
	}
	if got != [2]int{3, 2} {
		t.Errorf("ended with frames/peak = %v, want [3 2]", got)
	}
	if f.ctrl.Status().SessionID != "" {
		t.Error("SessionID should clear when idle")
	}
}

func TestController_Run(t *testing.T) {
	f := newFixture(t, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.ctrl.Run(ctx) }()

	if err := f.ctrl.SelectLive(0); err != nil {
		t.Fatalf("SelectLive() error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for f.obs.Displays() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("only %d frames displayed before deadline", f.obs.Displays())
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}

	if got := f.ctrl.State(); got != Idle {
		t.Errorf("State after Run() = %v, want idle", got)
	}
	if f.cams[0].IsOpen() {
		t.Error("camera should be released when Run returns")
	}
}

func TestController_RunStopsOnDisconnect(t *testing.T) {
	f := newFixture(t, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.ctrl.Run(ctx)

	if err := f.ctrl.SelectLive(0); err != nil {
		t.Fatalf("SelectLive() error = %v", err)
	}
	f.rig.Detach(0)

	deadline := time.Now().Add(2 * time.Second)
	for f.ctrl.State() != Idle {
		if time.Now().After(deadline) {
			t.Fatal("controller did not return to idle after disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if cams := f.ctrl.Cameras(); len(cams) != 0 {
		t.Errorf("Cameras = %v, want empty after the only camera was unplugged", cams)
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{Idle, "idle"},
		{LiveRunning, "live"},
		{FileRunning, "file"},
		{State(9), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}

	if m, err := ParseMode("file"); err != nil || m != File {
		t.Errorf("ParseMode(file) = %v, %v", m, err)
	}
	if _, err := ParseMode("tv"); err == nil {
		t.Error("ParseMode(tv) should fail")
	}
}

package server

import (
	"bytes"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus/hooks/test"
	"gocv.io/x/gocv"

	"github.com/ayusman/haarlens/internal/capture"
	"github.com/ayusman/haarlens/internal/detector"
	"github.com/ayusman/haarlens/internal/pipeline"
	"github.com/ayusman/haarlens/internal/store"
)

type viewer struct {
	ctrl    *pipeline.Controller
	display *Display
	events  *StatusHub
	ts      *httptest.Server
}

func newViewer(t *testing.T) *viewer {
	t.Helper()

	logger, _ := test.NewNullLogger()

	s, err := store.New(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	frame := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { frame.Close() })
	rig := capture.NewMockRig()
	rig.Attach(0, capture.NewMockCamera([]*gocv.Mat{&frame}, true))

	det := detector.NewMockDetector()
	det.SetBoxes([]image.Rectangle{image.Rect(10, 10, 50, 50)})

	ctrl := pipeline.New(pipeline.Options{
		Cameras:     capture.NewCameraSourceWith(rig.Opener(), 3),
		Classifier:  det,
		History:     s.Recorder(),
		Log:         logger,
		SnapshotDir: t.TempDir(),
	})
	t.Cleanup(ctrl.Shutdown)

	display := NewDisplay(320, 240, logger)
	events := NewStatusHub(ctrl.Status, logger)
	ctrl.Subscribe(display)
	ctrl.Subscribe(events)

	srv := New(Config{
		Store:      s,
		Controller: ctrl,
		Display:    display,
		Events:     events,
		Log:        logger,
	})
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		display.Close()
		ts.Close()
	})

	return &viewer{ctrl: ctrl, display: display, events: events, ts: ts}
}

func (v *viewer) post(t *testing.T, path, body string) *http.Response {
	t.Helper()
	resp, err := v.ts.Client().Post(v.ts.URL+path, "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST %s error = %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestAPI_LiveWorkflow(t *testing.T) {
	v := newViewer(t)

	// 1. Start live capture
	resp := v.post(t, "/api/live", `{"device": 0}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /api/live status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	// 2. Run one cycle and fetch the displayed frame
	if err := v.ctrl.Tick(); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}

	frameResp, err := v.ts.Client().Get(v.ts.URL + "/api/frame")
	if err != nil {
		t.Fatalf("GET /api/frame error = %v", err)
	}
	defer frameResp.Body.Close()
	if frameResp.StatusCode != http.StatusOK {
		t.Fatalf("GET /api/frame status = %d", frameResp.StatusCode)
	}
	if ct := frameResp.Header.Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Content-Type = %s, want image/jpeg", ct)
	}

	// 3. Status reflects the detection
	statusResp, err := v.ts.Client().Get(v.ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET /api/status error = %v", err)
	}
	defer statusResp.Body.Close()

	var status struct {
		State      string `json:"state"`
		Detections int    `json:"detections"`
		SessionID  string `json:"session_id"`
	}
	json.NewDecoder(statusResp.Body).Decode(&status)
	if status.State != "live" || status.Detections != 1 {
		t.Errorf("status = %+v, want live with 1 detection", status)
	}

	// 4. Snapshot and stop
	snapResp := v.post(t, "/api/snapshot", `{}`)
	if snapResp.StatusCode != http.StatusCreated {
		t.Fatalf("POST /api/snapshot status = %d", snapResp.StatusCode)
	}
	stopResp := v.post(t, "/api/stop", "")
	if stopResp.StatusCode != http.StatusOK {
		t.Fatalf("POST /api/stop status = %d", stopResp.StatusCode)
	}

	// 5. The session is in the history with its snapshot
	sessResp, err := v.ts.Client().Get(v.ts.URL + "/api/sessions/" + status.SessionID)
	if err != nil {
		t.Fatalf("GET /api/sessions error = %v", err)
	}
	defer sessResp.Body.Close()
	if sessResp.StatusCode != http.StatusOK {
		t.Fatalf("GET /api/sessions/{id} status = %d", sessResp.StatusCode)
	}

	var session struct {
		Mode           string           `json:"mode"`
		Frames         int              `json:"frames"`
		PeakDetections int              `json:"peak_detections"`
		Snapshots      []store.Snapshot `json:"snapshots"`
	}
	json.NewDecoder(sessResp.Body).Decode(&session)
	if session.Mode != "live" || session.Frames != 1 || session.PeakDetections != 1 {
		t.Errorf("session = %+v", session)
	}
	if len(session.Snapshots) != 1 {
		t.Errorf("snapshots = %d, want 1", len(session.Snapshots))
	}
}

func TestAPI_EventsStream(t *testing.T) {
	v := newViewer(t)

	wsURL := "ws" + strings.TrimPrefix(v.ts.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s error = %v", wsURL, err)
	}
	defer conn.Close()

	type event struct {
		State   string `json:"state"`
		Message string `json:"message"`
	}
	read := func() event {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var ev event
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("ReadJSON() error = %v", err)
		}
		return ev
	}

	// The current status is sent on connect.
	if ev := read(); ev.State != "idle" {
		t.Errorf("initial event state = %s, want idle", ev.State)
	}

	v.post(t, "/api/live", `{}`)
	if ev := read(); ev.State != "live" {
		t.Errorf("event after start = %s, want live", ev.State)
	}

	v.post(t, "/api/stop", "")
	if ev := read(); ev.State != "idle" || ev.Message != "stopped" {
		t.Errorf("event after stop = %+v", ev)
	}
}

func TestAPI_HealthCheck(t *testing.T) {
	srv := New(Config{})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var health struct {
		Status string `json:"status"`
		Uptime string `json:"uptime"`
	}
	json.NewDecoder(resp.Body).Decode(&health)

	if health.Status != "ok" {
		t.Errorf("status = %s, want ok", health.Status)
	}
}

package api

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/haarlens/internal/capture"
	"github.com/ayusman/haarlens/internal/detector"
	"github.com/ayusman/haarlens/internal/pipeline"
)

// Controller is the pipeline surface driven by the control API.
type Controller interface {
	Status() pipeline.Status
	Cameras() []int
	RefreshCameras() []int
	SelectLive(device int) error
	SelectFile(path string) error
	Stop() error
	Reset() error
	SelectClassifier(kind detector.Kind) error
	LoadCustomClassifier(path string) (string, error)
	SetScaleFactor(v float64)
	SetMinNeighbors(n int)
	SetMinSize(edge int)
	CustomParams() detector.Params
	Snapshot(path string) (string, error)
}

// ControlHandler translates HTTP requests into controller transitions.
type ControlHandler struct {
	ctrl     Controller
	validate *validator.Validate
	log      logrus.FieldLogger
}

// NewControlHandler creates a ControlHandler for ctrl.
func NewControlHandler(ctrl Controller, log logrus.FieldLogger) *ControlHandler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ControlHandler{
		ctrl:     ctrl,
		validate: validator.New(),
		log:      log.WithField("component", "api"),
	}
}

// Register adds the control routes to mux.
func (h *ControlHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/status", h.status)
	mux.HandleFunc("/api/cameras", h.cameras)
	mux.HandleFunc("/api/cameras/refresh", h.refreshCameras)
	mux.HandleFunc("/api/live", h.live)
	mux.HandleFunc("/api/file", h.file)
	mux.HandleFunc("/api/stop", h.stop)
	mux.HandleFunc("/api/reset", h.reset)
	mux.HandleFunc("/api/classifier", h.classifier)
	mux.HandleFunc("/api/classifier/custom", h.customClassifier)
	mux.HandleFunc("/api/params", h.params)
	mux.HandleFunc("/api/snapshot", h.snapshot)
}

// Request and response types

type liveRequest struct {
	// Device defaults to the first detected camera.
	Device *int `json:"device" validate:"omitempty,min=0"`
}

type pathRequest struct {
	Path string `json:"path" validate:"required"`
}

type classifierRequest struct {
	Kind string `json:"kind" validate:"required"`
}

type paramsRequest struct {
	ScaleFactor  *float64 `json:"scale_factor"`
	MinNeighbors *int     `json:"min_neighbors"`
	MinSize      *int     `json:"min_size"`
}

type snapshotRequest struct {
	Path string `json:"path"`
}

type camerasResponse struct {
	Cameras []int `json:"cameras"`
}

type paramsResponse struct {
	ScaleFactor  float64 `json:"scale_factor"`
	MinNeighbors int     `json:"min_neighbors"`
	MinSize      int     `json:"min_size"`
}

type customResponse struct {
	Name   string          `json:"name"`
	Status pipeline.Status `json:"status"`
}

type snapshotResponse struct {
	Path string `json:"path"`
}

// httpStatus maps controller errors onto HTTP status codes.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrNoCamera),
		errors.Is(err, pipeline.ErrNotRunning),
		errors.Is(err, capture.ErrDeviceUnavailable):
		return http.StatusConflict
	case errors.Is(err, capture.ErrImageLoad),
		errors.Is(err, detector.ErrUnknownKind):
		return http.StatusBadRequest
	case errors.Is(err, detector.ErrModelLoad):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// fail reports a controller error together with the resulting status.
func (h *ControlHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := httpStatus(err)
	h.log.WithFields(logrus.Fields{"path": r.URL.Path, "code": code}).WithError(err).Info("request rejected")
	writeJSON(w, code, errorResponse{Error: err.Error(), Status: h.ctrl.Status()})
}

func (h *ControlHandler) status(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, h.ctrl.Status())
}

func (h *ControlHandler) cameras(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, camerasResponse{Cameras: h.ctrl.Cameras()})
}

func (h *ControlHandler) refreshCameras(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	writeJSON(w, http.StatusOK, camerasResponse{Cameras: h.ctrl.RefreshCameras()})
}

func (h *ControlHandler) live(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}

	var req liveRequest
	if err := decode(r, h.validate, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	device := 0
	if req.Device != nil {
		device = *req.Device
	} else if cams := h.ctrl.Cameras(); len(cams) > 0 {
		device = cams[0]
	}

	if err := h.ctrl.SelectLive(device); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.ctrl.Status())
}

func (h *ControlHandler) file(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}

	var req pathRequest
	if err := decode(r, h.validate, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.ctrl.SelectFile(req.Path); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.ctrl.Status())
}

func (h *ControlHandler) stop(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	if err := h.ctrl.Stop(); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.ctrl.Status())
}

func (h *ControlHandler) reset(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	if err := h.ctrl.Reset(); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.ctrl.Status())
}

func (h *ControlHandler) classifier(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPut) {
		return
	}

	var req classifierRequest
	if err := decode(r, h.validate, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	kind, err := detector.ParseKind(req.Kind)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.ctrl.SelectClassifier(kind); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.ctrl.Status())
}

func (h *ControlHandler) customClassifier(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}

	var req pathRequest
	if err := decode(r, h.validate, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	name, err := h.ctrl.LoadCustomClassifier(req.Path)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, customResponse{Name: name, Status: h.ctrl.Status()})
}

func (h *ControlHandler) params(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet, http.MethodPut) {
		return
	}

	if r.Method == http.MethodPut {
		var req paramsRequest
		if err := decode(r, h.validate, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.ScaleFactor == nil && req.MinNeighbors == nil && req.MinSize == nil {
			writeError(w, http.StatusBadRequest, "no parameter given")
			return
		}

		// Each setter is independent; out-of-range values are clamped.
		if req.ScaleFactor != nil {
			h.ctrl.SetScaleFactor(*req.ScaleFactor)
		}
		if req.MinNeighbors != nil {
			h.ctrl.SetMinNeighbors(*req.MinNeighbors)
		}
		if req.MinSize != nil {
			h.ctrl.SetMinSize(*req.MinSize)
		}
	}

	p := h.ctrl.CustomParams()
	writeJSON(w, http.StatusOK, paramsResponse{
		ScaleFactor:  p.ScaleFactor,
		MinNeighbors: p.MinNeighbors,
		MinSize:      p.MinSize.X,
	})
}

func (h *ControlHandler) snapshot(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}

	var req snapshotRequest
	if err := decode(r, h.validate, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	path, err := h.ctrl.Snapshot(req.Path)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, snapshotResponse{Path: path})
}

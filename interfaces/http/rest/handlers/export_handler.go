package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"canvas-engine/application/export"
	pkgerrors "canvas-engine/pkg/errors"
)

// Default screen size used by GET /export/image when none is given.
const (
	defaultImageWidth  = 1280
	defaultImageHeight = 800
)

// ExportHandler serves exports of the open document.
type ExportHandler struct {
	base
}

// NewExportHandler creates a new export handler
func NewExportHandler(sessions Sessions, errs *pkgerrors.ErrorHandler, logger *zap.Logger) *ExportHandler {
	return &ExportHandler{base: newBase(sessions, errs, logger)}
}

// Interchange handles GET /export/interchange. The body is ready to paste into a
// Blueprint graph editor.
func (h *ExportHandler) Interchange(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	text, err := s.ExportInterchange(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(text))
}

// Image handles GET /export/image?width=&height=&format=
func (h *ExportHandler) Image(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	q := r.URL.Query()
	width, err := floatQuery(q.Get("width"), defaultImageWidth)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	height, err := floatQuery(q.Get("height"), defaultImageHeight)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	format := export.ImageFormat(q.Get("format"))
	if format == "" {
		format = export.FormatSVG
	}

	image, err := s.ExportImage(r.Context(), width, height, format)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(image))
}

func floatQuery(raw string, def float64) (float64, error) {
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, pkgerrors.NewValidationError("invalid number: " + raw)
	}
	return v, nil
}

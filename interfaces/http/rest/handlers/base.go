package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"canvas-engine/application/session"
	"canvas-engine/domain/core/valueobjects"
	pkgerrors "canvas-engine/pkg/errors"
	"canvas-engine/pkg/utils"
)

// Sessions is the part of the session manager the handlers use.
type Sessions interface {
	Open(ctx context.Context, docID valueobjects.DocumentID) (*session.EditorSession, error)
	Get(docID valueobjects.DocumentID) (*session.EditorSession, error)
	Close(ctx context.Context, docID valueobjects.DocumentID, force bool) error
}

// base carries what every handler needs.
type base struct {
	sessions Sessions
	errors   *pkgerrors.ErrorHandler
	logger   *zap.Logger
}

func newBase(sessions Sessions, errs *pkgerrors.ErrorHandler, logger *zap.Logger) base {
	if logger == nil {
		logger = zap.NewNop()
	}
	if errs == nil {
		errs = pkgerrors.NewErrorHandler(logger, false)
	}
	return base{sessions: sessions, errors: errs, logger: logger}
}

func docIDParam(r *http.Request) valueobjects.DocumentID {
	return valueobjects.DocumentID(chi.URLParam(r, "docID"))
}

// session resolves the open session named by the {docID} path parameter.
func (b base) session(r *http.Request) (*session.EditorSession, error) {
	return b.sessions.Get(docIDParam(r))
}

// decode reads a JSON body into dst and runs its validate tags.
func decode(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return pkgerrors.NewValidationError("invalid request body: " + err.Error())
	}
	if err := utils.ValidateStruct(dst); err != nil {
		return pkgerrors.NewValidationError(err.Error())
	}
	return nil
}

func (b base) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		b.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (b base) respondError(w http.ResponseWriter, r *http.Request, err error) {
	b.errors.Handle(w, r, err)
}

// handlers_cycle.go - Select and submit handlers
package api

import (
	"errors"
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/statement-parser/client/internal/logger"
	"github.com/statement-parser/client/internal/models"
	"github.com/statement-parser/client/internal/session"
	"github.com/statement-parser/client/internal/storage"
	"go.uber.org/zap"
)

// CycleHandlerImpl implements the CycleHandler interface
type CycleHandlerImpl struct {
	controller Controller
	store      storage.Store
	logger     *zap.Logger

	mu      sync.Mutex
	current string
}

// NewCycleHandler creates a new cycle handler instance
func NewCycleHandler(controller Controller, store storage.Store, log *zap.Logger) CycleHandler {
	return &CycleHandlerImpl{
		controller: controller,
		store:      store,
		logger:     logger.OrNop(log),
	}
}

// HandleSelectFile stages the uploaded document and makes it the current
// selection. The current selection's file is pinned against cleanup and the
// one it replaces is discarded. Responds 201 with the resulting snapshot.
func (h *CycleHandlerImpl) HandleSelectFile(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return NewValidationError("file")
	}

	src, err := fh.Open()
	if err != nil {
		return NewBadRequestError("cannot read uploaded file", err)
	}
	defer src.Close()

	file, err := h.store.Stage(fh.Filename, src)
	if err != nil {
		return NewInternalError("failed to stage file", err)
	}

	if file.Size == 0 {
		if derr := h.store.Discard(file.ID); derr != nil {
			h.logger.Warn("discard empty upload", zap.String("file_id", file.ID), zap.Error(derr))
		}
		return &APIError{
			Status:  http.StatusBadRequest,
			Code:    "EMPTY_FILE",
			Message: "the selected file is empty",
		}
	}

	if !models.LooksLikePDF(file.Name) {
		c.Response().Header().Set("X-Selection-Warning", "file does not have a .pdf extension")
	}

	if err := h.store.Pin(file.ID); err != nil {
		return NewInternalError("failed to stage file", err)
	}

	h.mu.Lock()
	snap := h.controller.SelectFile(file)
	previous := h.current
	h.current = file.ID
	h.mu.Unlock()

	if previous != "" {
		if err := h.store.Discard(previous); err != nil {
			h.logger.Warn("discard replaced selection", zap.String("file_id", previous), zap.Error(err))
		}
	}

	return c.JSON(http.StatusCreated, snap)
}

// HandleSubmit starts a cycle for the current selection. The outcome is
// delivered over the state stream; the response carries the pending
// snapshot.
func (h *CycleHandlerImpl) HandleSubmit(c echo.Context) error {
	snap, err := h.controller.SubmitAsync(c.Request().Context())
	switch {
	case err == nil:
		return c.JSON(http.StatusAccepted, snap)
	case errors.Is(err, session.ErrSubmitInFlight):
		return NewSubmitInFlightError()
	case errors.Is(err, session.ErrNoFileSelected):
		return NewNoFileSelectedError(snap.Error)
	default:
		return NewInternalError("failed to submit", err)
	}
}

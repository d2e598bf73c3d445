// handlers_state.go - Presentation state handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// StateHandlerImpl implements the StateHandler interface
type StateHandlerImpl struct {
	controller Controller
}

// NewStateHandler creates a new state handler instance
func NewStateHandler(controller Controller) StateHandler {
	return &StateHandlerImpl{controller: controller}
}

// HandleGetState returns the current snapshot as JSON
func (h *StateHandlerImpl) HandleGetState(c echo.Context) error {
	return c.JSON(http.StatusOK, h.controller.Snapshot())
}

// HandleGetStateMsgpack returns the current snapshot in MessagePack format
func (h *StateHandlerImpl) HandleGetStateMsgpack(c echo.Context) error {
	data, err := msgpack.Marshal(h.controller.Snapshot())
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}
	return c.Blob(http.StatusOK, "application/msgpack", data)
}

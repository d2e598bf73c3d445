// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/statement-parser/client/internal/models"
	"github.com/statement-parser/client/internal/session"
)

// CycleHandler forwards user actions to the controller
type CycleHandler interface {
	HandleSelectFile(c echo.Context) error
	HandleSubmit(c echo.Context) error
}

// StateHandler exposes the presentation state
type StateHandler interface {
	HandleGetState(c echo.Context) error
	HandleGetStateMsgpack(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// Controller is the part of session.Controller the HTTP layer drives.
// This allows mocking in tests
type Controller interface {
	Snapshot() models.Snapshot
	Subscribe(l session.Listener) (models.Snapshot, func())
	SelectFile(file *models.SelectedFile) models.Snapshot
	SubmitAsync(ctx context.Context) (models.Snapshot, error)
}

var _ Controller = (*session.Controller)(nil)

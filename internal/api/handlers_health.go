// handlers_health.go - Health check handlers
package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	version            string
	extractionEndpoint string
	startedAt          time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version, extractionEndpoint string) HealthHandler {
	return &HealthHandlerImpl{
		version:            version,
		extractionEndpoint: extractionEndpoint,
		startedAt:          time.Now(),
	}
}

// HandleHealth returns server health status. The extraction service is not
// contacted; any call to it would itself be an extraction request.
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":             "ok",
		"version":            h.version,
		"extractionEndpoint": h.extractionEndpoint,
		"uptimeSeconds":      int64(time.Since(h.startedAt).Seconds()),
	})
}

// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/statement-parser/client/internal/logger"
	"github.com/statement-parser/client/internal/storage"
	"go.uber.org/zap"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Controller         Controller
	Store              storage.Store
	Logger             *zap.Logger
	Version            string
	ExtractionEndpoint string
}

// Handlers holds all handler instances
type Handlers struct {
	Health HealthHandler
	Cycle  CycleHandler
	State  StateHandler
	Stream *WebSocketHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health: NewHealthHandler(deps.Version, deps.ExtractionEndpoint),
		Cycle:  NewCycleHandler(deps.Controller, deps.Store, deps.Logger),
		State:  NewStateHandler(deps.Controller),
		Stream: NewWebSocketHandler(deps.Controller, deps.Logger),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	apiGroup := e.Group("/api")

	// Health check
	apiGroup.GET("/health", handlers.Health.HandleHealth)

	// User actions
	apiGroup.POST("/select", handlers.Cycle.HandleSelectFile)
	apiGroup.POST("/submit", handlers.Cycle.HandleSubmit)

	// Presentation state
	apiGroup.GET("/state", handlers.State.HandleGetState)
	apiGroup.GET("/state/msgpack", handlers.State.HandleGetStateMsgpack)
	apiGroup.GET("/ws", handlers.Stream.HandleWebSocket)
}

// MiddlewareConfig selects the common middleware
type MiddlewareConfig struct {
	Logger         *zap.Logger
	RequestLogging bool
	BodyLimit      string
	EnableCORS     bool
	AllowOrigins   []string
	RequestTimeout time.Duration
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, cfg MiddlewareConfig) {
	log := logger.OrNop(cfg.Logger)

	// Use custom error handler
	e.HTTPErrorHandler = ErrorHandler

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 * 1024,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			log.Error("handler panic", zap.String("path", c.Request().URL.Path), zap.Error(err), zap.ByteString("stack", stack))
			return err
		},
	}))

	if cfg.RequestLogging {
		e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
			LogMethod:  true,
			LogURI:     true,
			LogStatus:  true,
			LogLatency: true,
			LogError:   true,
			Skipper: func(c echo.Context) bool {
				path := c.Request().URL.Path
				return path == "/api/health" || path == "/api/ws"
			},
			LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
				fields := []zap.Field{
					zap.String("method", v.Method),
					zap.String("uri", v.URI),
					zap.Int("status", v.Status),
					zap.Int64("elapsed_ms", v.Latency.Milliseconds()),
				}
				if v.Error != nil {
					fields = append(fields, zap.Error(v.Error))
				}
				log.Info("http.request", fields...)
				return nil
			},
		}))
	}

	if cfg.RequestTimeout > 0 {
		e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
			Timeout:      cfg.RequestTimeout,
			Skipper:      timeoutSkipper,
			ErrorMessage: "Request timeout",
		}))
	}

	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}

	if cfg.EnableCORS {
		origins := cfg.AllowOrigins
		if len(origins) == 0 {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}
}

// timeoutSkipper exempts long-lived streams and uploads, which are bounded
// by the body limit rather than the request timeout.
func timeoutSkipper(c echo.Context) bool {
	path := c.Request().URL.Path
	return strings.HasSuffix(path, "/ws") || path == "/api/select"
}

// Package extraction talks to the statement extraction service.
package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/statement-parser/client/internal/logger"
	"github.com/statement-parser/client/internal/models"
	"go.uber.org/zap"
)

const (
	// ParsePath is the endpoint that accepts statement uploads.
	ParsePath = "/parse"
	// FormField is the multipart field carrying the document.
	FormField = "file"
	// RequestIDHeader tags each outbound request.
	RequestIDHeader = "X-Request-ID"
)

// Config configures a Client.
type Config struct {
	BaseURL string
	// Timeout bounds a whole round trip. Zero leaves the transport default.
	Timeout time.Duration
	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
}

// Client performs one POST /parse per call. It never retries or caches.
type Client struct {
	endpoint string
	http     *http.Client
	logger   *zap.Logger
}

// NewClient validates the base URL and builds a client.
func NewClient(cfg Config, log *zap.Logger) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		return nil, fmt.Errorf("extraction base URL is required")
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse extraction base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("extraction base URL must be http or https, got %q", base)
	}

	endpoint, err := url.JoinPath(u.String(), ParsePath)
	if err != nil {
		return nil, fmt.Errorf("build extraction endpoint: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		endpoint: endpoint,
		http:     httpClient,
		logger:   logger.OrNop(log),
	}, nil
}

// Endpoint returns the full URL requests are sent to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// response is the union of the success and failure bodies.
type response struct {
	Issuer          *string `json:"issuer"`
	CardNumber      *string `json:"card_number"`
	DueDate         *string `json:"due_date"`
	TotalDue        *string `json:"total_due"`
	StatementPeriod *string `json:"statement_period"`
	Error           *string `json:"error"`
}

func (r *response) result() *models.ExtractionResult {
	return &models.ExtractionResult{
		Issuer:          r.Issuer,
		CardNumber:      r.CardNumber,
		DueDate:         r.DueDate,
		TotalDue:        r.TotalDue,
		StatementPeriod: r.StatementPeriod,
	}
}

// Extract uploads the document and returns the fields the service found.
// Failures are *ServiceError or *TransportError.
func (c *Client) Extract(ctx context.Context, name string, content io.Reader) (*models.ExtractionResult, error) {
	reqID := uuid.New().String()
	start := time.Now()
	log := c.logger.With(zap.String("request_id", reqID), zap.String("file", name))

	body, contentType, err := encodeForm(name, content)
	if err != nil {
		log.Error("extraction.encode_error", zap.Error(err))
		return nil, &TransportError{Op: "encode request", RequestID: reqID, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		log.Error("extraction.build_request_error", zap.Error(err))
		return nil, &TransportError{Op: "build request", RequestID: reqID, Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, reqID)

	log.Info("extraction.request", zap.String("url", c.endpoint), zap.Int("content_length", len(body)))

	resp, err := c.http.Do(req)
	if err != nil {
		log.Error("extraction.send_error", zap.Error(err), zap.Int64("elapsed_ms", time.Since(start).Milliseconds()))
		return nil, &TransportError{Op: "send request", RequestID: reqID, Err: err}
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			log.Warn("extraction.response_body_close_error", zap.Error(cerr))
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Error("extraction.read_error", zap.Int("status", resp.StatusCode), zap.Error(err))
		return nil, &TransportError{Op: "read response", RequestID: reqID, Err: err}
	}

	log.Info("extraction.response",
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(raw)),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)

	if resp.StatusCode/100 != 2 {
		return nil, &ServiceError{Status: resp.StatusCode, Reason: failureReason(raw), RequestID: reqID}
	}

	if err := validateResponse(raw); err != nil {
		log.Warn("extraction.decode_error", zap.Error(err))
		return nil, &TransportError{Op: "decode response", RequestID: reqID, Err: err}
	}

	var decoded response
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &TransportError{Op: "decode response", RequestID: reqID, Err: err}
	}

	// The service answers 200 with only an "error" when it cannot tell
	// which bank issued the statement.
	if decoded.Error != nil && *decoded.Error != "" {
		return nil, &ServiceError{Status: resp.StatusCode, Reason: *decoded.Error, RequestID: reqID}
	}

	return decoded.result(), nil
}

// failureReason pulls the "error" string out of a failure body. Bodies that
// are empty, not JSON, or lack the field yield "".
func failureReason(raw []byte) string {
	var body struct {
		Error any `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	if s, ok := body.Error.(string); ok {
		return s
	}
	return ""
}

func encodeForm(name string, content io.Reader) ([]byte, string, error) {
	if content == nil {
		return nil, "", fmt.Errorf("no content to upload")
	}

	buf := new(bytes.Buffer)
	writer := multipart.NewWriter(buf)
	part, err := writer.CreateFormFile(FormField, name)
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, "", fmt.Errorf("copy content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}
	return buf.Bytes(), writer.FormDataContentType(), nil
}

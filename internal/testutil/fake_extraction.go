// fake_extraction.go - Scriptable stand-in for the extraction service
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
)

// FakeResponse is one scripted answer to POST /parse.
type FakeResponse struct {
	Status int
	Body   string
}

// JSONResponse builds a FakeResponse from any JSON-encodable value.
func JSONResponse(status int, v interface{}) FakeResponse {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return FakeResponse{Status: status, Body: string(b)}
}

// RecordedRequest is what the fake saw for one upload.
type RecordedRequest struct {
	FileName  string
	Content   []byte
	RequestID string
}

// FakeExtractionService serves POST /parse from a queue of scripted
// responses and records every request it receives.
type FakeExtractionService struct {
	*httptest.Server

	mu        sync.Mutex
	responses []FakeResponse
	fallback  FakeResponse
	requests  []RecordedRequest
	gate      chan struct{}
	held      []chan struct{}
	arrived   chan RecordedRequest
}

// NewFakeExtractionService starts the fake and stops it when the test ends.
// Unscripted requests get 200 with an empty JSON object.
func NewFakeExtractionService(t testing.TB) *FakeExtractionService {
	t.Helper()

	f := &FakeExtractionService{
		fallback: FakeResponse{Status: http.StatusOK, Body: "{}"},
		arrived:  make(chan RecordedRequest, 16),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.POST("/parse", f.handleParse)

	f.Server = httptest.NewServer(e)
	t.Cleanup(func() {
		f.Release()
		f.Server.Close()
	})
	return f
}

// Enqueue appends responses served in order, one per request.
func (f *FakeExtractionService) Enqueue(responses ...FakeResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, responses...)
}

// SetDefault sets the response used once the queue is empty.
func (f *FakeExtractionService) SetDefault(r FakeResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fallback = r
}

// Hold makes requests that arrive from now on block until Release.
func (f *FakeExtractionService) Hold() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gate == nil {
		f.gate = make(chan struct{})
		f.held = append(f.held, f.gate)
	}
}

// StopHolding lets new requests through while already held ones keep
// waiting for Release.
func (f *FakeExtractionService) StopHolding() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = nil
}

// Release unblocks every held request and stops holding new ones.
func (f *FakeExtractionService) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, g := range f.held {
		close(g)
	}
	f.held = nil
	f.gate = nil
}

// Arrived delivers each request as soon as it has been read, before any
// hold is applied.
func (f *FakeExtractionService) Arrived() <-chan RecordedRequest {
	return f.arrived
}

// RequestCount returns how many uploads were received.
func (f *FakeExtractionService) RequestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// Requests returns a copy of the recorded uploads.
func (f *FakeExtractionService) Requests() []RecordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]RecordedRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

func (f *FakeExtractionService) handleParse(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "No file part in the request"})
	}
	src, err := file.Open()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	defer src.Close()
	content, err := io.ReadAll(src)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	rec := RecordedRequest{
		FileName:  file.Filename,
		Content:   content,
		RequestID: c.Request().Header.Get("X-Request-ID"),
	}

	f.mu.Lock()
	f.requests = append(f.requests, rec)
	gate := f.gate
	resp := f.nextLocked()
	f.mu.Unlock()

	select {
	case f.arrived <- rec:
	default:
	}

	if gate != nil {
		select {
		case <-gate:
		case <-c.Request().Context().Done():
			return c.Request().Context().Err()
		}
	}

	if resp.Body == "" {
		return c.NoContent(resp.Status)
	}
	return c.Blob(resp.Status, echo.MIMEApplicationJSON, []byte(resp.Body))
}

// nextLocked pops the next scripted response. Responses are matched to
// requests in arrival order.
func (f *FakeExtractionService) nextLocked() FakeResponse {
	if len(f.responses) == 0 {
		return f.fallback
	}
	r := f.responses[0]
	f.responses = f.responses[1:]
	return r
}

// ClosedServerURL returns the URL of a server that is no longer listening.
func ClosedServerURL(t testing.TB) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}

package extraction

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/statement-parser/client/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := NewClient(Config{BaseURL: baseURL}, nil)
	require.NoError(t, err)
	return c
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		want    string
		wantErr bool
	}{
		{name: "default local service", baseURL: "http://127.0.0.1:5000", want: "http://127.0.0.1:5000/parse"},
		{name: "trailing slash", baseURL: "http://127.0.0.1:5000/", want: "http://127.0.0.1:5000/parse"},
		{name: "path prefix", baseURL: "https://example.test/statements", want: "https://example.test/statements/parse"},
		{name: "empty", baseURL: "  ", wantErr: true},
		{name: "unsupported scheme", baseURL: "ftp://example.test", wantErr: true},
		{name: "no scheme", baseURL: "example.test:5000", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClient(Config{BaseURL: tt.baseURL}, nil)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.Endpoint())
		})
	}
}

func TestExtract_AllFields(t *testing.T) {
	svc := testutil.NewFakeExtractionService(t)
	svc.Enqueue(testutil.JSONResponse(http.StatusOK, map[string]string{
		"issuer":           "HDFC",
		"card_number":      "**** 1234",
		"due_date":         "2024-05-01",
		"total_due":        "₹12,345",
		"statement_period": "Apr 2024",
	}))

	c := newTestClient(t, svc.URL)
	res, err := c.Extract(context.Background(), "april.pdf", strings.NewReader("%PDF-1.4 body"))
	require.NoError(t, err)

	require.NotNil(t, res.Issuer)
	assert.Equal(t, "HDFC", *res.Issuer)
	assert.Equal(t, "**** 1234", *res.CardNumber)
	assert.Equal(t, "2024-05-01", *res.DueDate)
	assert.Equal(t, "₹12,345", *res.TotalDue)
	assert.Equal(t, "Apr 2024", *res.StatementPeriod)

	reqs := svc.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "april.pdf", reqs[0].FileName)
	assert.Equal(t, "%PDF-1.4 body", string(reqs[0].Content))
	assert.NotEmpty(t, reqs[0].RequestID)
}

func TestExtract_PartialFields(t *testing.T) {
	svc := testutil.NewFakeExtractionService(t)
	svc.Enqueue(testutil.FakeResponse{Status: http.StatusOK, Body: `{"issuer":"ICICI","due_date":null,"extra":42}`})

	c := newTestClient(t, svc.URL)
	res, err := c.Extract(context.Background(), "icici.pdf", strings.NewReader("x"))
	require.NoError(t, err)

	require.NotNil(t, res.Issuer)
	assert.Equal(t, "ICICI", *res.Issuer)
	assert.Nil(t, res.CardNumber)
	assert.Nil(t, res.DueDate)
	assert.Nil(t, res.TotalDue)
	assert.Nil(t, res.StatementPeriod)
}

func TestExtract_ServiceFailures(t *testing.T) {
	tests := []struct {
		name       string
		response   testutil.FakeResponse
		wantStatus int
		wantReason string
		wantMsg    string
	}{
		{
			name:       "explicit reason",
			response:   testutil.FakeResponse{Status: http.StatusBadRequest, Body: `{"error":"Unsupported statement format"}`},
			wantStatus: http.StatusBadRequest,
			wantReason: "Unsupported statement format",
			wantMsg:    "Unsupported statement format",
		},
		{
			name:       "empty body",
			response:   testutil.FakeResponse{Status: http.StatusInternalServerError},
			wantStatus: http.StatusInternalServerError,
			wantMsg:    FallbackMessage,
		},
		{
			name:       "json without error field",
			response:   testutil.FakeResponse{Status: http.StatusBadGateway, Body: `{"detail":"upstream"}`},
			wantStatus: http.StatusBadGateway,
			wantMsg:    FallbackMessage,
		},
		{
			name:       "html error page",
			response:   testutil.FakeResponse{Status: http.StatusServiceUnavailable, Body: `<html>down</html>`},
			wantStatus: http.StatusServiceUnavailable,
			wantMsg:    FallbackMessage,
		},
		{
			name:       "unsupported issuer on 200",
			response:   testutil.FakeResponse{Status: http.StatusOK, Body: `{"error":"Could not determine the credit card issuer. This bank is not supported."}`},
			wantStatus: http.StatusOK,
			wantReason: "Could not determine the credit card issuer. This bank is not supported.",
			wantMsg:    "Could not determine the credit card issuer. This bank is not supported.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := testutil.NewFakeExtractionService(t)
			svc.Enqueue(tt.response)

			c := newTestClient(t, svc.URL)
			res, err := c.Extract(context.Background(), "s.pdf", strings.NewReader("x"))
			assert.Nil(t, res)

			var se *ServiceError
			require.True(t, errors.As(err, &se), "expected ServiceError, got %T: %v", err, err)
			assert.Equal(t, tt.wantStatus, se.Status)
			assert.Equal(t, tt.wantReason, se.Reason)
			assert.Equal(t, tt.wantMsg, se.Message())
			assert.NotEmpty(t, se.RequestID)
			assert.False(t, IsTransportError(err))
		})
	}
}

func TestExtract_TransportFailures(t *testing.T) {
	t.Run("service unreachable", func(t *testing.T) {
		c := newTestClient(t, testutil.ClosedServerURL(t))
		_, err := c.Extract(context.Background(), "s.pdf", strings.NewReader("x"))

		var te *TransportError
		require.True(t, errors.As(err, &te), "expected TransportError, got %T", err)
		assert.Equal(t, "send request", te.Op)
		assert.Contains(t, te.Message(), "/parse")
		assert.False(t, IsServiceError(err))
	})

	t.Run("malformed json", func(t *testing.T) {
		svc := testutil.NewFakeExtractionService(t)
		svc.Enqueue(testutil.FakeResponse{Status: http.StatusOK, Body: `{"issuer":`})

		c := newTestClient(t, svc.URL)
		_, err := c.Extract(context.Background(), "s.pdf", strings.NewReader("x"))

		var te *TransportError
		require.True(t, errors.As(err, &te))
		assert.Equal(t, "decode response", te.Op)
		assert.NotEmpty(t, te.Message())
	})

	t.Run("empty success body", func(t *testing.T) {
		svc := testutil.NewFakeExtractionService(t)
		svc.Enqueue(testutil.FakeResponse{Status: http.StatusOK})

		c := newTestClient(t, svc.URL)
		_, err := c.Extract(context.Background(), "s.pdf", strings.NewReader("x"))
		assert.True(t, IsTransportError(err))
	})

	t.Run("field of wrong type", func(t *testing.T) {
		svc := testutil.NewFakeExtractionService(t)
		svc.Enqueue(testutil.FakeResponse{Status: http.StatusOK, Body: `{"issuer":"HDFC","total_due":12345}`})

		c := newTestClient(t, svc.URL)
		_, err := c.Extract(context.Background(), "s.pdf", strings.NewReader("x"))
		assert.True(t, IsTransportError(err))
	})

	t.Run("array body", func(t *testing.T) {
		svc := testutil.NewFakeExtractionService(t)
		svc.Enqueue(testutil.FakeResponse{Status: http.StatusOK, Body: `["HDFC"]`})

		c := newTestClient(t, svc.URL)
		_, err := c.Extract(context.Background(), "s.pdf", strings.NewReader("x"))
		assert.True(t, IsTransportError(err))
	})

	t.Run("canceled context", func(t *testing.T) {
		svc := testutil.NewFakeExtractionService(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		c := newTestClient(t, svc.URL)
		_, err := c.Extract(ctx, "s.pdf", strings.NewReader("x"))
		assert.True(t, IsTransportError(err))
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, svc.RequestCount())
	})
}

func TestServiceError_Class(t *testing.T) {
	assert.Equal(t, "4xx", (&ServiceError{Status: 404}).Class())
	assert.Equal(t, "5xx", (&ServiceError{Status: 503}).Class())
	assert.Equal(t, "unknown", (&ServiceError{Status: 0}).Class())
	assert.True(t, (&ServiceError{Status: 503}).Temporary())
	assert.True(t, (&ServiceError{Status: 429}).Temporary())
	assert.False(t, (&ServiceError{Status: 400}).Temporary())
}

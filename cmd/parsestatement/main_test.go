package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/statement-parser/client/internal/models"
	"github.com/statement-parser/client/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeStatement(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRun_PrintsFields(t *testing.T) {
	svc := testutil.NewFakeExtractionService(t)
	svc.Enqueue(testutil.JSONResponse(http.StatusOK, map[string]string{
		"issuer":    "HDFC",
		"due_date":  "Not Found",
		"total_due": "₹12,345",
	}))
	path := writeStatement(t, "april.pdf", "%PDF-1.4")

	var stdout, stderr bytes.Buffer
	code := run([]string{"-url", svc.URL, path}, &stdout, &stderr)

	require.Equal(t, 0, code, stderr.String())
	out := stdout.String()
	assert.Contains(t, out, "Selected: april.pdf")
	assert.Contains(t, out, "HDFC")
	assert.Contains(t, out, "Not Found")
	assert.Contains(t, out, "₹12,345")
	assert.Contains(t, out, "Statement Period")

	reqs := svc.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "april.pdf", reqs[0].FileName)
	assert.Equal(t, "%PDF-1.4", string(reqs[0].Content))
}

func TestRun_JSONOutput(t *testing.T) {
	svc := testutil.NewFakeExtractionService(t)
	svc.Enqueue(testutil.JSONResponse(http.StatusOK, map[string]string{"issuer": "ICICI"}))
	path := writeStatement(t, "icici.pdf", "x")

	var stdout, stderr bytes.Buffer
	code := run([]string{"-url", svc.URL, "-json", path}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	var snap models.Snapshot
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &snap))
	assert.Equal(t, models.PhaseSuccess, snap.Phase)
	require.NotNil(t, snap.Result)
	assert.Equal(t, "ICICI", *snap.Result.Issuer)
}

func TestRun_ServiceRejection(t *testing.T) {
	svc := testutil.NewFakeExtractionService(t)
	svc.Enqueue(testutil.FakeResponse{Status: http.StatusBadRequest, Body: `{"error":"Unsupported statement format"}`})
	path := writeStatement(t, "odd.pdf", "x")

	var stdout, stderr bytes.Buffer
	code := run([]string{"-url", svc.URL, path}, &stdout, &stderr)

	assert.Equal(t, 1, code)
	assert.Contains(t, stdout.String(), "Error: Unsupported statement format")
}

func TestRun_UsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"no file", []string{}, 2},
		{"two files", []string{"a.pdf", "b.pdf"}, 2},
		{"bad url", []string{"-url", "ftp://x", "a.pdf"}, 2},
		{"missing file", []string{"-url", "http://127.0.0.1:1", filepath.Join(os.TempDir(), "does-not-exist.pdf")}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			assert.Equal(t, tt.want, run(tt.args, &stdout, &stderr))
			assert.Equal(t, 0, stdout.Len())
		})
	}
}

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lychee-technology/foundry"
)

type stubService struct {
	lastOp    *foundry.Operation
	lastBatch *foundry.BatchRequest
	rows      []map[string]any
	batch     *foundry.BatchResult
	err       error
}

func (s *stubService) Execute(_ context.Context, op *foundry.Operation) ([]map[string]any, error) {
	s.lastOp = op
	return s.rows, s.err
}

func (s *stubService) ExecuteBatch(_ context.Context, req *foundry.BatchRequest) (*foundry.BatchResult, error) {
	s.lastBatch = req
	return s.batch, s.err
}

func newTestServer(svc foundry.Service) *Server {
	server := NewServer(svc, nil)
	server.RegisterRoutes()
	return server
}

func TestAPIHandlerRead(t *testing.T) {
	svc := &stubService{rows: []map[string]any{{"invoice_id": 1}}}
	server := newTestServer(svc)

	r := httptest.NewRequest("GET", "/api/v1/invoice?billing_city=Oslo&_limit=5", nil)
	w := httptest.NewRecorder()
	server.mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, svc.lastOp)
	assert.Equal(t, "invoice", svc.lastOp.Entity)
	assert.Equal(t, foundry.ActionRead, svc.lastOp.Action)
	assert.Equal(t, map[string]any{"billing_city": "Oslo"}, svc.lastOp.QueryParams)
	assert.Equal(t, map[string]any{"limit": "5"}, svc.lastOp.MetadataParams)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body, "data")
}

func TestAPIHandlerCreate(t *testing.T) {
	svc := &stubService{rows: []map[string]any{{"genre_id": 7}}}
	server := newTestServer(svc)

	r := httptest.NewRequest("POST", "/api/v1/genre", strings.NewReader(`{"name":"Jazz"}`))
	w := httptest.NewRecorder()
	server.mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, foundry.ActionCreate, svc.lastOp.Action)
	assert.Equal(t, map[string]any{"name": "Jazz"}, svc.lastOp.StoreParams)
}

func TestAPIHandlerMethodToAction(t *testing.T) {
	tests := []struct {
		method string
		path   string
		want   foundry.Action
	}{
		{"PUT", "/api/v1/invoice?invoice_id=1", foundry.ActionUpdate},
		{"PATCH", "/api/v1/invoice?invoice_id=1", foundry.ActionUpdate},
		{"DELETE", "/api/v1/invoice?invoice_id=1", foundry.ActionDelete},
		{"POST", "/api/v1/contract/restore?contract_id=1", foundry.ActionRestore},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			svc := &stubService{}
			server := newTestServer(svc)

			var body *strings.Reader
			if tt.method == "PUT" || tt.method == "PATCH" {
				body = strings.NewReader(`{}`)
			} else {
				body = strings.NewReader("")
			}
			r := httptest.NewRequest(tt.method, tt.path, body)
			w := httptest.NewRecorder()
			server.mux.ServeHTTP(w, r)

			require.NotNil(t, svc.lastOp)
			assert.Equal(t, tt.want, svc.lastOp.Action)
		})
	}
}

func TestAPIHandlerUnknownSubresource(t *testing.T) {
	server := newTestServer(&stubService{})

	r := httptest.NewRequest("GET", "/api/v1/invoice/lines", nil)
	w := httptest.NewRecorder()
	server.mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPIHandlerEngineErrorStatus(t *testing.T) {
	svc := &stubService{err: foundry.NewPermissionError("Subject is not allowed to delete album")}
	server := newTestServer(svc)

	r := httptest.NewRequest("GET", "/api/v1/album", nil)
	w := httptest.NewRecorder()
	server.mux.ServeHTTP(w, r)

	assert.Equal(t, 402, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Subject is not allowed to delete album", body["error"])
	assert.Equal(t, foundry.ErrCodeUnauthorizedAccess, body["code"])
}

func TestBatchEndpoint(t *testing.T) {
	svc := &stubService{batch: &foundry.BatchResult{Success: true, Results: map[string]*foundry.OperationResult{}}}
	server := newTestServer(svc)

	payload := `{"operations":[{"id":"a","entity":"genre","action":"create","store_params":{"name":"Jazz"}}],"options":{"atomic":true}}`
	r := httptest.NewRequest("POST", "/api/v1/_batch", strings.NewReader(payload))
	w := httptest.NewRecorder()
	server.mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, svc.lastBatch)
	require.Len(t, svc.lastBatch.Operations, 1)
	assert.Equal(t, "a", svc.lastBatch.Operations[0].ID)
	assert.True(t, svc.lastBatch.Options.Atomic)
}

func TestBatchEndpointRejectsGet(t *testing.T) {
	server := newTestServer(&stubService{})

	r := httptest.NewRequest("GET", "/api/v1/_batch", nil)
	w := httptest.NewRecorder()
	server.mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

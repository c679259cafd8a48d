package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/lychee-technology/foundry"
)

// apiHandler routes /api/v1/{entity} requests to the engine. The HTTP
// method selects the action; POST to /api/v1/{entity}/restore restores
// soft-deleted records.
func (s *Server) apiHandler(w http.ResponseWriter, r *http.Request) {
	entity, subresource, err := parsePath(r.URL.Path)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid path: %v", err))
		return
	}

	var action foundry.Action
	switch {
	case subresource == "restore" && r.Method == http.MethodPost:
		action = foundry.ActionRestore
	case subresource != "":
		writeError(w, http.StatusNotFound, "unknown subresource: "+subresource)
		return
	case r.Method == http.MethodGet:
		action = foundry.ActionRead
	case r.Method == http.MethodPost:
		action = foundry.ActionCreate
	case r.Method == http.MethodPut, r.Method == http.MethodPatch:
		action = foundry.ActionUpdate
	case r.Method == http.MethodDelete:
		action = foundry.ActionDelete
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	claims, err := s.extractClaims(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	queryParams, metadataParams := splitQueryParams(r)

	var storeParams map[string]any
	if action == foundry.ActionCreate || action == foundry.ActionUpdate {
		if err := readJSONBody(r, &storeParams); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid json body: %v", err))
			return
		}
	}

	rows, err := s.svc.Execute(r.Context(), &foundry.Operation{
		Entity:         entity,
		Action:         action,
		QueryParams:    queryParams,
		StoreParams:    storeParams,
		MetadataParams: metadataParams,
		Claims:         claims,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}

	status := http.StatusOK
	if action == foundry.ActionCreate {
		status = http.StatusCreated
	}
	writeSuccess(w, status, rows)
}

// handleBatch handles POST /api/v1/_batch
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	claims, err := s.extractClaims(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	var req foundry.BatchRequest
	if err := readJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid json body: %v", err))
		return
	}
	req.Claims = claims

	result, err := s.svc.ExecuteBatch(r.Context(), &req)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, result)
}

// splitQueryParams separates selection criteria from metadata: keys
// with a leading underscore are metadata. "_properties" is kept under
// both names because reads and writes look it up differently.
func splitQueryParams(r *http.Request) (map[string]any, map[string]any) {
	queryParams := make(map[string]any)
	metadataParams := make(map[string]any)
	for key, values := range r.URL.Query() {
		if key == "" || len(values) == 0 {
			continue
		}
		value := values[0]
		if key[0] == '_' {
			metadataParams[key[1:]] = value
			if key == "_properties" {
				metadataParams[key] = value
			}
			continue
		}
		queryParams[key] = value
	}
	return queryParams, metadataParams
}

func readJSONBody(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	return dec.Decode(dst)
}

func writeEngineError(w http.ResponseWriter, err error) {
	status := foundry.StatusOf(err)
	if fe, ok := foundry.AsFoundryError(err); ok {
		writeJSON(w, status, map[string]any{
			"error": fe.Message,
			"code":  fe.Code,
		})
		return
	}
	writeError(w, status, err.Error())
}

package handler

import (
	"net/http"

	"github.com/keygate/keygate/internal/openapi"
)

// OpenAPIHandler serves the OpenAPI document for the running configuration.
type OpenAPIHandler struct {
	info openapi.Info
}

// NewOpenAPIHandler creates a new OpenAPIHandler.
func NewOpenAPIHandler(info openapi.Info) *OpenAPIHandler {
	return &OpenAPIHandler{info: info}
}

// ServeSpec returns the OpenAPI 3 document with the request's origin as the
// server URL.
// GET /openapi.json
func (h *OpenAPIHandler) ServeSpec(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, openapi.Generate(baseURL(r), h.info))
}

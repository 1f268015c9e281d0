package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/keygate/keygate/internal/model"
	"github.com/keygate/keygate/internal/ratelimit"
	"github.com/keygate/keygate/internal/service"
)

// KeyHandler serves the public issuance and validation endpoints.
type KeyHandler struct {
	issuer    *service.Issuer
	validator *service.Validator
	policy    ratelimit.Policy
	version   string
	logger    *slog.Logger
}

// NewKeyHandler creates a new KeyHandler. policy is reported by the index
// endpoint and must match the limiter the issuer was built with.
func NewKeyHandler(issuer *service.Issuer, validator *service.Validator, policy ratelimit.Policy, version string, logger *slog.Logger) *KeyHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &KeyHandler{
		issuer:    issuer,
		validator: validator,
		policy:    policy,
		version:   version,
		logger:    logger,
	}
}

// Index describes the service, its endpoints and the active limits.
// GET /api
func (h *KeyHandler) Index(w http.ResponseWriter, r *http.Request) {
	base := baseURL(r)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":    "keygate",
		"version": h.version,
		"status":  "online",
		"endpoints": map[string]interface{}{
			"getKey": map[string]interface{}{
				"method":      "POST",
				"url":         base + "/api/getkey",
				"description": "Generate or retrieve a key for a specific HWID",
				"body": map[string]string{
					"hwid":      "string (required)",
					"username":  "string (required)",
					"player_id": "string or number",
				},
			},
			"validate": map[string]interface{}{
				"method":      "POST",
				"url":         base + "/api/validate",
				"description": "Validate an existing key",
				"body": map[string]string{
					"key":  "string (required)",
					"hwid": "string (required)",
				},
			},
		},
		"rateLimit": map[string]interface{}{
			"perHwid": h.policy.Max,
			"window":  h.policy.Window.String(),
		},
		"keyExpiry": h.issuer.TTL().String(),
	})
}

// IssueInfo answers a GET on the issuance endpoint with a usage hint.
// GET /api/getkey
func (h *KeyHandler) IssueInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "online",
		"message": "Use POST method to get a key",
	})
}

// issueBody is the wire form of an issuance request. timestamp is accepted
// for compatibility and ignored.
type issueBody struct {
	HWID      string     `json:"hwid"`
	Username  string     `json:"username"`
	PlayerID  flexString `json:"player_id"`
	Timestamp *float64   `json:"timestamp,omitempty"`
}

type issueResponse struct {
	Success   bool      `json:"success"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expires_at"`
	IsNew     bool      `json:"is_new"`
	Message   string    `json:"message"`
}

// Issue returns the live key for the HWID or mints a new one.
// POST /api/getkey
func (h *KeyHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var body issueBody
	if err := readJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	res, err := h.issuer.Issue(r.Context(), model.IssueRequest{
		HWID:     body.HWID,
		Username: body.Username,
		PlayerID: string(body.PlayerID),
	})
	if err != nil {
		h.writeIssueError(w, r, err)
		return
	}

	msg := "Existing key returned"
	if res.IsNew {
		msg = "Key generated successfully"
	}
	writeJSON(w, http.StatusOK, issueResponse{
		Success:   true,
		Key:       res.Key,
		ExpiresAt: res.ExpiresAt,
		IsNew:     res.IsNew,
		Message:   msg,
	})
}

func (h *KeyHandler) writeIssueError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		ctx := map[string]interface{}{}
		if len(verr.Missing) > 0 {
			ctx["missing"] = verr.Missing
		}
		if len(verr.Invalid) > 0 {
			ctx["invalid"] = verr.Invalid
		}
		writeError(w, http.StatusBadRequest, capitalize(verr.Error()), ctx)
	case errors.Is(err, service.ErrRateLimited):
		w.Header().Set("Retry-After", strconv.Itoa(int(h.policy.Window.Seconds())))
		writeError(w, http.StatusTooManyRequests, "Rate limit exceeded. Try again later.")
	case errors.Is(err, service.ErrStoreUnavailable):
		h.logger.Error("issue failed", "error", err, "path", r.URL.Path)
		writeError(w, http.StatusServiceUnavailable, "Key store unavailable")
	default:
		h.logger.Error("issue failed", "error", err, "path", r.URL.Path)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

type validateResponse struct {
	model.ValidateResult
	Message string `json:"message"`
}

// Validate checks a key against the presenting HWID. Every verdict, negative
// ones included, is answered with 200.
// POST /api/validate
func (h *KeyHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req model.ValidateRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	res, err := h.validator.Validate(r.Context(), req)
	if err != nil {
		h.logger.Error("validate failed", "error", err, "path", r.URL.Path)
		if errors.Is(err, service.ErrStoreUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "Key store unavailable")
			return
		}
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, validateResponse{
		ValidateResult: res,
		Message:        model.ReasonMessage(res.Reason),
	})
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// baseURL reconstructs the externally visible origin of the request.
func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}

package model

import "time"

// IssueRequest is the input to key issuance. Field names follow the client
// payload: hwid, player_id, username.
type IssueRequest struct {
	HWID     string `json:"hwid" validate:"required,max=255"`
	Username string `json:"username" validate:"required,max=255"`
	PlayerID string `json:"player_id" validate:"max=255"`
}

// IssueResult is returned for a successful issuance. IsNew is false when an
// existing live key was handed back.
type IssueResult struct {
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expires_at"`
	IsNew     bool      `json:"is_new"`
}

// ValidateRequest is the input to key validation.
type ValidateRequest struct {
	Key  string `json:"key" validate:"required"`
	HWID string `json:"hwid" validate:"required"`
}

// Validation outcome reasons. These are ordinary results, not errors.
const (
	ReasonMissingFields = "missing_fields"
	ReasonNotFound      = "not_found"
	ReasonHWIDMismatch  = "hwid_mismatch"
	ReasonExpired       = "expired"
)

// ValidateResult is the verdict for one validation. Reason is set only when
// Valid is false; Username, TimeRemaining and ExpiresAt only when it is true.
type ValidateResult struct {
	Valid         bool       `json:"valid"`
	Reason        string     `json:"reason,omitempty"`
	Username      string     `json:"username,omitempty"`
	TimeRemaining int64      `json:"time_remaining,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

// ReasonMessage returns the human readable message for a validation reason.
func ReasonMessage(reason string) string {
	switch reason {
	case ReasonMissingFields:
		return "Missing key or hwid"
	case ReasonNotFound:
		return "Key not found"
	case ReasonHWIDMismatch:
		return "HWID mismatch"
	case ReasonExpired:
		return "Key expired"
	case "":
		return "Key is valid"
	default:
		return reason
	}
}

// Package openapi builds the OpenAPI document for keygate's HTTP API.
package openapi

import (
	"fmt"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
)

// Info carries the live policy values shown in operation descriptions.
type Info struct {
	Version         string
	KeyTTL          time.Duration
	RateLimitMax    int
	RateLimitWindow time.Duration
}

// Generate returns the OpenAPI 3 document for the HTTP API served at baseURL.
func Generate(baseURL string, info Info) *openapi3.T {
	version := info.Version
	if version == "" {
		version = "dev"
	}
	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       "keygate API",
			Description: "Issue and validate short-lived access keys bound to a hardware identifier.",
			Version:     version,
		},
		Servers: openapi3.Servers{
			{URL: baseURL},
		},
	}

	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{}
	components.SecuritySchemes = openapi3.SecuritySchemes{}
	doc.Components = &components

	doc.Components.SecuritySchemes["bearerAuth"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
		},
	}

	addSchemas(doc.Components.Schemas)

	doc.Paths = openapi3.NewPaths()
	addKeyPaths(doc, info)
	addAdminPaths(doc)

	return doc
}

// ─── Component Schemas ──────────────────────────────────────────────────────

func addSchemas(s openapi3.Schemas) {
	s["ErrorResponse"] = object(openapi3.Schemas{
		"error": object(openapi3.Schemas{
			"code":    integer("int32", ""),
			"message": str(""),
			"context": {Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}},
		}),
	})

	issueReq := object(openapi3.Schemas{
		"hwid":      str("Hardware identifier the key is bound to."),
		"username":  str("Display name of the player."),
		"player_id": str("Player identifier; numbers are accepted and kept as text."),
		"timestamp": integer("int64", "Client timestamp. Accepted and ignored."),
	})
	issueReq.Value.Required = []string{"hwid", "username"}
	s["IssueRequest"] = issueReq

	s["IssueResponse"] = object(openapi3.Schemas{
		"success":    boolean(""),
		"key":        str("The access key."),
		"expires_at": dateTime(""),
		"is_new":     boolean("False when an existing live key was returned."),
		"message":    str(""),
	})

	validateReq := object(openapi3.Schemas{
		"key":  str(""),
		"hwid": str(""),
	})
	validateReq.Value.Required = []string{"key", "hwid"}
	s["ValidateRequest"] = validateReq

	reason := str("Present when valid is false.")
	reason.Value.Enum = []interface{}{"missing_fields", "not_found", "hwid_mismatch", "expired"}
	s["ValidateResponse"] = object(openapi3.Schemas{
		"valid":          boolean(""),
		"reason":         reason,
		"message":        str(""),
		"username":       str("Present when valid."),
		"time_remaining": integer("int64", "Whole seconds until expiry. Present when valid."),
		"expires_at":     dateTime("Present when valid."),
	})

	s["KeyRecord"] = object(openapi3.Schemas{
		"key":               str(""),
		"hwid":              str(""),
		"username":          str(""),
		"player_id":         str(""),
		"created_at":        dateTime(""),
		"expires_at":        dateTime(""),
		"last_validated_at": dateTime("Time of the last successful validation."),
		"used":              boolean("Set by the first successful validation."),
	})

	s["CleanupResponse"] = object(openapi3.Schemas{
		"success":       boolean(""),
		"message":       str(""),
		"deleted_count": integer("int64", ""),
	})

	s["StatsResponse"] = object(openapi3.Schemas{
		"live_keys": integer("int64", "Keys that have not expired."),
		"driver":    str("Storage backend in use."),
	})
}

// ─── Paths ──────────────────────────────────────────────────────────────────

func addKeyPaths(doc *openapi3.T, info Info) {
	doc.Paths.Set("/api", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"keys"},
			Summary:     "Describe the service",
			OperationID: "get_index",
			Responses:   newResponses("200", "Service description", freeForm()),
		},
	})

	doc.Paths.Set("/api/getkey", &openapi3.PathItem{
		Post: &openapi3.Operation{
			Tags:    []string{"keys"},
			Summary: "Issue an access key",
			Description: fmt.Sprintf(
				"Returns the live key for the HWID or mints a new one valid for %s. "+
					"Each HWID may make %d attempts per %s.",
				info.KeyTTL, info.RateLimitMax, info.RateLimitWindow),
			OperationID: "issue_key",
			RequestBody: jsonBody("Issuance request", "IssueRequest"),
			Responses: withErrors(
				newResponses("200", "Issued or reused key", ref("IssueResponse")),
				"400", "429", "503",
			),
		},
	})

	doc.Paths.Set("/api/validate", &openapi3.PathItem{
		Post: &openapi3.Operation{
			Tags:        []string{"keys"},
			Summary:     "Validate an access key",
			Description: "Negative verdicts are returned with status 200 and a reason.",
			OperationID: "validate_key",
			RequestBody: jsonBody("Validation request", "ValidateRequest"),
			Responses:   withErrors(newResponses("200", "Verdict", ref("ValidateResponse")), "400", "503"),
		},
	})
}

func addAdminPaths(doc *openapi3.T) {
	security := &openapi3.SecurityRequirements{{"bearerAuth": {}}}
	keyParam := &openapi3.ParameterRef{
		Value: openapi3.NewPathParameter("key").WithSchema(openapi3.NewStringSchema()),
	}

	doc.Paths.Set("/api/admin/cleanup", &openapi3.PathItem{
		Post: &openapi3.Operation{
			Tags:        []string{"admin"},
			Summary:     "Delete expired keys",
			OperationID: "cleanup_expired",
			Security:    security,
			Responses:   withErrors(newResponses("200", "Cleanup result", ref("CleanupResponse")), "401", "503"),
		},
	})

	doc.Paths.Set("/api/admin/keys/{key}", &openapi3.PathItem{
		Parameters: openapi3.Parameters{keyParam},
		Get: &openapi3.Operation{
			Tags:        []string{"admin"},
			Summary:     "Show a key record",
			OperationID: "get_key",
			Security:    security,
			Responses:   withErrors(newResponses("200", "Key record", ref("KeyRecord")), "401", "404", "503"),
		},
		Delete: &openapi3.Operation{
			Tags:        []string{"admin"},
			Summary:     "Revoke a key",
			OperationID: "revoke_key",
			Security:    security,
			Responses:   withErrors(newResponses("204", "Key revoked", nil), "401", "404", "503"),
		},
	})

	doc.Paths.Set("/api/admin/stats", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"admin"},
			Summary:     "Key statistics",
			OperationID: "get_stats",
			Security:    security,
			Responses:   withErrors(newResponses("200", "Statistics", ref("StatsResponse")), "401", "503"),
		},
	})
}

// ─── Builders ───────────────────────────────────────────────────────────────

var errorDescriptions = map[string]string{
	"400": "Bad request",
	"401": "Unauthorized",
	"404": "Not found",
	"429": "Rate limit exceeded",
	"503": "Store unavailable",
}

func newResponses(statusCode, description string, schema *openapi3.SchemaRef) *openapi3.Responses {
	responses := openapi3.NewResponses()
	resp := &openapi3.Response{Description: &description}
	if schema != nil {
		resp.Content = openapi3.NewContentWithJSONSchemaRef(schema)
	}
	responses.Set(statusCode, &openapi3.ResponseRef{Value: resp})
	return responses
}

func withErrors(responses *openapi3.Responses, codes ...string) *openapi3.Responses {
	errorRef := ref("ErrorResponse")
	for _, code := range codes {
		desc := errorDescriptions[code]
		responses.Set(code, &openapi3.ResponseRef{
			Value: &openapi3.Response{
				Description: &desc,
				Content:     openapi3.NewContentWithJSONSchemaRef(errorRef),
			},
		})
	}
	return responses
}

func jsonBody(description, schemaName string) *openapi3.RequestBodyRef {
	return &openapi3.RequestBodyRef{
		Value: &openapi3.RequestBody{
			Description: description,
			Required:    true,
			Content:     openapi3.NewContentWithJSONSchemaRef(ref(schemaName)),
		},
	}
}

func ref(name string) *openapi3.SchemaRef {
	return openapi3.NewSchemaRef("#/components/schemas/"+name, nil)
}

func object(props openapi3.Schemas) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}, Properties: props}}
}

func freeForm() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}}
}

func str(description string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Description: description}}
}

func dateTime(description string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: "date-time", Description: description}}
}

func integer(format, description string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: format, Description: description}}
}

func boolean(description string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"boolean"}, Description: description}}
}

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/keygate/keygate/internal/model"
	"github.com/keygate/keygate/internal/service"
)

// registerTools registers all keygate MCP tools on the given server.
func (s *MCPServer) registerTools(srv *server.MCPServer) {
	srv.AddTool(
		mcp.NewTool("keygate_issue_key",
			mcp.WithDescription(
				fmt.Sprintf("Issue an access key bound to a hardware identifier. If the HWID "+
					"already holds a live key, that key is returned with is_new=false. Each "+
					"HWID may make %d issuance attempts per %s; further attempts fail.",
					s.deps.Policy.Max, s.deps.Policy.Window),
			),
			mcp.WithToolAnnotation(mutatingAnnotation()),
			mcp.WithString("hwid",
				mcp.Required(),
				mcp.Description("Hardware identifier the key is bound to"),
			),
			mcp.WithString("username",
				mcp.Required(),
				mcp.Description("Display name of the player"),
			),
			mcp.WithString("player_id",
				mcp.Description("Player identifier"),
			),
		),
		s.handleIssueKey,
	)

	srv.AddTool(
		mcp.NewTool("keygate_validate_key",
			mcp.WithDescription(
				"Check whether a key is valid for a hardware identifier. Returns valid=true "+
					"with the username and seconds remaining, or valid=false with a reason: "+
					"missing_fields, not_found, hwid_mismatch or expired. An expired key is "+
					"deleted when it is validated.",
			),
			mcp.WithToolAnnotation(mutatingAnnotation()),
			mcp.WithString("key",
				mcp.Required(),
				mcp.Description("The access key to check"),
			),
			mcp.WithString("hwid",
				mcp.Required(),
				mcp.Description("Hardware identifier presenting the key"),
			),
		),
		s.handleValidateKey,
	)

	srv.AddTool(
		mcp.NewTool("keygate_cleanup_expired",
			mcp.WithDescription("Delete every expired key and report how many were removed."),
			mcp.WithToolAnnotation(mutatingAnnotation()),
		),
		s.handleCleanupExpired,
	)
}

// =========================================================================
// Tool handlers
// =========================================================================

func (s *MCPServer) handleIssueKey(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	hwid, err := requireString(request, "hwid")
	if err != nil {
		return toolError("%v", err)
	}
	username, err := requireString(request, "username")
	if err != nil {
		return toolError("%v", err)
	}

	res, err := s.deps.Issuer.Issue(ctx, model.IssueRequest{
		HWID:     hwid,
		Username: username,
		PlayerID: optionalString(request, "player_id"),
	})
	if err != nil {
		var verr *service.ValidationError
		switch {
		case errors.As(err, &verr):
			return toolError("Invalid request: %v", verr)
		case errors.Is(err, service.ErrRateLimited):
			return toolError("Rate limit exceeded for HWID %q: at most %d attempts per %s",
				hwid, s.deps.Policy.Max, s.deps.Policy.Window)
		default:
			s.logger.Error("mcp issue failed", "error", err)
			return toolError("Issuance failed: %v", err)
		}
	}
	return successJSON(res)
}

func (s *MCPServer) handleValidateKey(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	// Empty arguments are a verdict (missing_fields), not a tool error.
	res, err := s.deps.Validator.Validate(ctx, model.ValidateRequest{
		Key:  strings.TrimSpace(optionalString(request, "key")),
		HWID: strings.TrimSpace(optionalString(request, "hwid")),
	})
	if err != nil {
		s.logger.Error("mcp validate failed", "error", err)
		return toolError("Validation failed: %v", err)
	}

	return successJSON(struct {
		model.ValidateResult
		Message string `json:"message"`
	}{res, model.ReasonMessage(res.Reason)})
}

func (s *MCPServer) handleCleanupExpired(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	n, err := s.deps.Sweeper.Sweep(ctx)
	if err != nil {
		return toolError("Cleanup failed: %v", err)
	}
	return successJSON(map[string]interface{}{
		"deleted_count": n,
	})
}

// registerResources adds MCP resource definitions to the server. Resources
// provide read-only data that LLM clients can load into their context.
func (s *MCPServer) registerResources(srv *server.MCPServer) {
	srv.AddResource(
		mcp.NewResource(
			"keygate://policy",
			"Key Policy",
			mcp.WithResourceDescription("Key lifetime and per-HWID issuance limits in effect."),
			mcp.WithMIMEType("application/json"),
		),
		s.handlePolicyResource,
	)
}

func (s *MCPServer) handlePolicyResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {

	b, err := json.MarshalIndent(policyView(s), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal policy: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "keygate://policy",
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}

func policyView(s *MCPServer) map[string]interface{} {
	return map[string]interface{}{
		"key_ttl_seconds":           int64(s.deps.Issuer.TTL().Seconds()),
		"rate_limit_max":            s.deps.Policy.Max,
		"rate_limit_window_seconds": int64(s.deps.Policy.Window.Seconds()),
	}
}

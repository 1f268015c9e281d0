package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/keygate/keygate/internal/clock"
	"github.com/keygate/keygate/internal/keygen"
	"github.com/keygate/keygate/internal/model"
	"github.com/keygate/keygate/internal/ratelimit"
	"github.com/keygate/keygate/internal/service"
	"github.com/keygate/keygate/internal/store"
)

type testEnv struct {
	server *MCPServer
	clock  *clock.Manual
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	clk := clock.NewManual(time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC))
	st := store.NewMemoryStore()
	policy := ratelimit.Policy{Max: 2, Window: time.Hour}
	limiter, err := ratelimit.NewMemory(policy, clk)
	if err != nil {
		t.Fatalf("ratelimit.NewMemory: %v", err)
	}
	gen, err := keygen.New(keygen.DefaultLength)
	if err != nil {
		t.Fatalf("keygen.New: %v", err)
	}
	cfg := service.Config{TTL: time.Hour}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	srv := NewMCPServer(Deps{
		Issuer:    service.NewIssuer(st, limiter, gen, clk, cfg),
		Validator: service.NewValidator(st, clk, cfg),
		Sweeper:   service.NewSweeper(st, clk, cfg),
		Policy:    policy,
	}, "test", logger)
	return &testEnv{server: srv, clock: clk}
}

func callRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

// resultText returns the text of the first content item.
func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want TextContent", res.Content[0])
	}
	return text.Text
}

func (e *testEnv) issue(t *testing.T, hwid string) model.IssueResult {
	t.Helper()
	res, err := e.server.handleIssueKey(context.Background(), callRequest("keygate_issue_key", map[string]interface{}{
		"hwid": hwid, "username": "agent", "player_id": "99",
	}))
	if err != nil {
		t.Fatalf("handleIssueKey: %v", err)
	}
	if res.IsError {
		t.Fatalf("issue failed: %s", resultText(t, res))
	}
	var out model.IssueResult
	if err := json.Unmarshal([]byte(resultText(t, res)), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func TestIssueAndValidateTools(t *testing.T) {
	env := newTestEnv(t)

	first := env.issue(t, "HW-MCP")
	if !first.IsNew || first.Key == "" {
		t.Fatalf("first = %+v", first)
	}
	if again := env.issue(t, "HW-MCP"); again.Key != first.Key || again.IsNew {
		t.Errorf("second issue = %+v, want reuse", again)
	}

	res, err := env.server.handleValidateKey(context.Background(), callRequest("keygate_validate_key", map[string]interface{}{
		"key": first.Key, "hwid": "HW-MCP",
	}))
	if err != nil {
		t.Fatalf("handleValidateKey: %v", err)
	}
	text := resultText(t, res)
	if !strings.Contains(text, `"valid": true`) || !strings.Contains(text, `"username": "agent"`) {
		t.Errorf("validate result = %s", text)
	}
}

func TestValidateToolMissingArguments(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.server.handleValidateKey(context.Background(), callRequest("keygate_validate_key", map[string]interface{}{}))
	if err != nil {
		t.Fatalf("handleValidateKey: %v", err)
	}
	if res.IsError {
		t.Fatalf("missing fields should be a verdict, got error %s", resultText(t, res))
	}
	if text := resultText(t, res); !strings.Contains(text, model.ReasonMissingFields) {
		t.Errorf("result = %s", text)
	}
}

func TestIssueToolErrors(t *testing.T) {
	env := newTestEnv(t)

	res, _ := env.server.handleIssueKey(context.Background(), callRequest("keygate_issue_key", map[string]interface{}{
		"username": "agent",
	}))
	if !res.IsError || !strings.Contains(resultText(t, res), `"hwid"`) {
		t.Errorf("missing hwid: %s", resultText(t, res))
	}

	env.issue(t, "HW-LIMIT")
	env.issue(t, "HW-LIMIT")
	res, _ = env.server.handleIssueKey(context.Background(), callRequest("keygate_issue_key", map[string]interface{}{
		"hwid": "HW-LIMIT", "username": "agent",
	}))
	if !res.IsError || !strings.Contains(resultText(t, res), "Rate limit exceeded") {
		t.Errorf("third attempt: %s", resultText(t, res))
	}
}

func TestCleanupTool(t *testing.T) {
	env := newTestEnv(t)
	env.issue(t, "HW-1")
	env.clock.Advance(2 * time.Hour)

	res, err := env.server.handleCleanupExpired(context.Background(), callRequest("keygate_cleanup_expired", nil))
	if err != nil {
		t.Fatalf("handleCleanupExpired: %v", err)
	}
	if text := resultText(t, res); !strings.Contains(text, `"deleted_count": 1`) {
		t.Errorf("result = %s", text)
	}
}

func TestPolicyResource(t *testing.T) {
	env := newTestEnv(t)

	var req mcp.ReadResourceRequest
	req.Params.URI = "keygate://policy"
	contents, err := env.server.handlePolicyResource(context.Background(), req)
	if err != nil {
		t.Fatalf("handlePolicyResource: %v", err)
	}
	text, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("content is %T", contents[0])
	}
	for _, want := range []string{`"key_ttl_seconds": 3600`, `"rate_limit_max": 2`} {
		if !strings.Contains(text.Text, want) {
			t.Errorf("policy %s missing %s", text.Text, want)
		}
	}
}

func TestMutatingAnnotation(t *testing.T) {
	ann := mutatingAnnotation()

	if ann.ReadOnlyHint == nil {
		t.Fatal("ReadOnlyHint should not be nil for mutatingAnnotation")
	}
	if *ann.ReadOnlyHint != false {
		t.Errorf("ReadOnlyHint = %v, want false", *ann.ReadOnlyHint)
	}
}

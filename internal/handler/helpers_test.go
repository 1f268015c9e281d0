package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestFlexString(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"string", `{"v":"abc"}`, "abc", false},
		{"integer", `{"v":12345}`, "12345", false},
		{"large integer", `{"v":9007199254740993}`, "9007199254740993", false},
		{"null", `{"v":null}`, "", false},
		{"absent", `{}`, "", false},
		{"bool", `{"v":true}`, "", true},
		{"object", `{"v":{}}`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out struct {
				V flexString `json:"v"`
			}
			err := json.Unmarshal([]byte(tt.input), &out)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && string(out.V) != tt.want {
				t.Errorf("got %q, want %q", out.V, tt.want)
			}
		})
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, http.StatusTooManyRequests, "slow down", map[string]interface{}{"hwid": "x"})

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	body := rec.Body.String()
	for _, want := range []string{`"code":429`, `"message":"slow down"`, `"hwid":"x"`} {
		if !strings.Contains(body, want) {
			t.Errorf("body %s missing %s", body, want)
		}
	}
}

func TestReadJSONRejectsOversizedBody(t *testing.T) {
	big := `{"hwid":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	req := httptest.NewRequest("POST", "/api/getkey", strings.NewReader(big))
	rec := httptest.NewRecorder()

	var v map[string]string
	err := readJSON(rec, req, &v)
	if err == nil || !strings.Contains(err.Error(), "exceeds") {
		t.Errorf("err = %v, want size error", err)
	}
}

func TestBaseURL(t *testing.T) {
	req := httptest.NewRequest("GET", "/api", nil)
	req.Host = "localhost:8080"
	if got := baseURL(req); got != "http://localhost:8080" {
		t.Errorf("baseURL = %q", got)
	}
	req.Header.Set("X-Forwarded-Proto", "https")
	if got := baseURL(req); got != "https://localhost:8080" {
		t.Errorf("baseURL = %q", got)
	}
}

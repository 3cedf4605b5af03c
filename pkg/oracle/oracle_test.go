package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SurakshaAI/shield/pkg/config"
)

func newTestClient(serverURL string) *Client {
	cfg := config.NewLocalConfig()
	cfg.OracleProvider = config.ProviderCustom
	cfg.OracleBaseURL = serverURL
	cfg.OracleModel = "test-model"
	cfg.OracleTimeout = 2 * time.Second
	return New(cfg)
}

func chatReply(content string) string {
	payload := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
	}
	data, _ := json.Marshal(payload)
	return string(data)
}

func TestAnalyzeValidResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, chatReply(`{"is_phishing": true, "risk_score": 85,
			"explanation": "OTP request with urgency",
			"tactics": ["Urgency", "Fear"],
			"technical_indicators": ["Credential Harvesting Pattern"],
			"confidence": 0.9}`))
	}))
	defer server.Close()

	op, err := newTestClient(server.URL).Analyze(context.Background(), "share otp now")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if !op.Phishing {
		t.Error("expected phishing verdict")
	}
	if op.Risk != 0.85 {
		t.Errorf("risk = %f, want 0.85 (normalized from 85)", op.Risk)
	}
	if op.Confidence != 0.9 {
		t.Errorf("confidence = %f, want 0.9", op.Confidence)
	}
	if len(op.Tactics) != 2 {
		t.Errorf("tactics = %v, want 2", op.Tactics)
	}
}

func TestAnalyzeExtractsJSONFromMarkdown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chatReply("Here is my analysis:\n```json\n{\"is_phishing\": false, \"risk_score\": 10, \"confidence\": 0.8}\n```\nLet me know if you need more."))
	}))
	defer server.Close()

	op, err := newTestClient(server.URL).Analyze(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if op.Phishing || op.Risk != 0.10 {
		t.Errorf("got phishing=%v risk=%f, want false/0.10", op.Phishing, op.Risk)
	}
}

func TestAnalyzeMalformedResponses(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", "I think this message is probably a scam."},
		{"missing required fields", `{"explanation": "looks bad"}`},
		{"risk out of range", `{"is_phishing": true, "risk_score": 400, "confidence": 0.9}`},
		{"negative risk", `{"is_phishing": false, "risk_score": -5, "confidence": 0.5}`},
		{"confidence out of range", `{"is_phishing": true, "risk_score": 50, "confidence": 7.0}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, chatReply(tt.content))
			}))
			defer server.Close()

			if _, err := newTestClient(server.URL).Analyze(context.Background(), "text"); err == nil {
				t.Error("malformed payload must surface as an error")
			}
		})
	}
}

func TestAnalyzeServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "rate limited"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	if _, err := newTestClient(server.URL).Analyze(context.Background(), "text"); err == nil {
		t.Error("non-200 status must surface as an error")
	}
}

func TestAnalyzeTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		fmt.Fprint(w, chatReply(`{"is_phishing": false, "risk_score": 0}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	c.timeout = 50 * time.Millisecond

	if _, err := c.Analyze(context.Background(), "text"); err == nil {
		t.Error("expected timeout error")
	}
}

func TestAnalyzeDefaultConfidence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chatReply(`{"is_phishing": true, "risk_score": 70}`))
	}))
	defer server.Close()

	op, err := newTestClient(server.URL).Analyze(context.Background(), "text")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if op.Confidence != 0.5 {
		t.Errorf("missing confidence should default to 0.5, got %f", op.Confidence)
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{`prefix {"a":{"b":2}} suffix`, `{"a":{"b":2}}`},
	}
	for _, tt := range tests {
		if got := extractJSON(tt.in); got != tt.want {
			t.Errorf("extractJSON(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

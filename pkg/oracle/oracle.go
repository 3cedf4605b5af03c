// Package oracle asks an external AI service for a second opinion on a
// message. The oracle is strictly advisory: every failure mode, from
// timeouts to malformed payloads, leaves the caller with the local verdict.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/SurakshaAI/shield/pkg/config"
	"github.com/SurakshaAI/shield/pkg/httputil"
)

// Opinion is a validated oracle verdict. Risk is normalized to [0,1] at
// this boundary; the wire format uses 0-100.
type Opinion struct {
	Phishing            bool
	Risk                float64 // 0.0-1.0
	Explanation         string
	Tactics             []string
	TechnicalIndicators []string
	Confidence          float64 // 0.0-1.0
	LatencyMs           float64
}

// Client calls an OpenAI-compatible chat completion endpoint and parses the
// structured verdict out of the reply.
type Client struct {
	http     *http.Client
	provider config.OracleProvider
	baseURL  string
	apiKey   string
	model    string
	timeout  time.Duration
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// wireOpinion is the JSON shape the model is instructed to return.
type wireOpinion struct {
	IsPhishing          *bool    `json:"is_phishing"`
	RiskScore           *float64 `json:"risk_score"` // 0-100
	Explanation         string   `json:"explanation"`
	Tactics             []string `json:"tactics"`
	TechnicalIndicators []string `json:"technical_indicators"`
	Confidence          *float64 `json:"confidence"` // 0.0-1.0
}

const systemPrompt = `You are a fraud analyst reviewing one SMS/chat message for phishing or scam intent.
The message may mix languages (Hindi, Tamil, Bengali, English and transliterations).

Judge the sender's intent, not the topic: asking for OTP, PIN, CVV, passwords,
"KYC verification", urgent account threats, prize-fee requests, and links to
lookalike or shortened domains are scam markers. Ordinary banking or school or
sports conversation without an ask is benign.

Respond with JSON only:
{"is_phishing": true|false, "risk_score": 0-100, "explanation": "one sentence",
"tactics": ["Urgency","Authority","Fear","Greed"], "technical_indicators": ["..."],
"confidence": 0.0-1.0}`

// New builds an oracle client from configuration.
func New(cfg *config.Config) *Client {
	baseURL := cfg.OracleBaseURL
	if baseURL == "" {
		switch cfg.OracleProvider {
		case config.ProviderOllama:
			baseURL = "http://localhost:11434/v1"
		case config.ProviderGroq:
			baseURL = "https://api.groq.com/openai/v1"
		case config.ProviderOpenRouter:
			baseURL = "https://openrouter.ai/api/v1"
		default:
			baseURL = "https://api.openai.com/v1"
		}
	}

	timeout := cfg.OracleTimeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}

	return &Client{
		http:     httputil.MediumClient(),
		provider: cfg.OracleProvider,
		baseURL:  baseURL,
		apiKey:   cfg.OracleAPIKey,
		model:    cfg.OracleModel,
		timeout:  timeout,
	}
}

// Analyze asks the oracle for a verdict on text. Any provider error,
// non-200 status, or payload failing validation comes back as an error;
// the caller treats them all as "oracle unavailable".
func (c *Client) Analyze(ctx context.Context, text string) (*Opinion, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	content, err := c.chat(ctx, text)
	latency := float64(time.Since(start).Microseconds()) / 1000.0
	if err != nil {
		return nil, err
	}

	var wire wireOpinion
	if err := json.Unmarshal([]byte(extractJSON(content)), &wire); err != nil {
		return nil, fmt.Errorf("parse oracle response: %w", err)
	}

	op, err := wire.validate()
	if err != nil {
		return nil, err
	}
	op.LatencyMs = latency
	return op, nil
}

// validate enforces the contract: required fields present, ranges sane.
// Anything off-contract is rejected so a hallucinated payload cannot steer
// the fused score.
func (w wireOpinion) validate() (*Opinion, error) {
	if w.IsPhishing == nil || w.RiskScore == nil {
		return nil, fmt.Errorf("oracle response missing required fields")
	}
	if *w.RiskScore < 0 || *w.RiskScore > 100 {
		return nil, fmt.Errorf("oracle risk_score %.1f out of range", *w.RiskScore)
	}
	confidence := 0.5
	if w.Confidence != nil {
		if *w.Confidence < 0 || *w.Confidence > 1 {
			return nil, fmt.Errorf("oracle confidence %.2f out of range", *w.Confidence)
		}
		confidence = *w.Confidence
	}
	return &Opinion{
		Phishing:            *w.IsPhishing,
		Risk:                *w.RiskScore / 100.0,
		Explanation:         strings.TrimSpace(w.Explanation),
		Tactics:             w.Tactics,
		TechnicalIndicators: w.TechnicalIndicators,
		Confidence:          confidence,
	}, nil
}

func (c *Client) chat(ctx context.Context, text string) (string, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: "MESSAGE: " + text},
		},
		Temperature: 0.1,
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	endpoint := strings.TrimRight(c.baseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := httputil.ReadResponseBody(resp.Body, httputil.MaxResponseSize)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("oracle API error %d: %s", resp.StatusCode, string(body))
	}

	var result chatResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("unmarshal oracle envelope: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("oracle returned no choices")
	}
	return result.Choices[0].Message.Content, nil
}

// extractJSON cuts the first-to-last brace span out of a reply, tolerating
// markdown fences and chatter around the payload.
func extractJSON(content string) string {
	clean := strings.TrimSpace(content)
	if start := strings.Index(clean, "{"); start != -1 {
		clean = clean[start:]
	}
	if end := strings.LastIndex(clean, "}"); end != -1 {
		clean = clean[:end+1]
	}
	return clean
}

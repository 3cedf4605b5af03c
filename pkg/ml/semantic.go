package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/SurakshaAI/shield/pkg/httputil"
)

// ScamTemplate is one known scam message shape used for similarity matching.
type ScamTemplate struct {
	Text     string
	Category string // lottery, banking, kyc, delivery, job, ...
	Language string
}

// TemplateMatch is the best-matching template for a query text.
type TemplateMatch struct {
	Template   string
	Category   string
	Language   string
	Similarity float32
}

// TemplateMatcher finds known scam templates semantically close to a
// message. It needs an embedding backend (Ollama), so it is an optional
// tier: construction fails cleanly when the backend is missing and the
// pipeline runs without it.
type TemplateMatcher struct {
	collection *chromem.Collection
	threshold  float32
	mu         sync.RWMutex
	ready      bool
}

// newOllamaEmbeddingFunc builds a chromem embedding function backed by
// Ollama's /api/embeddings endpoint.
func newOllamaEmbeddingFunc(model, baseURL string) chromem.EmbeddingFunc {
	client := httputil.FastClient()

	return func(ctx context.Context, text string) ([]float32, error) {
		reqBody := map[string]string{
			"model":  model,
			"prompt": text,
		}
		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("marshal embedding request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, "POST", strings.TrimRight(baseURL, "/")+"/api/embeddings", bytes.NewBuffer(jsonData))
		if err != nil {
			return nil, fmt.Errorf("create embedding request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("embedding request failed: %w", err)
		}
		defer httputil.DrainAndClose(resp.Body)

		if resp.StatusCode != http.StatusOK {
			body, _ := httputil.ReadErrorBody(resp.Body)
			return nil, fmt.Errorf("ollama embedding error %d: %s", resp.StatusCode, string(body))
		}

		var result struct {
			Embedding []float32 `json:"embedding"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return nil, fmt.Errorf("decode embedding response: %w", err)
		}
		return result.Embedding, nil
	}
}

// NewTemplateMatcher creates a matcher backed by Ollama embeddings.
func NewTemplateMatcher(ollamaURL string) (*TemplateMatcher, error) {
	db := chromem.NewDB()
	collection, err := db.CreateCollection("scam_templates", nil, newOllamaEmbeddingFunc("embeddinggemma", ollamaURL))
	if err != nil {
		return nil, fmt.Errorf("create template collection: %w", err)
	}
	return &TemplateMatcher{
		collection: collection,
		threshold:  0.70,
	}, nil
}

// LoadTemplates embeds the built-in scam template corpus into the vector
// store. Called once at startup; it talks to the embedding backend, so a
// dead Ollama fails here rather than at query time.
func (tm *TemplateMatcher) LoadTemplates(ctx context.Context) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	templates := scamTemplates()
	docs := make([]chromem.Document, len(templates))
	for i, t := range templates {
		docs[i] = chromem.Document{
			ID:      fmt.Sprintf("template_%d", i),
			Content: t.Text,
			Metadata: map[string]string{
				"category": t.Category,
				"language": t.Language,
			},
		}
	}

	// One worker keeps the embedding backend from being flooded at startup
	if err := tm.collection.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("embed templates: %w", err)
	}

	tm.ready = true
	log.Printf("[INFO] Loaded %d scam templates into the semantic matcher", len(templates))
	return nil
}

// IsReady reports whether LoadTemplates completed.
func (tm *TemplateMatcher) IsReady() bool {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return tm.ready
}

// Match returns the closest known template when its similarity clears the
// threshold, nil otherwise.
func (tm *TemplateMatcher) Match(ctx context.Context, text string) (*TemplateMatch, error) {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	if !tm.ready {
		return nil, fmt.Errorf("template matcher not initialized, call LoadTemplates first")
	}

	results, err := tm.collection.Query(ctx, strings.ToLower(text), 1, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("template query failed: %w", err)
	}
	if len(results) == 0 || results[0].Similarity < tm.threshold {
		return nil, nil
	}

	best := results[0]
	return &TemplateMatch{
		Template:   best.Content,
		Category:   best.Metadata["category"],
		Language:   best.Metadata["language"],
		Similarity: best.Similarity,
	}, nil
}

var (
	cachedTemplates     []ScamTemplate
	cachedTemplatesOnce sync.Once
)

// scamTemplates returns the built-in template corpus, built once and reused.
func scamTemplates() []ScamTemplate {
	cachedTemplatesOnce.Do(func() {
		cachedTemplates = []ScamTemplate{
			// === Banking / KYC ===
			{"Dear customer your account will be blocked today, complete KYC verification immediately", "kyc", "en"},
			{"Your SBI account has been suspended, click the link to reactivate", "banking", "en"},
			{"RBI alert: verify your bank details now or your account will be frozen", "banking", "en"},
			{"Update your PAN card with your bank account or service will stop", "kyc", "en"},
			{"आपका खाता बंद हो जाएगा, तुरंत केवाईसी अपडेट करें", "kyc", "hi"},
			{"आपके बैंक खाते में समस्या है, ओटीपी भेजकर सत्यापित करें", "banking", "hi"},
			{"உங்கள் வங்கி கணக்கு முடக்கப்படும், இப்போது சரிபார்க்கவும்", "banking", "ta"},
			{"আপনার ব্যাংক অ্যাকাউন্ট বন্ধ হয়ে যাবে, এখনই যাচাই করুন", "banking", "bn"},

			// === OTP / credential harvesting ===
			{"Share the OTP sent to your phone to complete the verification", "otp", "en"},
			{"Your card will be deactivated, confirm your CVV and PIN to continue", "otp", "en"},
			{"We noticed suspicious login, send the 6 digit code to secure your account", "otp", "en"},
			{"Bank se bol raha hoon, OTP batao warna account block ho jayega", "otp", "hi-en"},

			// === Lottery / prize ===
			{"Congratulations! You have won 25 lakh in the lucky draw, pay processing fee to claim", "lottery", "en"},
			{"Your number was selected for a KBC lottery prize, contact immediately", "lottery", "en"},
			{"बधाई हो आपने लॉटरी जीती है, पुरस्कार पाने के लिए शुल्क भेजें", "lottery", "hi"},

			// === Delivery / utility ===
			{"Your package is held at customs, pay the clearance fee at this link", "delivery", "en"},
			{"Electricity will be disconnected tonight, call this number to pay pending bill", "utility", "en"},
			{"Your courier could not be delivered, update your address and pay redelivery charge", "delivery", "en"},

			// === Job / investment ===
			{"Earn 5000 daily working from home, registration fee only 499", "job", "en"},
			{"Guaranteed double returns in 30 days, invest now in this scheme", "investment", "en"},
			{"Part time job offer, like videos and earn money, join telegram group", "job", "en"},

			// === Government impersonation ===
			{"Income tax refund pending, validate your bank account at this link", "government", "en"},
			{"Your Aadhaar will be deactivated, verify your details immediately", "government", "en"},

			// === Benign anchors (false positive prevention) ===
			{"The cricket match starts at 7pm, see the full schedule and player list", "benign", "en"},
			{"Class project submission deadline is Friday, upload to the portal", "benign", "en"},
			{"Meeting agenda and minutes attached, please review before Thursday", "benign", "en"},
			{"Your invoice and receipt for last month are attached", "benign", "en"},
			{"कल स्कूल में वार्षिक उत्सव है, समय पर आएं", "benign", "hi"},
		}
	})
	return cachedTemplates
}

// TemplateCount returns the number of built-in templates.
func (tm *TemplateMatcher) TemplateCount() int {
	return len(scamTemplates())
}

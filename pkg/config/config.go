package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// OracleProvider defines the backend AI service used for second opinions
type OracleProvider string

const (
	ProviderNone       OracleProvider = "none"       // Local-only scoring
	ProviderOllama     OracleProvider = "ollama"     // Local Ollama server
	ProviderOpenRouter OracleProvider = "openrouter" // OpenRouter (has free tier)
	ProviderGroq       OracleProvider = "groq"       // Groq (high-speed inference)
	ProviderOpenAI     OracleProvider = "openai"     // Direct OpenAI API
	ProviderCustom     OracleProvider = "custom"     // Custom OpenAI-compatible endpoint
)

// SeverityBands holds the score boundaries between severity buckets.
// Scores below Medium are "low", below High "medium", below Critical "high",
// everything else "critical".
type SeverityBands struct {
	Medium   float64
	High     float64
	Critical float64
}

// Severity maps a 0.0-1.0 risk score onto its band name.
func (b SeverityBands) Severity(score float64) string {
	switch {
	case score >= b.Critical:
		return "critical"
	case score >= b.High:
		return "high"
	case score >= b.Medium:
		return "medium"
	default:
		return "low"
	}
}

// Config holds global settings for Shield
// All settings can be configured via environment variables or programmatically
type Config struct {
	// === Model ===
	ModelPath string // Path to the trained model artifact (default: "models/phishing_model.json")

	// === Oracle Configuration ===
	// These settings control the external AI second-opinion tier
	OracleProvider OracleProvider // Which AI service to use: "ollama", "openrouter", "groq", "openai", "custom", "none"
	OracleAPIKey   string         // API key for cloud providers (env: SHIELD_ORACLE_API_KEY or provider-specific)
	OracleModel    string         // Model identifier (e.g., "gpt-4o-mini")
	OracleBaseURL  string         // Custom base URL for self-hosted or custom providers
	OracleTimeout  time.Duration  // Hard deadline for one oracle call (default: 8s)
	OracleMinScore float64        // Only consult the oracle when the local score reaches this (default: 0.30)

	// === Fusion (0.0 - 1.0) ===
	// Tune these to balance local determinism vs. oracle judgement
	LocalWeight       float64 // Weight of the local score in the hybrid blend (default: 0.65)
	DisagreementDelta float64 // |local-oracle| above this -> trust the oracle outright (default: 0.30)

	// === Evidence & line-level scoring ===
	EvidenceCap    int // Max evidence items per result (default: 6)
	MinLineLength  int // Minimum line length in runes for per-line scoring (default: 20)
	MaxScoredLines int // Max lines scored per document (default: 120)
	MaxLineHits    int // Max line detections kept per document (default: 6)

	// === Severity bands ===
	Bands SeverityBands

	// === Cache ===
	CacheCapacity int           // Max cached results for the in-memory backend (default: 1000)
	CacheTTL      time.Duration // Per-entry time-to-live (default: 60s)
	RedisAddr     string        // When set, use Redis as the cache backend instead of in-process LRU
	RedisPassword string
	RedisDB       int

	// === Input limits ===
	MaxTextLength int // Max characters per analyzed text (default: 5000)
	MaxBatchSize  int // Max texts per batch request (default: 50)
	BatchWorkers  int // Concurrent classifications during batch fan-out (default: 8)

	// === Rules ===
	RulesPath string // Optional YAML file overriding the built-in term sets and link lists

	// === Feature Flags ===
	EnableSemantic bool   // Enable scam-template similarity matching (requires Ollama)
	OllamaURL      string // Ollama base URL for embeddings (default: "http://localhost:11434")

	// === Server ===
	ListenAddr string // HTTP listen address (default: ":8080")
}

// NewDefaultConfig creates a Config with sensible defaults
// All settings can be overridden via environment variables
func NewDefaultConfig() *Config {
	cfg := &Config{
		ModelPath: GetEnv("SHIELD_MODEL_PATH", "models/phishing_model.json"),

		// Oracle - defaults to whichever provider has a key set, otherwise none
		OracleProvider: detectOracleProvider(),
		OracleAPIKey:   GetEnv("SHIELD_ORACLE_API_KEY", GetEnv("GROQ_API_KEY", os.Getenv("OPENROUTER_API_KEY"))),
		OracleModel:    GetEnv("SHIELD_ORACLE_MODEL", "gpt-4o-mini"),
		OracleBaseURL:  GetEnv("SHIELD_ORACLE_BASE_URL", ""),
		OracleTimeout:  GetEnvDuration("SHIELD_ORACLE_TIMEOUT", 8*time.Second),
		OracleMinScore: GetEnvFloat("SHIELD_ORACLE_MIN_SCORE", 0.30),

		LocalWeight:       GetEnvFloat("SHIELD_FUSION_LOCAL_WEIGHT", 0.65),
		DisagreementDelta: GetEnvFloat("SHIELD_FUSION_DELTA", 0.30),

		EvidenceCap:    GetEnvInt("SHIELD_EVIDENCE_CAP", 6),
		MinLineLength:  GetEnvInt("SHIELD_MIN_LINE_LENGTH", 20),
		MaxScoredLines: GetEnvInt("SHIELD_MAX_SCORED_LINES", 120),
		MaxLineHits:    GetEnvInt("SHIELD_MAX_LINE_HITS", 6),

		// Band boundaries - tune these based on your false positive tolerance
		Bands: SeverityBands{
			Medium:   GetEnvFloat("SHIELD_SEVERITY_MEDIUM", 0.35),
			High:     GetEnvFloat("SHIELD_SEVERITY_HIGH", 0.70),
			Critical: GetEnvFloat("SHIELD_SEVERITY_CRITICAL", 0.90),
		},

		CacheCapacity: GetEnvInt("SHIELD_CACHE_CAPACITY", 1000),
		CacheTTL:      GetEnvDuration("SHIELD_CACHE_TTL", 60*time.Second),
		RedisAddr:     GetEnv("SHIELD_REDIS_ADDR", ""),
		RedisPassword: GetEnv("SHIELD_REDIS_PASSWORD", ""),
		RedisDB:       GetEnvInt("SHIELD_REDIS_DB", 0),

		MaxTextLength: GetEnvInt("SHIELD_MAX_TEXT_LENGTH", 5000),
		MaxBatchSize:  GetEnvInt("SHIELD_MAX_BATCH_SIZE", 50),
		BatchWorkers:  clampInt(GetEnvInt("SHIELD_BATCH_WORKERS", 8), 1, 64),

		RulesPath: GetEnv("SHIELD_RULES_PATH", ""),

		EnableSemantic: GetEnvBool("SHIELD_ENABLE_SEMANTIC", false),
		OllamaURL:      GetEnv("SHIELD_OLLAMA_URL", "http://localhost:11434"),

		ListenAddr: GetEnv("SHIELD_LISTEN_ADDR", ":8080"),
	}

	return cfg
}

// NewHighSecurityConfig creates a Config for maximum catch rate (may have more false positives)
func NewHighSecurityConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.Bands.Medium = 0.25 // Lower boundaries = earlier escalation
	cfg.Bands.High = 0.55
	cfg.Bands.Critical = 0.80
	cfg.OracleMinScore = 0.20 // Consult the oracle sooner
	return cfg
}

// NewHighUsabilityConfig creates a Config that minimizes false positives
func NewHighUsabilityConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.Bands.Medium = 0.45
	cfg.Bands.High = 0.75
	cfg.Bands.Critical = 0.92
	return cfg
}

// NewLocalConfig creates a Config optimized for local-only operation (no API calls)
// Use this for development, air-gapped environments, or privacy-first deployments
func NewLocalConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.OracleProvider = ProviderNone
	cfg.OracleAPIKey = ""
	return cfg
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.LocalWeight < 0 || c.LocalWeight > 1 {
		return fmt.Errorf("SHIELD_FUSION_LOCAL_WEIGHT must be in [0,1], got %.2f", c.LocalWeight)
	}
	if c.DisagreementDelta < 0 || c.DisagreementDelta > 1 {
		return fmt.Errorf("SHIELD_FUSION_DELTA must be in [0,1], got %.2f", c.DisagreementDelta)
	}
	if !(c.Bands.Medium < c.Bands.High && c.Bands.High < c.Bands.Critical) {
		return fmt.Errorf("severity bands must be strictly increasing: %.2f/%.2f/%.2f",
			c.Bands.Medium, c.Bands.High, c.Bands.Critical)
	}
	if c.MaxTextLength <= 0 || c.MaxBatchSize <= 0 || c.CacheCapacity <= 0 {
		return fmt.Errorf("limits must be positive (text=%d batch=%d cache=%d)",
			c.MaxTextLength, c.MaxBatchSize, c.CacheCapacity)
	}
	needsKey := c.OracleProvider == ProviderOpenAI || c.OracleProvider == ProviderOpenRouter || c.OracleProvider == ProviderGroq
	if needsKey && c.OracleAPIKey == "" {
		return fmt.Errorf("oracle provider %q requires SHIELD_ORACLE_API_KEY", c.OracleProvider)
	}
	return nil
}

// MustValidate calls Validate and fatally exits if validation fails.
// Call this at startup before starting the server.
func (c *Config) MustValidate() {
	if err := c.Validate(); err != nil {
		log.Fatalf("[STARTUP] FATAL: Configuration validation failed: %v", err)
	}
	log.Println("[STARTUP] Configuration validated successfully")
}

func detectOracleProvider() OracleProvider {
	// Check explicit provider setting first
	if p := os.Getenv("SHIELD_ORACLE_PROVIDER"); p != "" {
		return OracleProvider(strings.ToLower(p))
	}
	// Auto-detect based on available keys
	if os.Getenv("GROQ_API_KEY") != "" {
		return ProviderGroq
	}
	if os.Getenv("OPENROUTER_API_KEY") != "" || os.Getenv("SHIELD_ORACLE_API_KEY") != "" {
		return ProviderOpenRouter
	}
	if os.Getenv("OPENAI_API_KEY") != "" {
		return ProviderOpenAI
	}
	// Local-only by default: scoring never depends on a network service
	return ProviderNone
}

// clampInt ensures a value is within bounds
func clampInt(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

// Helper functions for environment variable parsing
// These are exported for use by other packages (e.g., pkg/ml)

// GetEnv returns the value of an environment variable or a default value.
func GetEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// GetEnvBool returns the boolean value of an environment variable or a default value.
func GetEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

// GetEnvFloat returns the float64 value of an environment variable or a default value.
func GetEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return defaultValue
}

// GetEnvInt returns the integer value of an environment variable or a default value.
func GetEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return defaultValue
}

// GetEnvDuration returns the duration value of an environment variable or a default value.
// Accepts Go duration syntax ("8s", "2m") or a bare number of seconds.
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	log.Printf("[WARN] Invalid duration for %s: %q, using default %s", key, v, defaultValue)
	return defaultValue
}

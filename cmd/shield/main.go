package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/SurakshaAI/shield/pkg/api"
	"github.com/SurakshaAI/shield/pkg/cache"
	"github.com/SurakshaAI/shield/pkg/config"
	"github.com/SurakshaAI/shield/pkg/fusion"
	"github.com/SurakshaAI/shield/pkg/ml"
	"github.com/SurakshaAI/shield/pkg/oracle"
	"github.com/SurakshaAI/shield/pkg/rules"
)

const Version = "1.0.0"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServer()
	case "scan":
		if len(os.Args) < 3 {
			fmt.Println("Usage: shield scan <text>")
			os.Exit(1)
		}
		runCLIScan(strings.Join(os.Args[2:], " "))
	case "train":
		if len(os.Args) < 3 {
			fmt.Println("Usage: shield train <corpus.csv | postgres-dsn> [model-out]")
			os.Exit(1)
		}
		runTrain(os.Args[2])
	case "version":
		fmt.Printf("SurakshaAI Shield v%s\n", Version)
		fmt.Println("Phishing and scam risk scoring for multilingual messages")
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf("SurakshaAI Shield v%s - phishing/scam risk scoring\n\n", Version)
	fmt.Println("Usage:")
	fmt.Println("  shield serve                        Start the HTTP API server")
	fmt.Println("  shield scan <text>                  Score one message and print the verdict")
	fmt.Println("  shield train <corpus.csv | dsn>     Train a model from labeled samples")
	fmt.Println("  shield version                      Show version")
	fmt.Println("")
	fmt.Println("Examples:")
	fmt.Println("  shield serve")
	fmt.Println("  shield scan \"URGENT: share your OTP to unblock your account\"")
	fmt.Println("  shield train data/corpus.csv")
	fmt.Println("")
	fmt.Println("Environment Variables:")
	fmt.Println("  SHIELD_MODEL_PATH       Path to the trained model artifact")
	fmt.Println("  SHIELD_ORACLE_PROVIDER  AI second opinion: ollama, openrouter, groq, openai, none")
	fmt.Println("  SHIELD_ORACLE_API_KEY   API key for cloud oracle providers")
	fmt.Println("  SHIELD_REDIS_ADDR       Use Redis instead of the in-process cache")
	fmt.Println("  SHIELD_RULES_PATH       YAML file overriding the built-in rule terms")
	fmt.Println("  SHIELD_LISTEN_ADDR      HTTP listen address (default :8080)")
}

// buildPipeline assembles the scoring tiers. Every tier beyond the rule
// engine is optional and logged as enabled or disabled at startup.
func buildPipeline(cfg *config.Config) *fusion.Pipeline {
	model, err := ml.Load(cfg.ModelPath)
	if err != nil {
		log.Printf("○ Local model disabled (%v), rule engine carries the score", err)
		model = ml.NewModel()
	} else {
		log.Printf("✓ Local model loaded (%d features, threshold %.2f)", len(model.Vocab), model.Threshold)
	}
	classifier := ml.NewClassifier(model, ml.ClassifierOptions{
		MinLineLength:  cfg.MinLineLength,
		MaxScoredLines: cfg.MaxScoredLines,
		MaxLineHits:    cfg.MaxLineHits,
	})

	terms := rules.DefaultTerms()
	if cfg.RulesPath != "" {
		loaded, err := rules.LoadTerms(cfg.RulesPath)
		if err != nil {
			log.Printf("[WARN] Rules file %s not loaded, using defaults: %v", cfg.RulesPath, err)
		} else {
			terms = loaded
			log.Printf("✓ Rule terms loaded from %s", cfg.RulesPath)
		}
	}
	engine := rules.NewEngine(terms, cfg.Bands)

	var resultCache cache.Cache[fusion.RiskResult]
	if cfg.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		redisCache, err := cache.NewRedis[fusion.RiskResult](ctx, cache.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.CacheTTL,
		})
		cancel()
		if err != nil {
			log.Printf("○ Redis cache disabled (%v), falling back to in-process LRU", err)
		} else {
			resultCache = redisCache
			log.Printf("✓ Redis cache enabled (%s)", cfg.RedisAddr)
		}
	}
	if resultCache == nil {
		resultCache = cache.NewMemory[fusion.RiskResult](cfg.CacheCapacity, cfg.CacheTTL)
	}

	opts := fusion.Options{
		Classifier: classifier,
		Engine:     engine,
		Cache:      resultCache,
	}

	if cfg.OracleProvider != config.ProviderNone {
		opts.Oracle = oracle.New(cfg)
		log.Printf("✓ Oracle enabled (provider: %s, model: %s)", cfg.OracleProvider, cfg.OracleModel)
	} else {
		log.Println("○ Oracle disabled (local-only scoring)")
	}

	if cfg.EnableSemantic {
		matcher, err := ml.NewTemplateMatcher(cfg.OllamaURL)
		if err != nil {
			log.Printf("○ Semantic matching disabled (init failed: %v)", err)
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			if err := matcher.LoadTemplates(ctx); err != nil {
				log.Printf("○ Semantic matching disabled (template load failed: %v)", err)
			} else {
				opts.Matcher = matcher
				log.Printf("✓ Semantic matching enabled (%d templates)", matcher.TemplateCount())
			}
			cancel()
		}
	} else {
		log.Println("○ Semantic matching disabled (SHIELD_ENABLE_SEMANTIC not set)")
	}

	return fusion.New(cfg, opts)
}

func runServer() {
	cfg := config.NewDefaultConfig()
	cfg.MustValidate()

	pipeline := buildPipeline(cfg)
	app := api.NewApp(cfg, pipeline)

	log.Printf("[STARTUP] Shield HTTP server starting on %s", cfg.ListenAddr)
	log.Printf("Endpoints:")
	log.Printf("  POST /analyze        - Score one message")
	log.Printf("  POST /batch-analyze  - Score up to %d messages", cfg.MaxBatchSize)
	log.Printf("  GET  /stats          - Pipeline and cache counters")
	log.Printf("  GET  /health         - Health and tier readiness")

	if err := app.Listen(cfg.ListenAddr); err != nil {
		log.Fatal(err)
	}
}

func runCLIScan(text string) {
	cfg := config.NewDefaultConfig()
	cfg.MustValidate()

	pipeline := buildPipeline(cfg)
	result, err := pipeline.Classify(context.Background(), text)
	if err != nil {
		log.Fatalf("scan failed: %v", err)
	}

	output, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(output))
}

func runTrain(source string) {
	cfg := config.NewDefaultConfig()

	modelPath := cfg.ModelPath
	if len(os.Args) > 3 {
		modelPath = os.Args[3]
	}

	var samples []ml.Sample
	var err error
	if strings.HasPrefix(source, "postgres://") || strings.HasPrefix(source, "postgresql://") {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		store, serr := ml.NewCorpusStore(ctx, source)
		if serr != nil {
			log.Fatalf("connect to corpus database: %v", serr)
		}
		defer store.Close()
		samples, err = store.LoadSamples(ctx)
	} else {
		samples, err = ml.ReadCSV(source)
	}
	if err != nil {
		log.Fatalf("load corpus: %v", err)
	}

	samples = ml.Dedupe(samples)
	log.Printf("[INFO] Training on %d samples -> %s", len(samples), modelPath)

	start := time.Now()
	model, metrics, err := ml.TrainAndEvaluate(samples, modelPath, ml.TrainOptions{})
	if err != nil {
		log.Fatalf("training failed: %v", err)
	}

	fmt.Printf("Model saved to %s (%.1fs)\n", modelPath, time.Since(start).Seconds())
	fmt.Printf("  vocabulary: %d features\n", metrics.VocabularySize)
	fmt.Printf("  threshold:  %.2f (F1 %.3f, precision %.3f, recall %.3f)\n",
		model.Threshold, metrics.BestThreshold.F1, metrics.BestThreshold.Precision, metrics.BestThreshold.Recall)
	fmt.Printf("  holdout:    %d samples, confusion tp=%d fp=%d fn=%d tn=%d\n",
		metrics.HoldoutSamples, metrics.Confusion.TP, metrics.Confusion.FP, metrics.Confusion.FN, metrics.Confusion.TN)
}

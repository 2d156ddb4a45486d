package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/wardlight/wardlight/internal/domain/assessment"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	AuthSigningKey string `mapstructure:"AUTH_SIGNING_KEY"`

	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`

	// Model sidecar endpoints. Any of these may be empty; the matching
	// pipeline stage then degrades instead of failing startup.
	LLMURL       string        `mapstructure:"LLM_URL"`
	VisionURL    string        `mapstructure:"VISION_URL"`
	ASRURL       string        `mapstructure:"ASR_URL"`
	RetrieverURL string        `mapstructure:"RETRIEVER_URL"`
	ModelTimeout time.Duration `mapstructure:"MODEL_TIMEOUT"`

	// Assessment pipeline tuning.
	AssessTimeout         time.Duration `mapstructure:"ASSESS_TIMEOUT"`
	PrimaryBasisTieDelta  float64       `mapstructure:"PRIMARY_BASIS_TIE_DELTA"`
	RagTopK               int           `mapstructure:"RAG_TOP_K"`
	RagEvidenceItemChars  int           `mapstructure:"RAG_EVIDENCE_ITEM_CHARS"`
	RagEvidenceTotalChars int           `mapstructure:"RAG_EVIDENCE_TOTAL_CHARS"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("MODEL_TIMEOUT", "60s")
	v.SetDefault("ASSESS_TIMEOUT", "2m")
	v.SetDefault("PRIMARY_BASIS_TIE_DELTA", 0.05)
	v.SetDefault("RAG_TOP_K", 3)
	v.SetDefault("RAG_EVIDENCE_ITEM_CHARS", 500)
	v.SetDefault("RAG_EVIDENCE_TOTAL_CHARS", 2200)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("AUTH_SIGNING_KEY")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("LLM_URL")
	v.BindEnv("VISION_URL")
	v.BindEnv("ASR_URL")
	v.BindEnv("RETRIEVER_URL")
	v.BindEnv("MODEL_TIMEOUT")
	v.BindEnv("ASSESS_TIMEOUT")
	v.BindEnv("PRIMARY_BASIS_TIE_DELTA")
	v.BindEnv("RAG_TOP_K")
	v.BindEnv("RAG_EVIDENCE_ITEM_CHARS")
	v.BindEnv("RAG_EVIDENCE_TOTAL_CHARS")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: ============================================================")
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: DevAuthMiddleware is active — all requests get admin access.")
		log.Println("WARNING: Do NOT use this configuration in production.")
		log.Println("WARNING: Set ENV=production and configure AUTH_SIGNING_KEY.")
		log.Println("WARNING: ============================================================")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Outside development
// a signing key is mandatory so JWT authentication is actually enforced, and
// the pipeline tuning values must stay in range.
func (c *Config) Validate() error {
	if !c.IsDev() && c.AuthSigningKey == "" {
		return fmt.Errorf(
			"AUTH_SIGNING_KEY must be set when ENV is %q. "+
				"Refusing to start without authentication configuration", c.Env)
	}
	if c.AuthSigningKey != "" && len(c.AuthSigningKey) < 32 {
		return fmt.Errorf("AUTH_SIGNING_KEY must be at least 32 characters, got %d", len(c.AuthSigningKey))
	}

	if c.PrimaryBasisTieDelta < 0 || c.PrimaryBasisTieDelta > 0.5 {
		return fmt.Errorf("PRIMARY_BASIS_TIE_DELTA must be in [0, 0.5], got %g", c.PrimaryBasisTieDelta)
	}
	if c.RagTopK < 1 {
		return fmt.Errorf("RAG_TOP_K must be positive, got %d", c.RagTopK)
	}
	if c.RagEvidenceItemChars < assessment.MinEvidenceItemChars || c.RagEvidenceItemChars > assessment.MaxEvidenceItemChars {
		return fmt.Errorf("RAG_EVIDENCE_ITEM_CHARS must be in [%d, %d], got %d",
			assessment.MinEvidenceItemChars, assessment.MaxEvidenceItemChars, c.RagEvidenceItemChars)
	}
	if c.RagEvidenceTotalChars < assessment.MinEvidenceTotalChars || c.RagEvidenceTotalChars > assessment.MaxEvidenceTotalChars {
		return fmt.Errorf("RAG_EVIDENCE_TOTAL_CHARS must be in [%d, %d], got %d",
			assessment.MinEvidenceTotalChars, assessment.MaxEvidenceTotalChars, c.RagEvidenceTotalChars)
	}
	if c.RagEvidenceTotalChars < c.RagEvidenceItemChars {
		return fmt.Errorf("RAG evidence budgets invalid: item=%d total=%d", c.RagEvidenceItemChars, c.RagEvidenceTotalChars)
	}
	if c.AssessTimeout <= 0 {
		return fmt.Errorf("ASSESS_TIMEOUT must be positive, got %s", c.AssessTimeout)
	}
	return nil
}

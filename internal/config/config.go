// Package config defines the explicit configuration the pipeline is
// constructed with. Every threshold is a named field; nothing reads an
// environment variable at check time. Env overrides are applied once, at
// load, so two evaluations under one Config object always see the same
// values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full application configuration: the pipeline thresholds plus
// the collaborator settings (browser, store, audit, generator).
type Config struct {
	Pipeline  Pipeline  `yaml:"pipeline"`
	Browser   Browser   `yaml:"browser"`
	Store     Store     `yaml:"store"`
	Audit     Audit     `yaml:"audit"`
	Generator Generator `yaml:"generator"`
}

// Pipeline carries every gate threshold. It is handed to the orchestrator at
// construction; gates never consult globals.
type Pipeline struct {
	// BotHandle is the account the bot posts as, used by the self-reply
	// check. Case-insensitive.
	BotHandle        string    `yaml:"bot_handle"`
	MaxRegenAttempts int       `yaml:"max_regen_attempts"`
	Quality          Quality   `yaml:"quality"`
	Target           Target    `yaml:"target"`
	AntiSpam         AntiSpam  `yaml:"anti_spam"`
	Grounding        Grounding `yaml:"grounding"`
	Contract         Contract  `yaml:"contract"`
	Topic            Topic     `yaml:"topic"`
	Verify           Verify    `yaml:"verify"`
}

type Quality struct {
	LowSignalMinChars  int     `yaml:"low_signal_min_chars"`
	LowSignalMinTokens int     `yaml:"low_signal_min_tokens"`
	EmojiRatioMax      float64 `yaml:"emoji_ratio_max"`
	EmojiLineMax       int     `yaml:"emoji_line_max"`
}

type Target struct {
	MaxAgeMinutes    int `yaml:"max_age_minutes"`
	MinContextLength int `yaml:"min_context_length"`
}

type AntiSpam struct {
	HourlyReplyCap      int `yaml:"hourly_reply_cap"`
	AuthorCooldownHours int `yaml:"author_cooldown_hours"`
	RootCooldownHours   int `yaml:"root_cooldown_hours"`
}

type Grounding struct {
	MaxKeyphrases int `yaml:"max_keyphrases"`
}

type Contract struct {
	MaxLength      int `yaml:"max_length"`
	MaxLineBreaks  int `yaml:"max_line_breaks"`
	MaxParagraphs  int `yaml:"max_paragraphs"`
	MaxBulletLines int `yaml:"max_bullet_lines"`
}

type Topic struct {
	// HomeKeywords is the bot's own subject-matter vocabulary. The topic
	// guard and the quality filter's relevance sub-score both read it.
	HomeKeywords []string `yaml:"home_keywords"`
}

type Verify struct {
	// Enabled=false is the administrative escape hatch: the context lock
	// passes trivially. Hot-reloadable through the config watcher.
	Enabled                      bool    `yaml:"enabled"`
	SimilarityThreshold          float64 `yaml:"similarity_threshold"`
	PreflightSimilarityThreshold float64 `yaml:"preflight_similarity_threshold"`
}

type Browser struct {
	// DebuggerURL attaches to a running browser; empty launches one.
	DebuggerURL         string `yaml:"debugger_url"`
	Headless            bool   `yaml:"headless"`
	PoolSize            int    `yaml:"pool_size"`
	NavigationTimeoutMs int    `yaml:"navigation_timeout_ms"`
	// PostURLTemplate turns a target id into a page URL. %s is the id.
	PostURLTemplate string `yaml:"post_url_template"`
}

// NavigationTimeout returns the per-navigation deadline, with a sane
// floor when the config left it zero.
func (b Browser) NavigationTimeout() time.Duration {
	if b.NavigationTimeoutMs <= 0 {
		return 20 * time.Second
	}
	return time.Duration(b.NavigationTimeoutMs) * time.Millisecond
}

type Store struct {
	Path string `yaml:"path"`
}

type Audit struct {
	// Path of the JSONL audit file. Empty logs through zap only.
	Path string `yaml:"path"`
}

type Generator struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
	// Persona is prepended to every drafting prompt. It describes the
	// account's voice, not its rules; the rules are fixed.
	Persona string `yaml:"persona"`
}

// DefaultConfig returns the shipped defaults: a 260-char single-post
// contract, 180-minute target freshness, 12h/24h author/root cooldowns, and
// verification enabled at the 0.45 similarity tier.
func DefaultConfig() *Config {
	return &Config{
		Pipeline: Pipeline{
			BotHandle:        "supplement_sage",
			MaxRegenAttempts: 1,
			Quality: Quality{
				LowSignalMinChars:  40,
				LowSignalMinTokens: 3,
				EmojiRatioMax:      0.35,
				EmojiLineMax:       2,
			},
			Target: Target{
				MaxAgeMinutes:    180,
				MinContextLength: 30,
			},
			AntiSpam: AntiSpam{
				HourlyReplyCap:      4,
				AuthorCooldownHours: 12,
				RootCooldownHours:   24,
			},
			Grounding: Grounding{
				MaxKeyphrases: 15,
			},
			Contract: Contract{
				MaxLength:      260,
				MaxLineBreaks:  2,
				MaxParagraphs:  2,
				MaxBulletLines: 2,
			},
			Topic: Topic{
				HomeKeywords: []string{
					"supplement", "supplements", "creatine", "magnesium",
					"protein", "vitamin", "vitamins", "zinc", "omega",
					"electrolyte", "electrolytes", "dose", "dosage", "mg",
					"bioavailability", "absorption", "deficiency", "muscle",
					"strength", "recovery", "sleep", "workout", "training",
					"fasting", "gut", "metabolism", "nutrition", "diet",
					"study", "trial", "placebo",
				},
			},
			Verify: Verify{
				Enabled:                      true,
				SimilarityThreshold:          0.45,
				PreflightSimilarityThreshold: 0.35,
			},
		},
		Browser: Browser{
			Headless:            true,
			PoolSize:            3,
			NavigationTimeoutMs: 20000,
			PostURLTemplate:     "https://x.com/i/web/status/%s",
		},
		Store: Store{
			Path: filepath.Join(".replygate", "replies.db"),
		},
		Audit: Audit{
			Path: filepath.Join(".replygate", "audit.jsonl"),
		},
		Generator: Generator{
			Model: "gemini-2.5-flash",
			Persona: "an evidence-minded supplements and nutrition account; " +
				"direct, specific, a little wry; cites doses and mechanisms " +
				"when the literature supports them and says so when it is thin",
		},
	}
}

// Load reads path over the defaults, then applies env overrides. A missing
// file is not an error; the defaults plus environment are a complete
// configuration.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// defaults only
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config as YAML, creating parent directories.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("REPLYGATE_BOT_HANDLE"); v != "" {
		c.Pipeline.BotHandle = v
	}
	if v := os.Getenv("REPLYGATE_STORE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("REPLYGATE_AUDIT_PATH"); v != "" {
		c.Audit.Path = v
	}
	if v := os.Getenv("REPLYGATE_VERIFY_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Pipeline.Verify.Enabled = b
		}
	}
	if v := os.Getenv("REPLYGATE_BROWSER_URL"); v != "" {
		c.Browser.DebuggerURL = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.Generator.APIKey = v
	}
}

// Validate rejects configurations the gates cannot run under.
func (c *Config) Validate() error {
	p := &c.Pipeline
	if p.BotHandle == "" {
		return fmt.Errorf("pipeline.bot_handle must be set")
	}
	if p.Contract.MaxLength <= 0 {
		return fmt.Errorf("pipeline.contract.max_length must be positive, got %d", p.Contract.MaxLength)
	}
	if p.Target.MaxAgeMinutes <= 0 {
		return fmt.Errorf("pipeline.target.max_age_minutes must be positive, got %d", p.Target.MaxAgeMinutes)
	}
	if t := p.Verify.SimilarityThreshold; t <= 0 || t > 1 {
		return fmt.Errorf("pipeline.verify.similarity_threshold must be in (0,1], got %v", t)
	}
	if t := p.Verify.PreflightSimilarityThreshold; t <= 0 || t > 1 {
		return fmt.Errorf("pipeline.verify.preflight_similarity_threshold must be in (0,1], got %v", t)
	}
	if p.Verify.PreflightSimilarityThreshold > p.Verify.SimilarityThreshold {
		return fmt.Errorf("preflight similarity threshold %v exceeds the standard threshold %v",
			p.Verify.PreflightSimilarityThreshold, p.Verify.SimilarityThreshold)
	}
	if p.AntiSpam.HourlyReplyCap < 0 {
		return fmt.Errorf("pipeline.anti_spam.hourly_reply_cap cannot be negative")
	}
	if p.MaxRegenAttempts < 0 {
		return fmt.Errorf("pipeline.max_regen_attempts cannot be negative")
	}
	if c.Browser.PoolSize <= 0 {
		return fmt.Errorf("browser.pool_size must be positive, got %d", c.Browser.PoolSize)
	}
	return nil
}

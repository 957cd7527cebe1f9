// Package config defines the single explicit Config value threaded through
// every component constructor. Grounded on the teacher's internal/config
// package: a plain struct parsed from YAML via gopkg.in/yaml.v3, with a
// DefaultConfig() constructor and no runtime mutation after load (the
// teacher's own "replace global singleton with explicit Config" redesign,
// per spec.md section 9).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// MatchStrategy controls how MemoryStore.wasAttempted compares a
// Recommendation against past AttemptRecords (spec.md section 9, Open
// Question: left as an explicit config choice rather than guessed).
type MatchStrategy string

const (
	MatchByID           MatchStrategy = "id"
	MatchByFuzzyContent MatchStrategy = "fuzzy-content"
)

// ApprovalPolicy controls when ApprovalGate requires human sign-off.
type ApprovalPolicy string

const (
	ApprovalAlways         ApprovalPolicy = "always"
	ApprovalFirstIteration ApprovalPolicy = "first-iteration"
	ApprovalHighRisk       ApprovalPolicy = "high-risk"
	ApprovalNever          ApprovalPolicy = "never"
)

// ScreenshotConfig controls CaptureAdapter.capture parameters.
type ScreenshotConfig struct {
	Width    int    `yaml:"width"`
	Height   int    `yaml:"height"`
	FullPage bool   `yaml:"full_page"`
	Selector string `yaml:"selector,omitempty"`
}

// ScoringWeights must sum to 1; Vision + Metrics.
type ScoringWeights struct {
	Vision  float64 `yaml:"vision"`
	Metrics float64 `yaml:"metrics"`
}

// MetricsWeights is the split of metrics weight across the three
// sub-dimensions (spec.md section 9: fixed at 0.4/0.4/0.2 by default but
// exposed as overrides).
type MetricsWeights struct {
	Performance   float64 `yaml:"performance"`
	Accessibility float64 `yaml:"accessibility"`
	BestPractices float64 `yaml:"best_practices"`
}

// EffortLimits caps line-delta growth by Recommendation effort band.
type EffortLimits struct {
	Low    int `yaml:"low"`    // effort 1-2
	Medium int `yaml:"medium"` // effort 3-4
	High   int `yaml:"high"`   // effort >=5
}

// Constraints bounds what ChangeValidator will accept.
type Constraints struct {
	MaxLineDelta     int          `yaml:"max_line_delta"`
	MaxGrowthPercent float64      `yaml:"max_growth_percent"`
	PreserveExports  bool         `yaml:"preserve_exports"`
	PreserveImports  bool         `yaml:"preserve_imports"`
	EffortLimits     EffortLimits `yaml:"effort_limits"`
}

// DesignSystem is the project's class allow/deny list.
type DesignSystem struct {
	Allow []string `yaml:"allow"`
	Deny  []string `yaml:"deny"`
}

// ApprovalConfig configures ApprovalGate.
type ApprovalConfig struct {
	Policy            ApprovalPolicy `yaml:"policy"`
	CostThresholdCents int           `yaml:"cost_threshold_cents"`
	RiskThreshold      float64       `yaml:"risk_threshold"`
	TimeoutSeconds     int           `yaml:"timeout_seconds"`
}

// PlateauConfig controls IterationController's plateau terminal state.
type PlateauConfig struct {
	WindowIterations int     `yaml:"window_iterations"`
	Epsilon          float64 `yaml:"epsilon"`
}

// LLMConfig configures model provider adapters.
type LLMConfig struct {
	Provider           string        `yaml:"provider"`
	VisionModel        string        `yaml:"vision_model"`
	ImplementationModel string       `yaml:"implementation_model"`
	ReflectionModel    string        `yaml:"reflection_model"`
	APIKeyEnv          string        `yaml:"api_key_env"`
	VisionTimeout      time.Duration `yaml:"vision_timeout"`
	DiscoveryTimeout   time.Duration `yaml:"discovery_timeout"`
	ReflectionTimeoutTokens int      `yaml:"reflection_timeout_tokens"`
}

// BuildConfig configures the BuildAdapter.
type BuildConfig struct {
	Command        []string      `yaml:"command"`
	Timeout        time.Duration `yaml:"timeout"`
	AllowedEnvVars []string      `yaml:"allowed_env_vars"`
}

// ConcurrencyConfig bounds Orchestrator specialist dispatch.
type ConcurrencyConfig struct {
	SpecialistCap int `yaml:"specialist_cap"` // 0 = number of registered specialists
}

// MemoryConfig resolves the Open Questions around matching and fallback radius.
type MemoryConfig struct {
	MatchStrategy     MatchStrategy `yaml:"match_strategy"`
	LineFallbackRadius int          `yaml:"line_fallback_radius"`
	ROIThreshold       float64      `yaml:"roi_threshold"`
}

// CaptureConfig bounds CaptureAdapter's post-rollback retry behaviour.
type CaptureConfig struct {
	Timeout          time.Duration `yaml:"timeout"`
	RetryAttempts    int           `yaml:"retry_attempts"`
	RetryBaseDelay   time.Duration `yaml:"retry_base_delay"`
}

// FileDiscoveryConfig bounds the candidate file scan (spec.md section 4.8).
type FileDiscoveryConfig struct {
	Extensions  []string `yaml:"extensions"`
	MaxFileSize int      `yaml:"max_file_size_bytes"`
	ExcludeDirs []string `yaml:"exclude_dirs"`
}

// Config is the fully enumerated option set from spec.md section 6.
type Config struct {
	ProjectPath  string           `yaml:"project_path"`
	FrontendURL  string           `yaml:"frontend_url"`
	TargetScore  float64          `yaml:"target_score"`
	MaxIterations int             `yaml:"max_iterations"`
	OutputDir    string           `yaml:"output_dir"`

	Screenshot     ScreenshotConfig     `yaml:"screenshot"`
	ScoringWeights ScoringWeights       `yaml:"scoring_weights"`
	MetricsWeights MetricsWeights       `yaml:"metrics_weights"`
	Constraints    Constraints          `yaml:"constraints"`
	DesignSystem   DesignSystem         `yaml:"design_system"`
	Approval       ApprovalConfig       `yaml:"approval"`
	Plateau        PlateauConfig        `yaml:"plateau"`
	LLM            LLMConfig            `yaml:"llm"`
	Build          BuildConfig          `yaml:"build"`
	Concurrency    ConcurrencyConfig    `yaml:"concurrency"`
	Memory         MemoryConfig         `yaml:"memory"`
	Capture        CaptureConfig        `yaml:"capture"`
	FileDiscovery  FileDiscoveryConfig  `yaml:"file_discovery"`
	Logging        LoggingConfig        `yaml:"logging"`
}

// LoggingConfig mirrors logging.Config but lives here so YAML decodes it
// without an import cycle; cmd/viztrtr's run command copies it into
// logging.Config.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"`
	JSONFormat bool            `yaml:"json_format"`
}

// DefaultConfig returns sensible defaults matching spec.md section 6.
func DefaultConfig() *Config {
	return &Config{
		TargetScore:   8.5,
		MaxIterations: 5,
		OutputDir:     ".viztrtr",
		Screenshot: ScreenshotConfig{
			Width: 1440, Height: 900, FullPage: false,
		},
		ScoringWeights: ScoringWeights{Vision: 0.6, Metrics: 0.4},
		MetricsWeights: MetricsWeights{Performance: 0.4, Accessibility: 0.4, BestPractices: 0.2},
		Constraints: Constraints{
			MaxLineDelta:     100,
			MaxGrowthPercent: 0, // 0 => use size-scaled cap table
			PreserveExports:  true,
			PreserveImports:  true,
			EffortLimits:     EffortLimits{Low: 10, Medium: 25, High: 50},
		},
		Approval: ApprovalConfig{
			Policy:             ApprovalHighRisk,
			CostThresholdCents: 50,
			RiskThreshold:      25, // avg impact*effort
			TimeoutSeconds:     120,
		},
		Plateau: PlateauConfig{WindowIterations: 3, Epsilon: 0.1},
		LLM: LLMConfig{
			Provider:            "gemini",
			VisionModel:         "gemini-2.5-pro",
			ImplementationModel: "gemini-2.5-flash",
			ReflectionModel:     "gemini-2.5-flash",
			APIKeyEnv:           "GEMINI_API_KEY",
			VisionTimeout:       120 * time.Second,
			DiscoveryTimeout:    120 * time.Second,
			ReflectionTimeoutTokens: 4096,
		},
		Build: BuildConfig{
			Command:        []string{"npm", "run", "build"},
			Timeout:        300 * time.Second,
			AllowedEnvVars: []string{"PATH", "HOME", "NODE_ENV"},
		},
		Concurrency: ConcurrencyConfig{SpecialistCap: 0},
		Memory: MemoryConfig{
			MatchStrategy:      MatchByFuzzyContent,
			LineFallbackRadius: 5,
			ROIThreshold:       1.5,
		},
		Capture: CaptureConfig{
			Timeout:        30 * time.Second,
			RetryAttempts:  3,
			RetryBaseDelay: 500 * time.Millisecond,
		},
		FileDiscovery: FileDiscoveryConfig{
			Extensions:  []string{".tsx", ".jsx", ".ts", ".js", ".vue", ".svelte", ".css"},
			MaxFileSize: 50 * 1024,
			ExcludeDirs: []string{"node_modules", ".git", "dist", "build", ".next", "vendor", ".viztrtr"},
		},
		Logging: LoggingConfig{
			DebugMode: true,
			Level:     "info",
		},
	}
}

// Load reads and parses a YAML config file, applying DefaultConfig() as the
// base so partial files are valid input.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides defaults the name of the environment variable that holds
// the API key; the key itself is read from the environment by APIKey and is
// never stored in Config, matching the teacher's convention of never
// persisting API keys to disk.
func (c *Config) applyEnvOverrides() error {
	if c.LLM.APIKeyEnv == "" {
		c.LLM.APIKeyEnv = "GEMINI_API_KEY"
	}
	return nil
}

// APIKey resolves the configured LLM API key from the environment.
func (c *Config) APIKey() string {
	return os.Getenv(c.LLM.APIKeyEnv)
}

// Validate checks every recognized key for basic sanity, matching the
// "ConfigError — fatal pre-flight" contract in spec.md section 7.
func (c *Config) Validate() error {
	var problems []string
	if c.ProjectPath == "" {
		problems = append(problems, "project_path is required")
	} else if _, err := os.Stat(c.ProjectPath); err != nil {
		problems = append(problems, fmt.Sprintf("project_path %q is not accessible: %v", c.ProjectPath, err))
	}
	if c.FrontendURL == "" {
		problems = append(problems, "frontend_url is required")
	}
	if c.TargetScore <= 0 || c.TargetScore > 10 {
		problems = append(problems, "target_score must be in (0, 10]")
	}
	if c.MaxIterations <= 0 {
		problems = append(problems, "max_iterations must be positive")
	}
	if w := c.ScoringWeights.Vision + c.ScoringWeights.Metrics; w < 0.999 || w > 1.001 {
		problems = append(problems, fmt.Sprintf("scoring_weights must sum to 1, got %.3f", w))
	}
	if mw := c.MetricsWeights.Performance + c.MetricsWeights.Accessibility + c.MetricsWeights.BestPractices; mw < 0.999 || mw > 1.001 {
		problems = append(problems, fmt.Sprintf("metrics_weights must sum to 1, got %.3f", mw))
	}
	switch c.Approval.Policy {
	case ApprovalAlways, ApprovalFirstIteration, ApprovalHighRisk, ApprovalNever:
	default:
		problems = append(problems, fmt.Sprintf("approval.policy %q is not recognized", c.Approval.Policy))
	}
	switch c.Memory.MatchStrategy {
	case MatchByID, MatchByFuzzyContent:
	default:
		problems = append(problems, fmt.Sprintf("memory.match_strategy %q is not recognized", c.Memory.MatchStrategy))
	}
	if c.OutputDir == "" {
		problems = append(problems, "output_dir is required")
	}
	if len(c.Build.Command) == 0 {
		problems = append(problems, "build.command must name at least one argument")
	}
	if len(problems) > 0 {
		return fmt.Errorf("config: %d problem(s): %v", len(problems), problems)
	}
	return nil
}

// AbsOutputDir resolves OutputDir relative to ProjectPath when relative.
func (c *Config) AbsOutputDir() string {
	if filepath.IsAbs(c.OutputDir) {
		return c.OutputDir
	}
	return filepath.Join(c.ProjectPath, c.OutputDir)
}

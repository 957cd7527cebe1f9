package types

import "time"

// Screenshot is a captured frame handle.
type Screenshot struct {
	Data    []byte    `json:"-"`
	Path    string    `json:"path"`
	Width   int       `json:"width"`
	Height  int       `json:"height"`
	TakenAt time.Time `json:"taken_at"`
}

// Issue is a vision-adapter-detected problem, independent of any
// Recommendation (some issues are informational only).
type Issue struct {
	Dimension   Dimension `json:"dimension"`
	Description string    `json:"description"`
	Severity    string    `json:"severity"` // low, medium, high
}

// DesignSpec is the vision adapter's output for one screenshot.
type DesignSpec struct {
	CurrentScore    float64          `json:"current_score"`
	Issues          []Issue          `json:"issues"`
	Recommendations []Recommendation `json:"recommendations"`
	ProjectContext  map[string]string `json:"project_context,omitempty"`
}

// CoreWebVitals are the raw browser performance measurements.
type CoreWebVitals struct {
	LCPMs float64 `json:"lcp_ms"`
	CLS   float64 `json:"cls"`
	TTFBMs float64 `json:"ttfb_ms"`
	INPMs  float64 `json:"inp_ms,omitempty"`
}

// AccessibilitySnapshot groups accessibility findings by severity.
type AccessibilitySnapshot struct {
	Violations     []string `json:"violations"`
	Warnings       []string `json:"warnings"`
	ContrastIssues []string `json:"contrast_issues"`
}

// ConsoleSnapshot groups browser console output.
type ConsoleSnapshot struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// NetworkSnapshot groups coarse network activity counters.
type NetworkSnapshot struct {
	RequestCount int `json:"request_count"`
	TotalBytes   int `json:"total_bytes"`
}

// MetricsSnapshot is the MetricsAdapter's full output for one capture.
type MetricsSnapshot struct {
	CoreWebVitals CoreWebVitals         `json:"core_web_vitals"`
	Accessibility AccessibilitySnapshot `json:"accessibility"`
	Console       ConsoleSnapshot       `json:"console"`
	Network       NetworkSnapshot       `json:"network"`
}

// VerificationReport is VerificationAgent's (C9) structured result.
type VerificationReport struct {
	Success           bool   `json:"success"`
	BuildSuccess      bool   `json:"build_success"`
	Stderr            string `json:"stderr,omitempty"`
	DurationMs        int64  `json:"duration_ms"`
	HTTPStatus        int    `json:"http_status,omitempty"`
	ConsoleErrorCount int    `json:"console_error_count,omitempty"`
	RolledBack        bool   `json:"rolled_back"`
	Reason            string `json:"reason,omitempty"`
}

// ScoreBreakdown is the metrics sub-score decomposition.
type ScoreBreakdown struct {
	Performance   float64 `json:"performance"`
	Accessibility float64 `json:"accessibility"`
	BestPractices float64 `json:"best_practices"`
}

// HybridScore fuses vision and measured-metrics scoring.
type HybridScore struct {
	CompositeScore float64        `json:"composite_score"`
	VisionScore    float64        `json:"vision_score"`
	MetricsScore   float64        `json:"metrics_score"`
	Confidence     float64        `json:"confidence"`
	Breakdown      ScoreBreakdown `json:"breakdown"`
	Insights       []string       `json:"insights,omitempty"`
	NextRecommendations []Recommendation `json:"next_recommendations,omitempty"`
}

// IterationResult is the full record of one iteration.
type IterationResult struct {
	Iteration         int                           `json:"iteration"`
	StartedAt         time.Time                     `json:"started_at"`
	EndedAt           time.Time                     `json:"ended_at"`
	BeforeScreenshot  Screenshot                    `json:"before_screenshot"`
	AfterScreenshot   *Screenshot                   `json:"after_screenshot,omitempty"`
	DesignSpec        DesignSpec                    `json:"design_spec"`
	Changes           []FileChange                  `json:"changes"`
	Outcomes          []ExecutionOutcome            `json:"outcomes,omitempty"`
	Validations       map[string]ValidationResult   `json:"validations"` // keyed by recommendation id
	Score             *HybridScore                  `json:"score,omitempty"`
	Reflection        string                        `json:"reflection,omitempty"`
	NextActionHint    string                        `json:"next_action_hint,omitempty"`
	Outcome           string                        `json:"outcome"`
}

package core

import (
	"strings"
	"time"
)

// Diff holds a unified diff for a single pipeline run. OriginalSize records
// the byte length before any truncation by the prompt builder.
type Diff struct {
	Content      string
	Truncated    bool
	OriginalSize int
}

// Empty reports whether the diff contains no changes. An empty diff means
// "skip review", not a failure.
func (d *Diff) Empty() bool {
	return d == nil || strings.TrimSpace(d.Content) == ""
}

// Severity classifies a finding. The zero value is not valid; unrecognized
// values from the model are coerced via ParseSeverity.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// Severities lists all valid severities from most to least severe, in the
// order the summary table reports them.
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

// ParseSeverity maps a free-form severity string from the model onto the
// four-value enum. Unrecognized values coerce to MEDIUM; the second return
// value reports whether the input was recognized so callers can log it.
func ParseSeverity(s string) (Severity, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CRITICAL":
		return SeverityCritical, true
	case "HIGH", "MAJOR":
		return SeverityHigh, true
	case "MEDIUM", "MINOR":
		return SeverityMedium, true
	case "LOW", "INFO":
		return SeverityLow, true
	default:
		return SeverityMedium, false
	}
}

// Rank orders severities for comparisons; lower is more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	default:
		return 3
	}
}

// Finding is one reviewer-identified issue. Line is zero when the model did
// not attach the finding to a specific line; such findings are only reported
// in the summary, never inline.
type Finding struct {
	File       string   `json:"file"`
	Line       int      `json:"line"`
	Severity   Severity `json:"severity"`
	Message    string   `json:"message"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// PublishResult reports how many findings were posted as comments and how
// many were skipped (duplicates, invalid lines, or individual API failures).
type PublishResult struct {
	PostedCount  int
	SkippedCount int
}

// ReviewRecord is the persisted outcome of one completed review run.
type ReviewRecord struct {
	ID           int64     `db:"id"`
	RepoFullName string    `db:"repo_full_name"`
	Target       string    `db:"target"`
	FindingCount int       `db:"finding_count"`
	PostedCount  int       `db:"posted_count"`
	Degraded     bool      `db:"degraded"`
	CreatedAt    time.Time `db:"created_at"`
}

// RepoConfig holds per-repository review overrides loaded from the optional
// .jules-warden.yml file in the target repository.
type RepoConfig struct {
	// MinSeverity is the least severe finding that is still posted as an
	// inline comment. Less severe findings only appear in the summary.
	MinSeverity Severity `yaml:"min_severity"`
	// SkipPaths lists path prefixes whose findings are dropped entirely.
	SkipPaths []string `yaml:"skip_paths"`
}

// DefaultRepoConfig returns the settings used when a repository carries no
// .jules-warden.yml file.
func DefaultRepoConfig() *RepoConfig {
	return &RepoConfig{MinSeverity: SeverityLow}
}

// ShouldSkip reports whether findings in the given file path are suppressed
// by this configuration.
func (c *RepoConfig) ShouldSkip(path string) bool {
	for _, prefix := range c.SkipPaths {
		if strings.HasPrefix(path, strings.TrimSuffix(prefix, "/")+"/") || path == prefix {
			return true
		}
	}
	return false
}

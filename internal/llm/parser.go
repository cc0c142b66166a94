package llm

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"

	"github.com/sevigo/jules-warden/internal/core"
)

var trailingCommaRegex = regexp.MustCompile(`,\s*([}\]])`)

// ParseFindings extracts a findings array from free-form model output. The
// text is treated as untrusted, semi-structured data: code fences and
// surrounding prose are tolerated, the first balanced bracket structure is
// located by scanning, trailing commas are cleaned up, and each array entry
// is validated independently so one malformed entry never drops the batch.
// Any failure yields zero findings plus a logged diagnostic.
func ParseFindings(text string, logger *slog.Logger) []core.Finding {
	raw := extractFindingsBlock(stripFence(text))
	if raw == "" {
		logger.Warn("no structured findings block found in model output", "length", len(text))
		return nil
	}
	raw = trailingCommaRegex.ReplaceAllString(raw, "$1")

	var entries []json.RawMessage
	if strings.HasPrefix(raw, "{") {
		var wrapper struct {
			Findings []json.RawMessage `json:"findings"`
		}
		if err := json.Unmarshal([]byte(raw), &wrapper); err != nil {
			logger.Warn("failed to decode findings object", "error", err)
			return nil
		}
		entries = wrapper.Findings
	} else {
		if err := json.Unmarshal([]byte(raw), &entries); err != nil {
			logger.Warn("failed to decode findings array", "error", err)
			return nil
		}
	}

	return decodeFindingEntries(entries, logger)
}

// rawFinding tolerates the key variants models produce. A null line decodes
// as zero, which downstream treats as "no specific line".
type rawFinding struct {
	File       string `json:"file"`
	Path       string `json:"path"`
	Line       int    `json:"line"`
	Severity   string `json:"severity"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion"`
}

// decodeFindingEntries validates each entry independently: malformed entries
// are dropped with a warning, unknown severities are coerced to MEDIUM with a
// warning, and negative line numbers are cleared.
func decodeFindingEntries(entries []json.RawMessage, logger *slog.Logger) []core.Finding {
	findings := make([]core.Finding, 0, len(entries))
	for i, entry := range entries {
		var rf rawFinding
		if err := json.Unmarshal(entry, &rf); err != nil {
			logger.Warn("dropping malformed finding entry", "index", i, "error", err)
			continue
		}

		file := rf.File
		if file == "" {
			file = rf.Path
		}
		if file == "" || rf.Message == "" {
			logger.Warn("dropping finding without file or message", "index", i)
			continue
		}

		severity, known := core.ParseSeverity(rf.Severity)
		if !known {
			logger.Warn("unrecognized severity, coercing to MEDIUM",
				"index", i, "severity", rf.Severity, "file", file)
		}

		line := rf.Line
		if line < 0 {
			line = 0
		}

		findings = append(findings, core.Finding{
			File:       file,
			Line:       line,
			Severity:   severity,
			Message:    strings.TrimSpace(rf.Message),
			Suggestion: strings.TrimSpace(rf.Suggestion),
		})
	}
	return findings
}

// extractFindingsBlock locates the JSON block holding the findings. When the
// text mentions a "findings" key, the array following it wins; otherwise the
// first balanced bracket structure in the text is used.
func extractFindingsBlock(text string) string {
	if idx := strings.Index(text, `"findings"`); idx >= 0 {
		rest := text[idx:]
		if arrStart := strings.Index(rest, "["); arrStart >= 0 {
			if block := balancedFrom(rest[arrStart:]); block != "" {
				return block
			}
		}
	}

	start := strings.IndexAny(text, "[{")
	if start < 0 {
		return ""
	}
	return balancedFrom(text[start:])
}

// balancedFrom returns the balanced bracket structure starting at the first
// byte of s, respecting JSON string literals and escapes. Returns "" when the
// structure never closes.
func balancedFrom(s string) string {
	if s == "" {
		return ""
	}
	open := s[0]
	var closer byte
	switch open {
	case '[':
		closer = ']'
	case '{':
		closer = '}'
	default:
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case open:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return ""
}

// stripFence removes a wrapping ``` code fence that some models add.
func stripFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return s
	}
	idx := strings.Index(trimmed, "\n")
	if idx < 0 {
		return s
	}
	inner := trimmed[idx+1:]
	if lastFence := strings.LastIndex(inner, "```"); lastFence >= 0 {
		inner = inner[:lastFence]
	}
	return strings.TrimSpace(inner)
}

package github

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

var (
	hunkHeaderRegex = regexp.MustCompile(`^@@ -\d+(?:,\d+)? \+(\d+)(?:,\d+)? @@`)
	newFileRegex    = regexp.MustCompile(`^\+\+\+ (?:b/)?(.+)$`)
)

// ParseCommentableLines walks a multi-file unified diff and returns, per file,
// the set of new-side line numbers GitHub accepts an inline comment on.
// Findings pointing at lines outside these sets must be folded into the
// summary, because the review-comment API rejects lines absent from the diff.
func ParseCommentableLines(diff string, logger *slog.Logger) map[string]map[int]struct{} {
	files := make(map[string]map[int]struct{})

	var currentFile string
	currentLine := -1

	for _, line := range strings.Split(diff, "\n") {
		if matches := newFileRegex.FindStringSubmatch(line); matches != nil {
			name := strings.TrimSpace(matches[1])
			if name == "/dev/null" {
				currentFile = ""
			} else {
				currentFile = name
				if files[currentFile] == nil {
					files[currentFile] = make(map[int]struct{})
				}
			}
			currentLine = -1
			continue
		}

		if strings.HasPrefix(line, "@@") {
			matches := hunkHeaderRegex.FindStringSubmatch(line)
			if len(matches) < 2 {
				if logger != nil {
					logger.Warn("skipped malformed hunk header", "line", line)
				}
				currentLine = -1
				continue
			}
			start, err := strconv.Atoi(matches[1])
			if err != nil {
				currentLine = -1
				continue
			}
			currentLine = start
			continue
		}

		if currentFile == "" || currentLine == -1 {
			continue
		}

		// In a unified diff, '+' and ' ' lines exist on the new side and are
		// commentable; '-' lines only exist on the old side.
		switch {
		case strings.HasPrefix(line, "+"), strings.HasPrefix(line, " "):
			files[currentFile][currentLine] = struct{}{}
			currentLine++
		case strings.HasPrefix(line, "-"):
			continue
		}
	}

	return files
}

package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		input     string
		want      Severity
		wantKnown bool
	}{
		{"CRITICAL", SeverityCritical, true},
		{"critical", SeverityCritical, true},
		{" High ", SeverityHigh, true},
		{"major", SeverityHigh, true},
		{"minor", SeverityMedium, true},
		{"info", SeverityLow, true},
		{"LOW", SeverityLow, true},
		{"WHOOPS", SeverityMedium, false},
		{"", SeverityMedium, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, known := ParseSeverity(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantKnown, known)
		})
	}
}

func TestRepoConfigShouldSkip(t *testing.T) {
	cfg := &RepoConfig{SkipPaths: []string{"vendor", "docs/generated"}}

	assert.True(t, cfg.ShouldSkip("vendor/lib/a.go"))
	assert.True(t, cfg.ShouldSkip("vendor"))
	assert.True(t, cfg.ShouldSkip("docs/generated/api.md"))
	assert.False(t, cfg.ShouldSkip("vendored/file.go"))
	assert.False(t, cfg.ShouldSkip("internal/vendor.go"))
}

func TestDiffEmpty(t *testing.T) {
	assert.True(t, (&Diff{}).Empty())
	assert.True(t, (&Diff{Content: "  \n"}).Empty())
	assert.False(t, (&Diff{Content: "diff --git a/a b/a"}).Empty())

	var nilDiff *Diff
	assert.True(t, nilDiff.Empty())
}

package extract

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/arxiv-query-service/internal/domain"
)

func TestParseFile_MissingFile(t *testing.T) {
	_, err := ParseFile(filepath.Join(t.TempDir(), "nope.pdf"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFileSystem)
}

func TestTextFromContentStream(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "single Tj operation",
			content: "BT\n(Hello World) Tj\nET",
			want:    "Hello World",
		},
		{
			name:    "TJ array operation",
			content: "[(Hel)-20(lo)] TJ",
			want:    "Hel lo",
		},
		{
			name:    "non-text operations ignored",
			content: "1 0 0 1 72 720 cm\n/F1 12 Tf\n(visible) Tj",
			want:    "visible",
		},
		{
			name:    "empty stream",
			content: "",
			want:    "",
		},
		{
			name:    "graphics only",
			content: "0 0 612 792 re\nf",
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, textFromContentStream(tt.content))
		})
	}
}

func TestParenLiterals(t *testing.T) {
	tests := []struct {
		name      string
		operation string
		want      []string
	}{
		{
			name:      "plain literal",
			operation: "(text) Tj",
			want:      []string{"text"},
		},
		{
			name:      "multiple literals",
			operation: "[(one) (two)] TJ",
			want:      []string{"one", "two"},
		},
		{
			name:      "escaped parens",
			operation: `(f\(x\)) Tj`,
			want:      []string{"f(x)"},
		},
		{
			name:      "escaped backslash and newline",
			operation: `(a\\b\nc) Tj`,
			want:      []string{"a\\b\nc"},
		},
		{
			name:      "whitespace-only literal dropped",
			operation: "(   ) Tj",
			want:      nil,
		},
		{
			name:      "no literals",
			operation: "BT ET",
			want:      nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parenLiterals(tt.operation))
		})
	}
}

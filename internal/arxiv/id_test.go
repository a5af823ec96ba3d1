package arxiv

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanPaperID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "bare id", input: "2503.13399", expected: "2503.13399"},
		{name: "versioned id", input: "2503.13399v2", expected: "2503.13399"},
		{name: "surrounding whitespace", input: "  2503.13399 ", expected: "2503.13399"},
		{name: "abs URL", input: "https://arxiv.org/abs/2503.13399", expected: "2503.13399"},
		{name: "abs URL with version", input: "http://arxiv.org/abs/2503.13399v1", expected: "2503.13399"},
		{name: "pdf URL", input: "https://arxiv.org/pdf/2503.13399.pdf", expected: "2503.13399"},
		{name: "www prefix", input: "https://www.arxiv.org/abs/2503.13399", expected: "2503.13399"},
		{name: "legacy id", input: "hep-th/9901001", expected: "hep-th/9901001"},
		{name: "legacy id with version", input: "hep-th/9901001v1", expected: "hep-th/9901001"},
		{name: "four digit suffix", input: "1501.0001", expected: "1501.0001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanPaperID(tt.input))
		})
	}
}

func TestIsValidPaperID(t *testing.T) {
	valid := []string{"2503.13399", "2301.00001v3", "hep-th/9901001", "math.GT/0309136"}
	for _, id := range valid {
		assert.True(t, IsValidPaperID(id), id)
	}

	invalid := []string{"", "paper.pdf", "../../etc/passwd", "2503", "abs/2503.13399"}
	for _, id := range invalid {
		assert.False(t, IsValidPaperID(id), id)
	}
}

func TestExtractIDFromFilename(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		expected string
	}{
		{name: "plain id", filename: "2503.13399.pdf", expected: "2503.13399"},
		{name: "versioned id", filename: "2503.13399v2.pdf", expected: "2503.13399"},
		{name: "no extension", filename: "2503.13399", expected: "2503.13399"},
		{name: "legacy id with underscore", filename: "hep-th_9901001.pdf", expected: "hep-th/9901001"},
		{name: "arbitrary name", filename: "my-paper-final.pdf", expected: ""},
		{name: "empty", filename: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractIDFromFilename(tt.filename))
		})
	}
}

func TestNormalizeWhitespace(t *testing.T) {
	assert.Equal(t, "a b c", normalizeWhitespace("  a\n b\t c  "))
	assert.Equal(t, "", normalizeWhitespace("   "))
}

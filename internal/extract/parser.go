package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/helixir/arxiv-query-service/internal/domain"
)

// ParseFile extracts text from a local PDF without any network call. It
// walks the page content streams and collects the text-show operations.
// An invalid PDF or a PDF with no extractable text is an error, never an
// empty success.
func ParseFile(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", domain.NewFileSystemError("stat", path, err)
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	pageCount, err := api.PageCountFile(path)
	if err != nil {
		return "", domain.NewExtractionError(path, "not a readable pdf", err)
	}

	tempDir, err := os.MkdirTemp("", "pdf_text_*")
	if err != nil {
		return "", domain.NewFileSystemError("mkdtemp", "", err)
	}
	defer os.RemoveAll(tempDir)

	if err := api.ExtractContentFile(path, tempDir, nil, conf); err != nil {
		return "", domain.NewExtractionError(path, "extracting content streams", err)
	}

	baseName := strings.TrimSuffix(filepath.Base(path), ".pdf")

	var pages []string
	for pageNum := 1; pageNum <= pageCount; pageNum++ {
		contentFile := filepath.Join(tempDir, fmt.Sprintf("%s_Content_page_%d.txt", baseName, pageNum))
		raw, err := os.ReadFile(contentFile)
		if err != nil {
			// Pages without a content stream produce no file.
			continue
		}
		if text := textFromContentStream(string(raw)); text != "" {
			pages = append(pages, text)
		}
	}

	if len(pages) == 0 {
		return "", domain.NewExtractionError(path, "pdf contains no extractable text", nil)
	}

	return strings.Join(pages, "\n\n"), nil
}

// textFromContentStream pulls the operands of text-show operations (Tj, TJ,
// ', ") out of one page's raw content stream.
func textFromContentStream(content string) string {
	var texts []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.Contains(line, " Tj") && !strings.Contains(line, " TJ") &&
			!strings.Contains(line, "' ") && !strings.Contains(line, "\" ") {
			continue
		}
		texts = append(texts, parenLiterals(line)...)
	}
	return strings.Join(texts, " ")
}

// parenLiterals extracts the unescaped parenthesized string literals from
// one content-stream line.
func parenLiterals(operation string) []string {
	var texts []string
	inText := false
	start := -1

	for i, char := range operation {
		if char == '(' && (i == 0 || operation[i-1] != '\\') {
			inText = true
			start = i + 1
		} else if char == ')' && inText && (i == 0 || operation[i-1] != '\\') {
			if start != -1 && start < i {
				text := operation[start:i]
				text = strings.ReplaceAll(text, `\(`, "(")
				text = strings.ReplaceAll(text, `\)`, ")")
				text = strings.ReplaceAll(text, `\\`, `\`)
				text = strings.ReplaceAll(text, `\n`, "\n")
				text = strings.ReplaceAll(text, `\r`, "\r")
				text = strings.ReplaceAll(text, `\t`, "\t")

				if strings.TrimSpace(text) != "" {
					texts = append(texts, text)
				}
			}
			inText = false
			start = -1
		}
	}

	return texts
}

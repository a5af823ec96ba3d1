// Package domain defines the core types and errors shared across the arXiv query service.
package domain

import "time"

// PaperRecord is the normalized representation of an arXiv paper produced by
// the search path. Records are read-only once returned.
type PaperRecord struct {
	// ID is the canonical arXiv identifier without version suffix (e.g. "2301.00001").
	ID string `json:"id"`

	// Title is the paper title with whitespace normalized.
	Title string `json:"title"`

	// Authors lists author names in the order arXiv reports them.
	Authors []string `json:"authors"`

	// Summary is the paper abstract with whitespace normalized.
	Summary string `json:"summary"`

	// Categories lists the arXiv subject categories (e.g. "cs.AI").
	Categories []string `json:"categories"`

	// PublishedAt is the submission timestamp of the first version.
	PublishedAt time.Time `json:"published_at"`

	// UpdatedAt is the timestamp of the latest version.
	UpdatedAt time.Time `json:"updated_at"`

	// PDFURL is the direct link to the paper's PDF artifact.
	PDFURL string `json:"pdf_url"`
}

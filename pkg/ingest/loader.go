package ingest

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tmc/langchaingo/documentloaders"
	"github.com/xhad/docchat/internal/models"
)

// ExtractText decodes raw document content into plain text based on the
// declared mime type. Supported: text/plain, text/markdown, text/html,
// application/pdf.
func ExtractText(ctx context.Context, content []byte, mimeType string) (string, error) {
	var text string
	var err error

	switch {
	case strings.HasPrefix(mimeType, "text/html"), strings.HasPrefix(mimeType, "application/xhtml"):
		text, err = extractHTML(content)
	case strings.HasPrefix(mimeType, "application/pdf"):
		text, err = extractPDF(ctx, content)
	case strings.HasPrefix(mimeType, "text/"), mimeType == "":
		text = string(content)
	default:
		return "", fmt.Errorf("%w: unsupported mime type %q", models.ErrDocumentParse, mimeType)
	}

	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrDocumentParse, err)
	}

	text = normalizeWhitespace(text)
	if text == "" {
		return "", fmt.Errorf("%w: document contains no extractable text", models.ErrDocumentParse)
	}
	return text, nil
}

func extractHTML(content []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, noscript").Remove()

	var builder strings.Builder
	doc.Find("title, h1, h2, h3, h4, h5, h6, p, li, td, th, pre, blockquote").Each(func(_ int, s *goquery.Selection) {
		t := strings.TrimSpace(s.Text())
		if t != "" {
			builder.WriteString(t)
			builder.WriteString("\n")
		}
	})

	// Fall back to the whole body when the page has no structural elements
	if builder.Len() == 0 {
		return doc.Text(), nil
	}
	return builder.String(), nil
}

func extractPDF(ctx context.Context, content []byte) (string, error) {
	loader := documentloaders.NewPDF(bytes.NewReader(content), int64(len(content)))
	pages, err := loader.Load(ctx)
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	for _, page := range pages {
		builder.WriteString(page.PageContent)
		builder.WriteString("\n")
	}
	return builder.String(), nil
}

// normalizeWhitespace collapses runs of spaces and tabs within lines and
// drops blank lines, keeping single newlines as chunking boundaries.
func normalizeWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}

package ingestion_engine

import (
	"bytes"
	"path"
	"regexp"
	"strings"

	"code.sajari.com/docconv"
	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/kbforge/kbforge/internal/core"
)

// minReadableLen is the threshold under which a readability-style extraction
// is considered to have missed the main content and the paragraph fallback
// kicks in.
const minReadableLen = 20

var whitespaceRe = regexp.MustCompile(`\s+`)

// DocconvExtractor implements core.TextExtractor. PDF and Word bytes go
// through docconv; everything else is treated as HTML/raw text and extracted
// with goquery. All parse failures are soft: they log a warning and yield
// empty text, so the caller's minimum-content guard decides the job outcome.
type DocconvExtractor struct {
	logger *zap.Logger
}

var _ core.TextExtractor = (*DocconvExtractor)(nil)

func NewDocconvExtractor(logger *zap.Logger) *DocconvExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocconvExtractor{logger: logger}
}

func (e *DocconvExtractor) Extract(raw []byte, contentType, name string) string {
	switch sourceKind(contentType, name) {
	case kindPDF:
		return e.convert(raw, "application/pdf", name)
	case kindWord:
		return e.convert(raw, contentTypeOrDefault(contentType, "application/vnd.openxmlformats-officedocument.wordprocessingml.document"), name)
	default:
		return e.extractHTML(raw, name)
	}
}

// convert runs docconv for structured document formats.
func (e *DocconvExtractor) convert(raw []byte, mime, name string) string {
	res, err := docconv.Convert(bytes.NewReader(raw), mime, false)
	if err != nil {
		e.logger.Warn("document conversion failed, treating as empty",
			zap.String("name", name), zap.String("mime", mime), zap.Error(err))
		return ""
	}
	return collapseWhitespace(res.Body)
}

// extractHTML prefers main-content extraction and falls back to concatenating
// paragraph-like nodes when the result is too short to be the real article.
func (e *DocconvExtractor) extractHTML(raw []byte, name string) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		e.logger.Warn("html parse failed, treating as empty",
			zap.String("name", name), zap.Error(err))
		return ""
	}

	doc.Find("script, style, nav, footer, header, aside, noscript").Each(func(_ int, s *goquery.Selection) {
		s.Remove()
	})

	for _, sel := range []string{"article", "main", "[role=main]"} {
		if text := collapseWhitespace(doc.Find(sel).First().Text()); len(text) >= minReadableLen {
			return text
		}
	}

	// Paragraph fallback: the page has no obvious main region.
	var parts []string
	doc.Find("p, li, h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		if t := collapseWhitespace(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	if fallback := strings.Join(parts, " "); len(fallback) >= minReadableLen {
		return fallback
	}

	return collapseWhitespace(doc.Find("body").Text())
}

type kind int

const (
	kindGeneric kind = iota
	kindPDF
	kindWord
)

func sourceKind(contentType, name string) kind {
	ct := strings.ToLower(contentType)
	ext := strings.ToLower(path.Ext(name))

	switch {
	case strings.Contains(ct, "pdf") || ext == ".pdf":
		return kindPDF
	case strings.Contains(ct, "msword"),
		strings.Contains(ct, "wordprocessingml"),
		ext == ".doc", ext == ".docx":
		return kindWord
	}
	return kindGeneric
}

func contentTypeOrDefault(ct, def string) string {
	if ct == "" {
		return def
	}
	// Strip parameters like "; charset=utf-8" before handing to docconv.
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = ct[:i]
	}
	return strings.TrimSpace(ct)
}

func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

package ingestion_engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestExtractHTMLMainContent(t *testing.T) {
	e := NewDocconvExtractor(zap.NewNop())

	html := `<html><head><title>t</title><script>var x = 1;</script></head>
		<body>
		<nav>menu menu menu</nav>
		<article>The quick brown fox jumps over the lazy dog.</article>
		<footer>copyright notice</footer>
		</body></html>`

	got := e.Extract([]byte(html), "text/html; charset=utf-8", "https://example.com/page")
	assert.Equal(t, "The quick brown fox jumps over the lazy dog.", got)
}

func TestExtractHTMLParagraphFallback(t *testing.T) {
	e := NewDocconvExtractor(zap.NewNop())

	// No article/main region: paragraph scraping takes over.
	html := `<html><body>
		<div><p>First paragraph of the page.</p></div>
		<div><p>Second  paragraph   with    odd spacing.</p></div>
		</body></html>`

	got := e.Extract([]byte(html), "text/html", "page.html")
	assert.Equal(t, "First paragraph of the page. Second paragraph with odd spacing.", got)
}

func TestExtractHTMLCollapsesWhitespace(t *testing.T) {
	e := NewDocconvExtractor(zap.NewNop())

	html := "<html><body><article>hello\n\n\t  world   again\r\n</article></body></html>"
	got := e.Extract([]byte(html), "text/html", "x")
	assert.Equal(t, "hello world again", got)
}

func TestExtractHTMLRemovesChrome(t *testing.T) {
	e := NewDocconvExtractor(zap.NewNop())

	html := `<html><body>
		<script>alert("nope")</script>
		<style>.a{color:red}</style>
		<header>site header</header>
		<aside>sidebar junk</aside>
		<article>only the article text should remain here</article>
		</body></html>`

	got := e.Extract([]byte(html), "text/html", "x")
	assert.Equal(t, "only the article text should remain here", got)
}

func TestExtractBrokenPDFIsSoftFailure(t *testing.T) {
	e := NewDocconvExtractor(zap.NewNop())

	// Not a real PDF: conversion fails, extraction yields empty text instead
	// of an error so the caller's minimum-content guard decides the outcome.
	got := e.Extract([]byte("definitely not a pdf"), "application/pdf", "report.pdf")
	assert.Empty(t, got)
}

func TestSourceKindDispatch(t *testing.T) {
	tests := []struct {
		contentType string
		name        string
		want        kind
	}{
		{"application/pdf", "report.pdf", kindPDF},
		{"", "report.PDF", kindPDF},
		{"application/msword", "memo.doc", kindWord},
		{"application/vnd.openxmlformats-officedocument.wordprocessingml.document", "memo.docx", kindWord},
		{"", "memo.docx", kindWord},
		{"text/html", "https://example.com/a", kindGeneric},
		{"text/plain", "notes.txt", kindGeneric},
		{"", "", kindGeneric},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, sourceKind(tt.contentType, tt.name), "%s %s", tt.contentType, tt.name)
	}
}

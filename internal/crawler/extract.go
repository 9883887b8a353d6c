package crawler

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractMetadata reads the title and description from a rendered document.
// The title follows document.title: the first HTML <title> element, with
// ASCII whitespace stripped and collapsed. The description comes from the
// first meta[name=description] tag, falling back to the first
// meta[property=description] tag when that is empty.
func ExtractMetadata(html string) (PageMeta, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return PageMeta{}, fmt.Errorf("parse document: %w", err)
	}
	return PageMeta{
		Title:       documentTitle(htmlTitle(doc).Text()),
		Description: firstContent(doc, `meta[name="description"]`, `meta[property="description"]`),
	}, nil
}

// htmlTitle skips <title> elements in foreign content such as inline SVG.
func htmlTitle(doc *goquery.Document) *goquery.Selection {
	return doc.Find("title").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Get(0).Namespace == ""
	}).First()
}

func firstContent(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if content, ok := doc.Find(sel).First().Attr("content"); ok && content != "" {
			return content
		}
	}
	return ""
}

// documentTitle strips and collapses ASCII whitespace the way document.title
// does. Other whitespace such as U+00A0 is kept.
func documentTitle(s string) string {
	return strings.Join(strings.FieldsFunc(s, isASCIISpace), " ")
}

func isASCIISpace(r rune) bool {
	switch r {
	case '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

// Package textutil turns feed bodies into prompt-ready plain text.
package textutil

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// blockTags break words apart when their markup is removed.
const blockTags = "p, div, br, li, ul, ol, h1, h2, h3, h4, h5, h6, blockquote, pre, " +
	"section, article, header, footer, table, tr, td, th, figcaption, hr"

// PlainText strips markup from an HTML fragment and collapses whitespace.
// Input that is not HTML is only whitespace-normalized.
func PlainText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return collapse(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return collapse(s)
	}
	doc.Find("script, style, noscript").Remove()
	doc.Find(blockTags).BeforeHtml(" ").AfterHtml(" ")
	return collapse(doc.Text())
}

// Excerpt returns at most n runes of s.
func Excerpt(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Package query provides HTML document querying over a parsed DOM, with CSS
// selectors and XPath expressions behind one Document type.
//
// Parsing runs an ordered strategy chain: a charset-aware parser first, then
// the plain UTF-8 parser. A Document is always produced; queries against
// content that defeated every parser return empty results rather than errors,
// and a failing expression yields an empty result without affecting other
// queries on the same document.
package query

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/rs/zerolog"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// parser is one strategy in the parse chain.
type parser interface {
	// Name identifies the strategy in logs.
	Name() string

	// Parse builds a DOM from raw content.
	Parse(content []byte) (*html.Node, error)
}

// charsetParser sniffs the content encoding before parsing, handling
// documents whose bytes are not UTF-8.
type charsetParser struct{}

func (charsetParser) Name() string { return "charset" }

func (charsetParser) Parse(content []byte) (*html.Node, error) {
	reader, err := charset.NewReader(bytes.NewReader(content), "")
	if err != nil {
		return nil, err
	}
	return html.Parse(reader)
}

// plainParser parses content as UTF-8 directly.
type plainParser struct{}

func (plainParser) Name() string { return "plain" }

func (plainParser) Parse(content []byte) (*html.Node, error) {
	return html.Parse(bytes.NewReader(content))
}

// parseChain is tried in order; the first success wins.
var parseChain = []parser{charsetParser{}, plainParser{}}

// Document is a parsed HTML document supporting CSS and XPath queries.
// A zero-value or failed-parse Document answers every query with an empty
// result.
type Document struct {
	root   *html.Node
	gq     *goquery.Document
	logger zerolog.Logger
}

// Parse builds a Document from raw content, trying each parse strategy in
// order. It never returns nil: if every strategy fails, the Document is
// empty and all queries on it return empty results.
func Parse(content []byte, logger zerolog.Logger) *Document {
	doc := &Document{logger: logger}
	if len(content) == 0 {
		return doc
	}

	for _, p := range parseChain {
		root, err := p.Parse(content)
		if err != nil {
			logger.Debug().
				Str("parser", p.Name()).
				Err(err).
				Msg("Parse strategy failed")
			continue
		}
		doc.root = root
		doc.gq = goquery.NewDocumentFromNode(root)
		return doc
	}

	logger.Debug().Int("size", len(content)).Msg("All parse strategies failed")
	return doc
}

// ParseText builds a Document from already-decoded text.
func ParseText(text string, logger zerolog.Logger) *Document {
	return Parse([]byte(text), logger)
}

// Empty reports whether the document holds no parsed DOM.
func (d *Document) Empty() bool {
	return d == nil || d.root == nil
}

// Selection returns the goquery selection for a CSS selector, enabling
// chained traversal. A failed parse yields an empty selection.
func (d *Document) Selection(selector string) *goquery.Selection {
	if d.Empty() {
		return &goquery.Selection{}
	}
	return d.gq.Find(selector)
}

// CSS returns the trimmed text content of every node matching a CSS
// selector, in document order.
func (d *Document) CSS(selector string) []string {
	if d.Empty() {
		return nil
	}

	var results []string
	d.gq.Find(selector).Each(func(_ int, s *goquery.Selection) {
		results = append(results, strings.TrimSpace(s.Text()))
	})
	return results
}

// CSSFirst returns the trimmed text of the first node matching a CSS
// selector, or the empty string when nothing matches.
func (d *Document) CSSFirst(selector string) string {
	if d.Empty() {
		return ""
	}
	return strings.TrimSpace(d.gq.Find(selector).First().Text())
}

// CSSAttr returns the value of attr on every node matching a CSS selector,
// skipping nodes without it.
func (d *Document) CSSAttr(selector, attr string) []string {
	if d.Empty() {
		return nil
	}

	var results []string
	d.gq.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr(attr); ok {
			results = append(results, v)
		}
	})
	return results
}

// XPath returns the trimmed text content of every node matching an XPath
// expression. An invalid expression yields an empty result; it never
// panics and does not affect later queries.
func (d *Document) XPath(expr string) []string {
	nodes := d.XPathNodes(expr)
	if len(nodes) == 0 {
		return nil
	}

	results := make([]string, 0, len(nodes))
	for _, n := range nodes {
		results = append(results, strings.TrimSpace(htmlquery.InnerText(n)))
	}
	return results
}

// XPathNodes returns the raw nodes matching an XPath expression. An invalid
// expression yields nil.
func (d *Document) XPathNodes(expr string) []*html.Node {
	if d.Empty() {
		return nil
	}

	nodes, err := htmlquery.QueryAll(d.root, expr)
	if err != nil {
		d.logger.Debug().Str("expr", expr).Err(err).Msg("XPath expression failed")
		return nil
	}
	return nodes
}

// XPathFirst returns the trimmed text of the first node matching an XPath
// expression, or the empty string.
func (d *Document) XPathFirst(expr string) string {
	if d.Empty() {
		return ""
	}

	node, err := htmlquery.Query(d.root, expr)
	if err != nil || node == nil {
		return ""
	}
	return strings.TrimSpace(htmlquery.InnerText(node))
}

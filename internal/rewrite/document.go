package rewrite

import (
	"fmt"
	"io"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Rewriter rewrites HTML documents fetched from a target site.
type Rewriter struct {
	rule Rule
}

// Result is a rewritten document.
type Result struct {
	HTML string
	// Rewritten counts the attribute values replaced with relay references.
	Rewritten int
}

// NewRewriter creates a Rewriter applying rule.
func NewRewriter(rule Rule) *Rewriter {
	return &Rewriter{rule: rule}
}

// Rule returns the rule the Rewriter applies.
func (rw *Rewriter) Rule() Rule {
	return rw.rule
}

// Rewrite parses the document read from r, rewrites every rewritable
// attribute, anchors relative references with a <base> element pointing at
// the target origin and appends the Monitor Script. Documents without <head>
// or <body> are accepted.
func (rw *Rewriter) Rewrite(r io.Reader, target *url.URL, proxyHost string) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	script, err := rw.rule.MonitorScript(target)
	if err != nil {
		return nil, err
	}

	n := rw.rewriteAttributes(doc, target, proxyHost)
	insertBase(doc, Origin(target)+"/")
	appendScript(doc, script)

	out, err := doc.Html()
	if err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	return &Result{HTML: out, Rewritten: n}, nil
}

func (rw *Rewriter) rewriteAttributes(doc *goquery.Document, target *url.URL, proxyHost string) int {
	count := 0
	doc.Find(rw.rule.Selector()).Each(func(_ int, s *goquery.Selection) {
		if rw.rule.skips(goquery.NodeName(s)) {
			return
		}
		for _, attr := range rw.rule.Attributes {
			v, ok := s.Attr(attr)
			if !ok {
				continue
			}
			if next, changed := rw.rule.Rewrite(v, target, proxyHost); changed {
				s.SetAttr(attr, next)
				count++
			}
		}
	})
	return count
}

func insertBase(doc *goquery.Document, href string) {
	base := &html.Node{
		Type:     html.ElementNode,
		Data:     "base",
		DataAtom: atom.Base,
		Attr:     []html.Attribute{{Key: "href", Val: href}},
	}

	head := doc.Find("head").First()
	if head.Length() == 0 {
		head = root(doc).PrependNodes(&html.Node{
			Type:     html.ElementNode,
			Data:     "head",
			DataAtom: atom.Head,
		}).Find("head").First()
	}
	head.PrependNodes(base)
}

func appendScript(doc *goquery.Document, script string) {
	node := &html.Node{
		Type:     html.ElementNode,
		Data:     "script",
		DataAtom: atom.Script,
	}
	node.AppendChild(&html.Node{Type: html.TextNode, Data: script})

	body := doc.Find("body").First()
	if body.Length() == 0 {
		body = root(doc)
	}
	body.AppendNodes(node)
}

// root returns the document element, or the document node itself when the
// parser produced none.
func root(doc *goquery.Document) *goquery.Selection {
	if el := doc.Find("html").First(); el.Length() > 0 {
		return el
	}
	return doc.Selection
}

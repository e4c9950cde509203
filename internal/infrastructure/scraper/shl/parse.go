package shl

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/kirillkom/assessment-recommender/internal/core/domain"
)

const productPathPrefix = "/products/product-catalog/view/"

type listingItem struct {
	Name  string
	URL   string
	Codes []string
}

type detail struct {
	Description   string
	Duration      string
	RemoteTesting domain.YesNo
	Adaptive      domain.YesNo
	TestTypes     []string
}

var (
	durationPattern = regexp.MustCompile(`(?i)(?:Completion Time|Approximate Completion Time).*?=\s*(\d+)|(?:Completion Time|Duration).*?(\d+)\s*minutes`)
	remotePattern   = regexp.MustCompile(`(?i)\b(remote|online|remotely)\b`)
	adaptivePattern = regexp.MustCompile(`(?i)\b(adaptive|IRT|item response theory)\b`)
	testTypePattern = regexp.MustCompile(`Test Type:\s*([A-Z](?:\s+[A-Z])*)`)
)

// parseListing returns product anchors in page order. Category codes come
// from the text right after each anchor.
func parseListing(r io.Reader, host string) ([]listingItem, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse listing html: %w", err)
	}

	var out []listingItem
	walkElements(doc, func(n *html.Node) bool {
		if n.DataAtom != atom.A {
			return true
		}
		href := attr(n, "href")
		if !strings.HasPrefix(href, productPathPrefix) {
			return true
		}
		url := href
		if !strings.HasPrefix(href, "http") {
			url = host + href
		}
		item := listingItem{Name: strippedText(n), URL: url, Codes: []string{}}
		if sib := n.NextSibling; sib != nil && sib.Type == html.TextNode {
			for _, code := range strings.Fields(sib.Data) {
				if _, ok := domain.TestTypeLabels[code]; ok {
					item.Codes = append(item.Codes, code)
				}
			}
		}
		out = append(out, item)
		return false
	})
	return out, nil
}

func parseDetail(r io.Reader) (detail, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return detail{}, fmt.Errorf("parse detail html: %w", err)
	}
	text := lineText(doc)

	d := detail{
		Description:   describe(doc),
		RemoteTesting: domain.No,
		Adaptive:      domain.No,
		TestTypes:     []string{},
	}
	if m := durationPattern.FindStringSubmatch(text); m != nil {
		minutes := m[1]
		if minutes == "" {
			minutes = m[2]
		}
		d.Duration = minutes + " minutes"
	}
	if remotePattern.MatchString(text) {
		d.RemoteTesting = domain.Yes
	}
	if adaptivePattern.MatchString(text) {
		d.Adaptive = domain.Yes
	}
	if m := testTypePattern.FindStringSubmatch(text); m != nil {
		d.TestTypes = domain.LabelsForCodes(strings.Fields(m[1]))
	}
	return d, nil
}

// describe prefers the meta description, else the first paragraph sibling
// after the first h1/h2.
func describe(doc *html.Node) string {
	var meta, heading *html.Node
	walkElements(doc, func(n *html.Node) bool {
		if meta == nil && n.DataAtom == atom.Meta && attr(n, "name") == "description" {
			meta = n
		}
		if heading == nil && (n.DataAtom == atom.H1 || n.DataAtom == atom.H2) {
			heading = n
		}
		return true
	})
	if meta != nil {
		if content := strings.TrimSpace(attr(meta, "content")); content != "" {
			return content
		}
	}
	if heading == nil {
		return ""
	}
	for sib := heading.NextSibling; sib != nil; sib = sib.NextSibling {
		if sib.Type == html.ElementNode && sib.DataAtom == atom.P {
			return strippedText(sib)
		}
	}
	return ""
}

// walkElements visits element nodes depth-first; returning false skips the
// node's children.
func walkElements(n *html.Node, visit func(*html.Node) bool) {
	if n.Type == html.ElementNode && !visit(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkElements(c, visit)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// strippedText concatenates every trimmed text descendant without separators.
func strippedText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(strings.TrimSpace(n.Data))
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// lineText joins every visible text node with newlines so single-line
// patterns do not match across elements.
func lineText(doc *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.DataAtom == atom.Script || n.DataAtom == atom.Style) {
			return
		}
		if n.Type == html.TextNode {
			parts = append(parts, n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.Join(parts, "\n")
}

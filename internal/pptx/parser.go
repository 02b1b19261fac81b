package pptx

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Element is one flattened piece of slide content. The HTML schema for
// slides is deliberately shallow (h1-h3, p, li, div, canvas+script), so a
// flat list is enough for layout decisions.
type Element struct {
	Type string // h1, h2, h3, p, li, div
	Text string
}

// ParseFragment reduces a slide's HTML fragment to its flat element list.
// Scripts, styles and canvases are dropped; nested markup contributes only
// its text. Returns an error only when the input is not parseable HTML at
// all.
func ParseFragment(fragment string) ([]Element, error) {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
	if err != nil {
		return nil, err
	}

	var elements []Element
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "canvas":
				return
			case "h1", "h2", "h3", "p", "li":
				if text := innerText(n); text != "" {
					elements = append(elements, Element{Type: n.Data, Text: text})
				}
				return
			case "div":
				// A div counts as content only for its own direct text;
				// structural divs just recurse.
				if text := directText(n); text != "" {
					elements = append(elements, Element{Type: "div", Text: text})
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return elements, nil
}

// StripTags reduces a fragment to its plain text. Used as the per-slide
// fallback when the fragment cannot be parsed structurally.
func StripTags(fragment string) string {
	var b strings.Builder
	inTag := false
	inScript := false
	lower := strings.ToLower(fragment)
	for i := 0; i < len(fragment); i++ {
		switch {
		case fragment[i] == '<':
			inTag = true
			if strings.HasPrefix(lower[i:], "<script") {
				inScript = true
			}
			if strings.HasPrefix(lower[i:], "</script") {
				inScript = false
			}
		case fragment[i] == '>':
			inTag = false
		case !inTag && !inScript:
			b.WriteByte(fragment[i])
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func innerText(n *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && (c.Data == "script" || c.Data == "style") {
				continue
			}
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

func directText(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

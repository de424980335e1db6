package crawl

import "github.com/PuerkitoBio/goquery"

// goqueryElement adapts a goquery selection to the Element interface.
type goqueryElement struct {
	sel *goquery.Selection
}

// NewElement wraps a parsed markup node as an Element.
func NewElement(sel *goquery.Selection) Element {
	return goqueryElement{sel: sel}
}

func (g goqueryElement) Text() string {
	return g.sel.Text()
}

func (g goqueryElement) Attribute(name string) string {
	v, _ := g.sel.Attr(name)
	return v
}

func (g goqueryElement) Children(selector string) []Element {
	var out []Element
	g.sel.Find(selector).Each(func(_ int, s *goquery.Selection) {
		out = append(out, goqueryElement{sel: s})
	})
	return out
}

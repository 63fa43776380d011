// Package render turns assistant replies into HTML and display tables with phone
// numbers as WhatsApp links.
package render

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"bloodfinder/internal/phone"
)

// PhoneLinkClass is set on every generated phone link.
const PhoneLinkClass = "phone-link"

// Renderer converts assistant Markdown to HTML. Raw HTML in the input is not passed
// through.
type Renderer struct {
	md goldmark.Markdown
}

func NewRenderer() *Renderer {
	return &Renderer{md: goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(
			parser.WithASTTransformers(util.Prioritized(phoneLinker{}, 999)),
		),
	)}
}

// HTML renders text. Phone-shaped runs outside code and existing links become links
// to https://wa.me/<digits>.
func (r *Renderer) HTML(src string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

type phoneLinker struct{}

func (phoneLinker) Transform(doc *ast.Document, reader text.Reader, _ parser.Context) {
	source := reader.Source()
	var texts []*ast.Text
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindLink, ast.KindAutoLink, ast.KindCodeSpan, ast.KindCodeBlock,
			ast.KindFencedCodeBlock, ast.KindRawHTML, ast.KindHTMLBlock, ast.KindImage:
			return ast.WalkSkipChildren, nil
		}
		if t, ok := n.(*ast.Text); ok {
			texts = append(texts, t)
		}
		return ast.WalkContinue, nil
	})
	for _, t := range texts {
		linkPhones(t, source)
	}
}

// linkPhones splits t around each phone match. t keeps the tail so its line-break
// flags stay in place.
func linkPhones(t *ast.Text, source []byte) {
	parent := t.Parent()
	if parent == nil {
		return
	}
	seg := t.Segment
	matches := phone.Find(string(source[seg.Start:seg.Stop]))
	if len(matches) == 0 {
		return
	}
	pos := 0
	for _, m := range matches {
		if m.Start > pos {
			parent.InsertBefore(parent, t, ast.NewTextSegment(text.NewSegment(seg.Start+pos, seg.Start+m.Start)))
		}
		link := ast.NewLink()
		link.Destination = []byte(phone.WhatsAppLink(m.Digits, ""))
		link.Title = []byte("Open in WhatsApp")
		link.SetAttributeString("class", []byte(PhoneLinkClass))
		link.SetAttributeString("target", []byte("_blank"))
		link.SetAttributeString("rel", []byte("noopener noreferrer"))
		link.AppendChild(link, ast.NewTextSegment(text.NewSegment(seg.Start+m.Start, seg.Start+m.End)))
		parent.InsertBefore(parent, t, link)
		pos = m.End
	}
	t.Segment = text.NewSegment(seg.Start+pos, seg.Stop)
}

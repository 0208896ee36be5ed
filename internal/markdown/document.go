// Package markdown flattens markdown reference documents into plain text.
package markdown

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/toc"
)

// Document is a markdown source reduced to plain text.
type Document struct {
	// Text keeps one block per line. Headings become plain lines, so article
	// markers written as "## 第 70 條" start a line of their own.
	Text string
	// Outline lists heading paths: "# 總則 > ## 第 1 條".
	Outline []string
}

// Parser converts markdown with goldmark.
type Parser struct {
	md goldmark.Markdown
}

// NewParser creates a Parser. Heading IDs are generated so the outline can be built.
func NewParser() *Parser {
	md := goldmark.New(
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
	)
	return &Parser{md: md}
}

// Parse flattens source and collects its outline.
func (p *Parser) Parse(source []byte) (*Document, error) {
	doc := p.md.Parser().Parse(text.NewReader(source))

	tree, err := toc.Inspect(doc, source,
		toc.MinDepth(1),
		toc.MaxDepth(3),
		toc.Compact(true),
	)
	if err != nil {
		return nil, fmt.Errorf("inspect TOC: %w", err)
	}

	var outline []string
	collectOutline(tree.Items, nil, &outline)

	return &Document{
		Text:    flatten(doc, source),
		Outline: outline,
	}, nil
}

// PlainText is a convenience wrapper returning only the flattened text.
func (p *Parser) PlainText(source []byte) (string, error) {
	doc, err := p.Parse(source)
	if err != nil {
		return "", err
	}
	return doc.Text, nil
}

func collectOutline(items toc.Items, ancestors []string, out *[]string) {
	for _, item := range items {
		path := append(append([]string(nil), ancestors...), string(item.Title))
		if len(item.Title) > 0 {
			*out = append(*out, formatHeaderPath(path))
		}
		if len(item.Items) > 0 {
			collectOutline(item.Items, path, out)
		}
	}
}

// formatHeaderPath builds a header hierarchy string.
// Example: ["總則", "第 1 條"] -> "# 總則 > ## 第 1 條"
func formatHeaderPath(path []string) string {
	parts := make([]string, 0, len(path))
	for i, segment := range path {
		parts = append(parts, fmt.Sprintf("%s %s", strings.Repeat("#", i+1), segment))
	}
	return strings.Join(parts, " > ")
}

// flatten writes every text-bearing block on its own line(s).
func flatten(doc ast.Node, source []byte) string {
	var sb strings.Builder

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading, *ast.Paragraph, *ast.TextBlock:
			var line strings.Builder
			inlineText(node, source, &line)
			if s := strings.TrimSpace(line.String()); s != "" {
				sb.WriteString(s)
				sb.WriteByte('\n')
			}
			return ast.WalkSkipChildren, nil

		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				sb.Write(seg.Value(source))
			}
			return ast.WalkSkipChildren, nil

		case *ast.HTMLBlock, *ast.ThematicBreak:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(sb.String())
}

// inlineText concatenates the inline content under n. Soft and hard line
// breaks are kept as newlines.
func inlineText(n ast.Node, source []byte, sb *strings.Builder) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte('\n')
			}
		case *ast.String:
			sb.Write(t.Value)
		case *ast.AutoLink:
			sb.Write(t.Label(source))
		case *ast.RawHTML:
			// dropped
		default:
			inlineText(c, source, sb)
		}
	}
}

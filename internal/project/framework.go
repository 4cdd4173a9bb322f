package project

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// componentsHeading is the section whose bullet list is extracted into
// Framework.Components.
const componentsHeading = "core components"

// parseFramework extracts structured metadata from a framework
// markdown document. The full source is preserved in Body; parsing is
// best-effort and an unstructured document still yields a usable
// framework.
func parseFramework(name, path string, source []byte) Framework {
	fw := Framework{
		Name: name,
		Path: path,
		Body: string(source),
	}

	md := goldmark.New()
	reader := text.NewReader(source)
	doc := md.Parser().Parse(reader)

	var inComponents bool
	var sawTitle bool
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			headingText := strings.TrimSpace(string(nodeText(node, source)))
			if node.Level == 1 && !sawTitle {
				fw.Title = headingText
				sawTitle = true
			}
			inComponents = strings.EqualFold(strings.TrimSpace(headingText), componentsHeading)
		case *ast.Paragraph:
			// First paragraph after the title becomes the description.
			if sawTitle && fw.Description == "" && !inComponents {
				if _, isItem := node.Parent().(*ast.ListItem); !isItem {
					fw.Description = strings.TrimSpace(string(nodeText(node, source)))
				}
			}
		case *ast.ListItem:
			if inComponents {
				item := strings.TrimSpace(string(nodeText(node, source)))
				if item != "" {
					fw.Components = append(fw.Components, item)
				}
				return ast.WalkSkipChildren, nil
			}
		}
		return ast.WalkContinue, nil
	})

	if fw.Title == "" {
		fw.Title = name
	}
	return fw
}

// nodeText collects the raw text content beneath a node.
func nodeText(n ast.Node, source []byte) []byte {
	var buf []byte
	_ = ast.Walk(n, func(child ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, ok := child.(*ast.Text); ok {
			buf = append(buf, t.Segment.Value(source)...)
		}
		return ast.WalkContinue, nil
	})
	return buf
}

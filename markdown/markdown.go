// Package markdown parses markdown source files with YAML frontmatter
// into typed documents, rendering the body to HTML with goldmark. It
// is the stock parse function for the sitegen pipeline; copy it into
// your project and adapt it if your content needs more.
package markdown

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"
	"golang.org/x/net/html"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// ErrMissingFrontmatter is returned when a source file has no leading
// YAML frontmatter block.
var ErrMissingFrontmatter = errors.New("missing frontmatter")

// engine is shared across parses; building goldmark's extension chain
// is not free, so do it once.
var engine = goldmark.New(
	goldmark.WithExtensions(extension.GFM, extension.Typographer, extension.Footnote),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	goldmark.WithRendererOptions(goldmarkhtml.WithUnsafe()),
)

// Document is a parsed markdown file with its frontmatter deserialized
// into the caller's type T.
type Document[T any] struct {
	// Frontmatter holds the deserialized YAML frontmatter.
	Frontmatter T
	// Basename is the file stem, e.g. "hello-world" for
	// content/hello-world.md.
	Basename string
	// Slug is the Basename normalized for use in URLs.
	Slug string
	// Title is the text of the first level-one heading in the rendered
	// body, or empty if there is none. Frontmatter with its own title
	// field takes precedence at the caller's discretion.
	Title string
	// Markdown is the body with the frontmatter stripped.
	Markdown []byte
	// HTML is the rendered body.
	HTML []byte
}

// Parse reads and parses one markdown file.
func Parse[T any](path string) (*Document[T], error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	front, body, err := splitFrontmatter(raw)
	if err != nil {
		return nil, err
	}

	var fm T
	if err := yaml.Unmarshal(front, &fm); err != nil {
		return nil, fmt.Errorf("deserializing frontmatter: %w", err)
	}

	var buf bytes.Buffer
	if err := engine.Convert(body, &buf); err != nil {
		return nil, fmt.Errorf("rendering markdown: %w", err)
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if stem == "" {
		return nil, fmt.Errorf("no file stem for %s", path)
	}

	return &Document[T]{
		Frontmatter: fm,
		Basename:    stem,
		Slug:        Slugify(stem),
		Title:       firstHeading(buf.Bytes()),
		Markdown:    body,
		HTML:        buf.Bytes(),
	}, nil
}

// ParseFunc adapts Parse to the parse-function shape sitegen.Parse
// expects.
func ParseFunc[T any]() func(path string) (*Document[T], error) {
	return func(path string) (*Document[T], error) {
		return Parse[T](path)
	}
}

// splitFrontmatter separates the leading "---" delimited YAML block
// from the markdown body.
func splitFrontmatter(raw []byte) (front, body []byte, err error) {
	rest, found := cutPrefixLine(raw, "---")
	if !found {
		return nil, nil, ErrMissingFrontmatter
	}

	for offset := 0; offset <= len(rest); {
		line, next := nextLine(rest[offset:])
		if strings.TrimRight(string(line), "\r") == "---" {
			if next == 0 {
				// Delimiter at EOF; the body is empty.
				return rest[:offset], nil, nil
			}
			return rest[:offset], rest[offset+next:], nil
		}
		if next == 0 {
			break
		}
		offset += next
	}
	return nil, nil, ErrMissingFrontmatter
}

// cutPrefixLine strips a line consisting exactly of prefix from the
// start of raw.
func cutPrefixLine(raw []byte, prefix string) ([]byte, bool) {
	line, next := nextLine(raw)
	if strings.TrimRight(string(line), "\r") != prefix || next == 0 {
		return nil, false
	}
	return raw[next:], true
}

// nextLine returns the first line of b without its terminator and the
// offset of the following line. next is 0 when b has no newline left.
func nextLine(b []byte) (line []byte, next int) {
	idx := bytes.IndexByte(b, '\n')
	if idx < 0 {
		return b, 0
	}
	return b[:idx], idx + 1
}

// Slugify lowercases s, strips combining marks, and collapses runs of
// non-alphanumeric characters into single hyphens.
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	normalized, _, err := transform.String(t, s)
	if err != nil {
		normalized = s
	}

	var b strings.Builder
	pendingHyphen := false
	for _, r := range normalized {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(unicode.ToLower(r))
		default:
			pendingHyphen = true
		}
	}
	return b.String()
}

// firstHeading returns the text content of the first h1 element in the
// rendered HTML, used as the document title when the frontmatter does
// not carry one.
func firstHeading(rendered []byte) string {
	doc, err := html.Parse(bytes.NewReader(rendered))
	if err != nil {
		return ""
	}

	var h1 *html.Node
	var find func(*html.Node)
	find = func(n *html.Node) {
		if h1 != nil {
			return
		}
		if n.Type == html.ElementNode && n.Data == "h1" {
			h1 = n
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			find(child)
		}
	}
	find(doc)
	if h1 == nil {
		return ""
	}

	var b strings.Builder
	var text func(*html.Node)
	text = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			text(child)
		}
	}
	text(h1)
	return strings.TrimSpace(b.String())
}

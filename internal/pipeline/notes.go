package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// ErrNotesRender indicates the notes could not be rendered.
var ErrNotesRender = errors.New("notes rendering failed")

// Highlight placeholders live in the Unicode Private Use Area so they pass
// through goldmark unchanged and can become <mark> afterwards.
const (
	markStart = "\uE000"
	markEnd   = "\uE001"
)

var (
	crlfOrCR           = regexp.MustCompile(`\r\n?`)
	multipleBlankLines = regexp.MustCompile(`\n{3,}`)
	highlightPattern   = regexp.MustCompile(`==(.*?)==`)
)

// NotesRenderer converts invoice notes to an HTML fragment.
type NotesRenderer interface {
	RenderNotes(ctx context.Context, notes string) (string, error)
}

// GoldmarkNotes renders notes as GitHub-flavoured Markdown. Newlines are
// kept as line breaks, so plain-text notes look as typed. Raw HTML in the
// notes is not rendered.
type GoldmarkNotes struct {
	md goldmark.Markdown
}

// NewGoldmarkNotes creates a GoldmarkNotes renderer. Code blocks are
// highlighted with inline styles so the preview needs no extra stylesheet.
func NewGoldmarkNotes() *GoldmarkNotes {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			highlighting.NewHighlighting(
				highlighting.WithStyle("github"),
				highlighting.WithFormatOptions(chromahtml.WithClasses(false)),
			),
		),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			html.WithXHTML(),
		),
	)
	return &GoldmarkNotes{md: md}
}

// RenderNotes returns the HTML fragment for notes, or "" for blank notes.
func (g *GoldmarkNotes) RenderNotes(ctx context.Context, notes string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(notes) == "" {
		return "", nil
	}

	var buf bytes.Buffer
	if err := g.md.Convert([]byte(preprocess(notes)), &buf); err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotesRender, err)
	}
	return convertMarkPlaceholders(buf.String()), nil
}

// preprocess normalizes line endings, compresses blank runs and turns
// ==text== into highlight placeholders.
func preprocess(content string) string {
	content = crlfOrCR.ReplaceAllString(content, "\n")
	content = highlightPattern.ReplaceAllString(content, markStart+"$1"+markEnd)
	return multipleBlankLines.ReplaceAllString(content, "\n\n")
}

func convertMarkPlaceholders(content string) string {
	return strings.NewReplacer(markStart, "<mark>", markEnd, "</mark>").Replace(content)
}

var _ NotesRenderer = (*GoldmarkNotes)(nil)

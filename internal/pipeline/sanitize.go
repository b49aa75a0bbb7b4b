package pipeline

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrRegionNotFound indicates the document has no element with the
// requested id.
var ErrRegionNotFound = errors.New("capture region not found")

// unsupportedColor matches CSS color functions the capture renderer may
// not understand.
var unsupportedColor = regexp.MustCompile(`(?i)\b(?:oklab|oklch|lab|lch)\([^)]*\)`)

// regionColors is appended to the region's inline style.
const regionColors = "background-color: #ffffff; color: #000000"

// SanitizeClone returns a copy of a full HTML document prepared for a
// second capture attempt of the element with id regionID:
//
//   - script elements are removed everywhere
//   - style elements inside the region are removed
//   - elements whose class contains "animate-" or "transition-" are removed
//   - lab(), lch(), oklab() and oklch() in inline styles become #000000
//   - the region is forced to a white background with black text
//
// The input is not modified.
func SanitizeClone(htmlContent, regionID string) (string, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return "", fmt.Errorf("parsing preview: %w", err)
	}

	region := findByID(doc, regionID)
	if region == nil {
		return "", fmt.Errorf("%w: #%s", ErrRegionNotFound, regionID)
	}

	removeNodes(doc, func(n *html.Node) bool { return n.DataAtom == atom.Script })
	removeNodes(region, func(n *html.Node) bool {
		return n.DataAtom == atom.Style || hasMotionClass(n)
	})
	rewriteInlineColors(region)
	appendStyle(region, regionColors)

	var buf strings.Builder
	if err := html.Render(&buf, doc); err != nil {
		return "", fmt.Errorf("rendering preview: %w", err)
	}
	return buf.String(), nil
}

// findByID returns the first element whose id attribute equals id.
func findByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode && attr(n, "id") == id {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

// removeNodes detaches every element descendant of root matching drop.
// root itself is never removed.
func removeNodes(root *html.Node, drop func(*html.Node) bool) {
	for c := root.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode && drop(c) {
			root.RemoveChild(c)
		} else {
			removeNodes(c, drop)
		}
		c = next
	}
}

func hasMotionClass(n *html.Node) bool {
	class := attr(n, "class")
	return strings.Contains(class, "animate-") || strings.Contains(class, "transition-")
}

// rewriteInlineColors replaces unsupported color functions in the style
// attribute of n and its descendants.
func rewriteInlineColors(n *html.Node) {
	if n.Type == html.ElementNode {
		for i, a := range n.Attr {
			if a.Key == "style" && unsupportedColor.MatchString(a.Val) {
				n.Attr[i].Val = unsupportedColor.ReplaceAllString(a.Val, "#000000")
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		rewriteInlineColors(c)
	}
}

// appendStyle adds declarations to the end of n's style attribute, so
// they win over earlier ones.
func appendStyle(n *html.Node, decls string) {
	for i, a := range n.Attr {
		if a.Key != "style" {
			continue
		}
		val := strings.TrimSpace(a.Val)
		if val != "" && !strings.HasSuffix(val, ";") {
			val += ";"
		}
		n.Attr[i].Val = strings.TrimSpace(val + " " + decls)
		return
	}
	n.Attr = append(n.Attr, html.Attribute{Key: "style", Val: decls})
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

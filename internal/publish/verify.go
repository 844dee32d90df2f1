package publish

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
)

// VerifyDocs checks that the built documentation tree looks publishable: it
// must contain a parseable index.html. Returns the document title when one
// is present.
func VerifyDocs(docsDir string) (string, error) {
	indexPath := filepath.Join(docsDir, "index.html")
	file, err := os.Open(filepath.Clean(indexPath))
	if err != nil {
		return "", fmt.Errorf("documentation tree has no index.html: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	doc, err := html.Parse(file)
	if err != nil {
		return "", fmt.Errorf("failed to parse index.html: %w", err)
	}

	return documentTitle(doc), nil
}

// documentTitle walks the parsed document for the first <title> text.
func documentTitle(doc *html.Node) string {
	var title string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if title != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "title" {
			if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				title = strings.TrimSpace(n.FirstChild.Data)
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return title
}

package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const (
	defaultTitle      = "Scraped Content"
	contextTextLength = 5000
	truncatedSuffix   = "\n...(content truncated)"
)

var (
	noiseSelector    = "script, style, header, footer, nav"
	contentSelectors = []string{"article", "main", ".content", "#content", ".post", ".article"}
)

// parseHTML parses body and strips elements that never carry page content.
func parseHTML(body string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	doc.Find(noiseSelector).Remove()
	return doc, nil
}

func pageTitle(doc *goquery.Document) string {
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		return defaultTitle
	}
	return title
}

// extractText flattens the document into one phrase per line. When a main
// content element exists its text leads, followed by the start of the full text.
func extractText(doc *goquery.Document) string {
	text := cleanText(doc.Text())

	var main string
	for _, selector := range contentSelectors {
		if sel := doc.Find(selector).First(); sel.Length() > 0 {
			main = strippedText(sel.Nodes[0])
			break
		}
	}
	if main != "" {
		text = main + "\n\n" + truncateRunes(text, contextTextLength)
	}
	return text
}

// cleanText splits text into lines and double-space separated phrases,
// trims each one and drops the blanks.
func cleanText(text string) string {
	var chunks []string
	for _, line := range splitLines(text) {
		for _, phrase := range strings.Split(strings.TrimSpace(line), "  ") {
			if phrase = strings.TrimSpace(phrase); phrase != "" {
				chunks = append(chunks, phrase)
			}
		}
	}
	return strings.Join(chunks, "\n")
}

func splitLines(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		switch r {
		case '\n', '\r', '\v', '\f', 0x1c, 0x1d, 0x1e, 0x85, 0x2028, 0x2029:
			return true
		}
		return false
	})
}

// strippedText concatenates every descendant text node, each trimmed.
func strippedText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(strings.TrimSpace(n.Data))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// limitContent cuts text to max characters and marks the cut.
func limitContent(text string, max int) string {
	if max <= 0 {
		return text
	}
	cut := truncateRunes(text, max)
	if len(cut) == len(text) {
		return text
	}
	return cut + truncatedSuffix
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// isLikelyText checks if content is likely text (not binary).
func isLikelyText(data []byte) bool {
	check := data
	if len(check) > 512 {
		check = check[:512]
	}
	for _, b := range check {
		if b == 0 {
			return false
		}
	}
	return true
}

// Package tracking rewrites outgoing HTML for open and click tracking and
// records the resulting events.
package tracking

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Endpoint path prefixes served by the HTTP boundary
const (
	OpenPath  = "/track/open/"
	ClickPath = "/track/click/"
)

// OpenURL is the pixel address for a send
func OpenURL(baseURL string, sendID uint) string {
	return fmt.Sprintf("%s%s%d", strings.TrimRight(baseURL, "/"), OpenPath, sendID)
}

// ClickURL routes target through the click endpoint for a send
func ClickURL(baseURL string, sendID uint, target string) string {
	return fmt.Sprintf("%s%s%d?url=%s", strings.TrimRight(baseURL, "/"), ClickPath, sendID, url.QueryEscape(target))
}

// InjectTracking rewrites absolute http(s) anchors through the click
// endpoint and appends a 1x1 open pixel as the last element of the body.
// mailto:, tel:, in-page anchors and relative links keep their href.
// Links and pixels that already point at the tracking endpoints are left
// alone, so injecting twice yields the same document.
//
// Input without an <html> element is parsed as a body fragment and
// rendered back as one, so leading <style> or <meta> elements stay where
// the author put them.
func InjectTracking(markup string, sendID uint, baseURL string) (string, error) {
	if strings.Contains(strings.ToLower(markup), "<html") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
		if err != nil {
			return "", fmt.Errorf("failed to parse html: %w", err)
		}
		rewrite(doc.Selection, doc.Find("body"), sendID, baseURL)
		out, err := doc.Html()
		if err != nil {
			return "", fmt.Errorf("failed to render html: %w", err)
		}
		return out, nil
	}

	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(markup), body)
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}
	for _, n := range nodes {
		body.AppendChild(n)
	}

	frag := goquery.NewDocumentFromNode(body)
	rewrite(frag.Selection, frag.Selection, sendID, baseURL)
	out, err := frag.Html()
	if err != nil {
		return "", fmt.Errorf("failed to render html: %w", err)
	}
	return out, nil
}

func rewrite(root, body *goquery.Selection, sendID uint, baseURL string) {
	root.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if !trackable(href) {
			return
		}
		s.SetAttr("href", ClickURL(baseURL, sendID, href))
	})

	hasPixel := false
	root.Find("img[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src, _ := s.Attr("src")
		hasPixel = strings.Contains(src, OpenPath)
		return !hasPixel
	})

	if !hasPixel {
		body.AppendHtml(fmt.Sprintf(
			`<img src="%s" width="1" height="1" alt="" style="display:block;border:0;"/>`,
			OpenURL(baseURL, sendID)))
	}
}

// trackable reports whether href is an absolute web link the click
// endpoint can redirect to
func trackable(href string) bool {
	if href == "" || strings.Contains(href, ClickPath) {
		return false
	}
	u, err := url.Parse(href)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

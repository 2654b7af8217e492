package webcrawl

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// imageRef is one extracted image reference plus whatever hints the markup
// carried about it.
type imageRef struct {
	url    string
	title  string
	width  int
	height int
}

// pageContent is everything the crawler wants from one fetched page. Both
// slices preserve document order, which makes frontier growth deterministic
// for a given page.
type pageContent struct {
	images []imageRef
	links  []string
}

var cssBackgroundPattern = regexp.MustCompile(`(?i)background-image:\s*url\(["']?([^"')\s]+)["']?\)`)

// extractPage pulls image references and same-document anchor links out of the
// decoded HTML. Image references come from img tags (including lazy-loading
// attributes), picture sources, and inline CSS background-image declarations.
func extractPage(html string, base *url.URL) (pageContent, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return pageContent{}, err
	}

	var content pageContent
	seenImages := make(map[string]struct{})

	addImage := func(ref imageRef) {
		if ref.url == "" || !isLikelyImageURL(ref.url) {
			return
		}
		if _, ok := seenImages[ref.url]; ok {
			return
		}
		seenImages[ref.url] = struct{}{}
		content.images = append(content.images, ref)
	}

	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		src := firstAttr(sel, "src", "data-src", "data-lazy-src")
		abs := resolveRef(src, base)
		if abs == "" {
			return
		}
		title := sel.AttrOr("alt", "")
		if title == "" {
			title = sel.AttrOr("title", "")
		}
		addImage(imageRef{
			url:    abs,
			title:  title,
			width:  intAttr(sel, "width"),
			height: intAttr(sel, "height"),
		})
	})

	doc.Find("picture source[srcset]").Each(func(_ int, sel *goquery.Selection) {
		for _, candidate := range parseSrcset(sel.AttrOr("srcset", "")) {
			addImage(imageRef{url: resolveRef(candidate, base)})
		}
	})

	for _, match := range cssBackgroundPattern.FindAllStringSubmatch(html, -1) {
		addImage(imageRef{url: resolveRef(match[1], base)})
	}

	seenLinks := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		abs := resolveRef(sel.AttrOr("href", ""), base)
		if abs == "" {
			return
		}
		normalized, err := normalizeURL(abs)
		if err != nil {
			return
		}
		if _, ok := seenLinks[normalized]; ok {
			return
		}
		seenLinks[normalized] = struct{}{}
		content.links = append(content.links, normalized)
	})

	return content, nil
}

// parseSrcset splits a srcset value ("url 1x, url 2x" or "url 100w, ...") into
// its URL components.
func parseSrcset(srcset string) []string {
	var urls []string
	for _, part := range strings.Split(srcset, ",") {
		fields := strings.Fields(strings.TrimSpace(part))
		if len(fields) > 0 {
			urls = append(urls, fields[0])
		}
	}
	return urls
}

func firstAttr(sel *goquery.Selection, names ...string) string {
	for _, name := range names {
		if v, ok := sel.Attr(name); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func intAttr(sel *goquery.Selection, name string) int {
	v, err := strconv.Atoi(strings.TrimSpace(sel.AttrOr(name, "")))
	if err != nil || v < 0 {
		return 0
	}
	return v
}

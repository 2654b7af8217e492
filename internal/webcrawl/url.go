package webcrawl

import (
	"fmt"
	"net/url"
	"strings"
)

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".svg"}

var imagePathKeywords = []string{"image", "img", "photo", "picture", "pic"}

// normalizeURL standardizes a URL so the frontier and the seen-URL set do not
// hold the same page twice under different spellings. It lowercases the scheme
// and host, strips default ports and fragments, and sorts query parameters.
func normalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.Scheme == "http" && strings.HasSuffix(u.Host, ":80") {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" && strings.HasSuffix(u.Host, ":443") {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Fragment = ""

	q := u.Query()
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// resolveRef turns a markup reference into an absolute http(s) URL relative to
// base. Data URIs, PDFs, and unsupported schemes resolve to "".
func resolveRef(ref string, base *url.URL) string {
	ref = strings.TrimSpace(strings.SplitN(ref, "#", 2)[0])
	if ref == "" || strings.HasPrefix(ref, "data:") || strings.HasSuffix(strings.ToLower(ref), ".pdf") {
		return ""
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(parsed)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	abs.Fragment = ""
	return abs.String()
}

// isLikelyImageURL reports whether a URL plausibly points at an image, by
// extension or by an image-flavored path keyword for extensionless CDN URLs.
func isLikelyImageURL(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	path := strings.ToLower(parsed.Path)
	for _, ext := range imageExtensions {
		if strings.Contains(path, ext) {
			return true
		}
	}
	for _, keyword := range imagePathKeywords {
		if strings.Contains(path, keyword) {
			return true
		}
	}
	return false
}

func sameHost(a, b *url.URL) bool {
	if a == nil || b == nil {
		return false
	}
	return strings.EqualFold(a.Hostname(), b.Hostname())
}

// domainLabel extracts a short source tag from a page URL, e.g.
// "https://www.deprintedbox.com/g" -> "deprintedbox".
func domainLabel(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Hostname() == "" {
		return "website"
	}
	host := strings.ToLower(parsed.Hostname())
	host = strings.TrimPrefix(host, "www.")
	if i := strings.IndexByte(host, '.'); i > 0 {
		return host[:i]
	}
	return host
}

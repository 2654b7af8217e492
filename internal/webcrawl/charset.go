package webcrawl

import (
	"mime"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding/htmlindex"
)

// Target sites are frequently non-UTF-8 (GB-series Chinese encodings above
// all), so page bytes go through a recovery chain: the charset declared in the
// Content-Type header, a charset= pattern in the first bytes of the document,
// statistical detection, a fixed list of common encodings, and finally lossy
// UTF-8.
var fallbackCharsets = []string{"gb18030", "big5", "shift_jis", "euc-kr", "windows-1252"}

var metaCharsetPattern = regexp.MustCompile(`(?i)charset\s*=\s*["']?([a-zA-Z0-9_.:-]+)`)

const metaSniffWindow = 1024

// decodeHTML converts raw page bytes to a UTF-8 string.
func decodeHTML(body []byte, contentType string) string {
	if name := headerCharset(contentType); name != "" {
		if s, ok := decodeAs(body, name); ok {
			return s
		}
	}

	if name := sniffMetaCharset(body); name != "" {
		if s, ok := decodeAs(body, name); ok {
			return s
		}
	}

	if result, err := chardet.NewHtmlDetector().DetectBest(body); err == nil && result != nil {
		if s, ok := decodeAs(body, result.Charset); ok {
			return s
		}
	}

	for _, name := range fallbackCharsets {
		if s, ok := decodeAs(body, name); ok {
			return s
		}
	}

	return strings.ToValidUTF8(string(body), string(utf8.RuneError))
}

func headerCharset(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return params["charset"]
}

func sniffMetaCharset(body []byte) string {
	window := body
	if len(window) > metaSniffWindow {
		window = window[:metaSniffWindow]
	}
	match := metaCharsetPattern.FindSubmatch(window)
	if match == nil {
		return ""
	}
	return string(match[1])
}

// decodeAs decodes body with the named encoding, rejecting results that still
// contain invalid UTF-8.
func decodeAs(body []byte, name string) (string, bool) {
	enc, err := htmlindex.Get(name)
	if err != nil || enc == nil {
		return "", false
	}
	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return "", false
	}
	if !utf8.Valid(decoded) {
		return "", false
	}
	return string(decoded), true
}

package webcrawl

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/htmlindex"
)

func encodeAs(t *testing.T, s, charset string) []byte {
	t.Helper()
	enc, err := htmlindex.Get(charset)
	require.NoError(t, err)
	out, err := enc.NewEncoder().Bytes([]byte(s))
	require.NoError(t, err)
	return out
}

func TestDecodeHTML_HeaderCharset(t *testing.T) {
	t.Parallel()

	page := "<html><body>纸盒包装</body></html>"
	body := encodeAs(t, page, "gb18030")

	got := decodeHTML(body, "text/html; charset=gb18030")
	assert.Equal(t, page, got)
}

func TestDecodeHTML_MetaCharset(t *testing.T) {
	t.Parallel()

	page := `<html><head><meta charset="gb18030"></head><body>礼品盒</body></html>`
	body := encodeAs(t, page, "gb18030")

	// No charset in the header; the meta declaration carries it.
	got := decodeHTML(body, "text/html")
	assert.Equal(t, page, got)
}

func TestDecodeHTML_UTF8Passthrough(t *testing.T) {
	t.Parallel()

	page := "<html><body>plain ascii page</body></html>"
	got := decodeHTML([]byte(page), "text/html; charset=utf-8")
	assert.Equal(t, page, got)
}

func TestDecodeHTML_BogusHeaderFallsThrough(t *testing.T) {
	t.Parallel()

	page := "<html><body>hello</body></html>"
	got := decodeHTML([]byte(page), "text/html; charset=no-such-charset")
	assert.Contains(t, got, "hello")
}

func TestDecodeHTML_AlwaysValidUTF8(t *testing.T) {
	t.Parallel()

	// Arbitrary bytes that are not valid in any common encoding still come
	// back as a usable UTF-8 string.
	garbage := []byte{0xfe, 0xff, 0x00, 0x81, 0xad, 0xde}
	got := decodeHTML(garbage, "")
	assert.True(t, utf8.ValidString(got))
}

func TestSniffMetaCharset(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "gb2312", sniffMetaCharset([]byte(`<meta http-equiv="Content-Type" content="text/html; charset=gb2312">`)))
	assert.Equal(t, "UTF-8", sniffMetaCharset([]byte(`<meta charset="UTF-8">`)))
	assert.Empty(t, sniffMetaCharset([]byte("<html><body>no declaration</body></html>")))

	// Declarations beyond the sniff window are ignored.
	late := strings.Repeat(" ", metaSniffWindow) + `<meta charset="gb2312">`
	assert.Empty(t, sniffMetaCharset([]byte(late)))
}

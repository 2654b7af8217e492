package webcrawl

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases scheme and host", "HTTP://Example.COM/Path", "http://example.com/Path"},
		{"strips default http port", "http://example.com:80/a", "http://example.com/a"},
		{"strips default https port", "https://example.com:443/a", "https://example.com/a"},
		{"keeps explicit port", "http://example.com:8080/a", "http://example.com:8080/a"},
		{"drops fragment", "https://example.com/a#section", "https://example.com/a"},
		{"sorts query params", "https://example.com/a?z=1&a=2", "https://example.com/a?a=2&z=1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := normalizeURL(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveRef(t *testing.T) {
	t.Parallel()

	base, err := url.Parse("https://example.com/gallery/")
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/gallery/a.jpg", resolveRef("a.jpg", base))
	assert.Equal(t, "https://example.com/img/b.png", resolveRef("/img/b.png", base))
	assert.Equal(t, "https://cdn.example.net/c.webp", resolveRef("https://cdn.example.net/c.webp", base))
	assert.Equal(t, "https://example.com/gallery/d.jpg", resolveRef("d.jpg#ignore", base))

	assert.Empty(t, resolveRef("", base))
	assert.Empty(t, resolveRef("   ", base))
	assert.Empty(t, resolveRef("data:image/png;base64,AAAA", base))
	assert.Empty(t, resolveRef("manual.PDF", base))
	assert.Empty(t, resolveRef("mailto:someone@example.com", base))
	assert.Empty(t, resolveRef("javascript:void(0)", base))
}

func TestIsLikelyImageURL(t *testing.T) {
	t.Parallel()

	assert.True(t, isLikelyImageURL("https://example.com/a.jpg"))
	assert.True(t, isLikelyImageURL("https://example.com/a.JPG?size=large"))
	assert.True(t, isLikelyImageURL("https://example.com/assets/photo/12345"))
	assert.True(t, isLikelyImageURL("https://cdn.example.com/img/12345"))

	assert.False(t, isLikelyImageURL("https://example.com/about.html"))
	assert.False(t, isLikelyImageURL("https://example.com/contact"))
}

func TestDomainLabel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "deprintedbox", domainLabel("https://www.deprintedbox.com/gallery"))
	assert.Equal(t, "example", domainLabel("http://example.org/x"))
	assert.Equal(t, "localhost", domainLabel("http://localhost:8080/x"))
	assert.Equal(t, "website", domainLabel("://bad"))
}

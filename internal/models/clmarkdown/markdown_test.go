package clmarkdown

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConvertMarkdownToHTML(t *testing.T) {
	tests := []struct {
		name     string
		markdown string
		contains []string
	}{
		{"gras", "**Mug** robuste", []string{"<strong>Mug</strong>"}},
		{"liste", "- 350 ml\n- lavable", []string{"<ul>", "<li>350 ml</li>"}},
		{"lien externe", "[site](https://example.com)", []string{`target="_blank"`, `rel="noopener noreferrer"`}},
		{"html brut ignoré", "<script>alert(1)</script>", []string{"<!-- raw HTML omitted -->"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := string(ConvertMarkdownToHTML(tt.markdown))
			for _, c := range tt.contains {
				assert.Contains(t, got, c)
			}
		})
	}
}

func TestTrimWords(t *testing.T) {
	assert.Equal(t, "un deux", TrimWords("  un   deux ", 5))
	assert.Equal(t, "un deux...", TrimWords("un deux trois", 2))
	assert.Equal(t, "", TrimWords("", 3))
}

func TestExcerpt(t *testing.T) {
	got := Excerpt("Un mug **robuste** pour le bureau", 3)
	assert.Equal(t, "Un mug robuste...", got)
	assert.False(t, strings.Contains(got, "*"))
}

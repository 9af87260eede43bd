package wikilink

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "empty text",
			text: "",
			want: nil,
		},
		{
			name: "no links",
			text: "plain text without references",
			want: nil,
		},
		{
			name: "simple link is case folded",
			text: "met with [[Alice Johnson]] today",
			want: []string{"alice johnson"},
		},
		{
			name: "duplicates removed",
			text: "[[Go]] and [[go]] and [[GO]]",
			want: []string{"go"},
		},
		{
			name: "aliased link uses target",
			text: "see [[the big launch|Project Apollo]]",
			want: []string{"project apollo"},
		},
		{
			name: "mixed simple and aliased",
			text: "[[Zeta]] then [[display|Alpha]] then [[Beta]]",
			want: []string{"alpha", "beta", "zeta"},
		},
		{
			name: "surrounding whitespace trimmed",
			text: "[[  Spaced Out  ]]",
			want: []string{"spaced out"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(tt.text))
		})
	}
}

func TestExtractIsIdempotent(t *testing.T) {
	text := "notes on [[Kubernetes]] and [[k8s|Kubernetes]] plus [[Helm]]"
	first := Extract(text)
	second := Extract(text)
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"helm", "kubernetes"}, first)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "alice johnson", Normalize("  Alice   Johnson!  "))
	assert.Equal(t, "c-3po", Normalize("C-3PO"))
	assert.Equal(t, "", Normalize("!!!"))
}

func TestIsValid(t *testing.T) {
	assert.True(t, IsValid("Alice"))
	assert.True(t, IsValid("go-routines"))
	assert.False(t, IsValid(""))
	assert.False(t, IsValid("a"))
	assert.False(t, IsValid("12345"))
	assert.False(t, IsValid(string(make([]byte, 200))))
}

func TestToMarkdown(t *testing.T) {
	got := ToMarkdown("see [[Alice]] and [[bob's page|Bob]]", "/memory/entity/{entity}")
	assert.Equal(t, "see [Alice](/memory/entity/alice) and [bob's page](/memory/entity/bob)", got)
}

func TestRenderHTML(t *testing.T) {
	html, err := RenderHTML("met [[Alice]]", "/memory/entity/{entity}")
	assert.NoError(t, err)
	assert.Contains(t, html, `<a href="/memory/entity/alice">Alice</a>`)
}

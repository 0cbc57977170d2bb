package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase", "LIMA", "lima"},
		{"accents stripped", "Junín", "junin"},
		{"enye stripped", "Cañete", "canete"},
		{"diaeresis stripped", "Virú", "viru"},
		{"punctuation to space", "San Juan de Lurigancho, Lima", "san juan de lurigancho lima"},
		{"separators collapsed", "Huancayo -  Junín / Perú", "huancayo junin peru"},
		{"whitespace collapsed", "  El   Tambo  ", "el tambo"},
		{"digits kept", "Km 82", "km 82"},
		{"empty", "", ""},
		{"only punctuation", "¡¿-!", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalize_MatchesGazetteerAndArticleSides(t *testing.T) {
	// The index side registers "Comas, Lima, Perú"; the article side says
	// "en COMAS". Both sides must meet on the same normalized token.
	assert.Equal(t, "comas lima peru", Normalize("Comas, Lima, Perú"))
	assert.Contains(t, Tokenize("Balacera en COMAS deja dos heridos"), "comas")
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"balacera", "en", "comas"}, Tokenize("Balacera en Comas"))
	assert.Nil(t, Tokenize("   "))
}

func TestNGrams(t *testing.T) {
	tokens := []string{"san", "juan", "de", "lurigancho"}

	assert.Equal(t, []string{"san", "juan", "de", "lurigancho"}, NGrams(tokens, 1))
	assert.Equal(t, []string{"san juan", "juan de", "de lurigancho"}, NGrams(tokens, 2))
	assert.Equal(t, []string{"san juan de", "juan de lurigancho"}, NGrams(tokens, 3))
	assert.Nil(t, NGrams(tokens, 5))
	assert.Nil(t, NGrams(nil, 1))
	assert.Nil(t, NGrams(tokens, 0))
}

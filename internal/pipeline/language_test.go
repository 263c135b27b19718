package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLanguage(t *testing.T) {
	for _, lang := range Languages() {
		got, err := ParseLanguage(string(lang))
		require.NoError(t, err)
		assert.Equal(t, lang, got)
	}

	got, err := ParseLanguage("  chinese ")
	require.NoError(t, err)
	assert.Equal(t, Chinese, got)

	_, err = ParseLanguage("Latin")
	assert.ErrorIs(t, err, ErrUnknownLanguage)
}

func TestLanguagesOrder(t *testing.T) {
	assert.Equal(t, []Language{English, Spanish, French, German, Chinese}, Languages())

	langs := Languages()
	langs[0] = "Latin"
	assert.Equal(t, English, Languages()[0])
}

func TestPrompts(t *testing.T) {
	assert.Equal(t,
		"Convert the lab report into a markdown table. You should format this in the form of 'measurement, measuredvalue, low, high'. Here is the Glucose 95 mg/dL",
		StructuringPrompt("Glucose 95 mg/dL"))
	assert.Equal(t, "translate  this to French", TranslationPrompt("", French))
	assert.Equal(t, "translate hola this to English", TranslationPrompt("hola", English))
}

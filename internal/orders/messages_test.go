package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestMatchLanguage(t *testing.T) {
	cases := []struct {
		header string
		want   language.Tag
	}{
		{"", language.Spanish},
		{"es", language.Spanish},
		{"es-ES,es;q=0.9", language.Spanish},
		{"en", language.English},
		{"en-GB,en;q=0.8,es;q=0.5", language.English},
		{"fr", language.Spanish},
		{"de-DE,fr;q=0.7", language.Spanish},
		{"not a header ;;;", language.Spanish},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, MatchLanguage(tc.header), "header %q", tc.header)
	}
}

func TestMessageRendersBothLanguages(t *testing.T) {
	assert.Equal(t, "El pedido está cerrado", Message(CodeSaleClosed, language.Spanish))
	assert.Equal(t, "Ordering is closed", Message(CodeSaleClosed, language.English))
	assert.Equal(t, "¡El reparto ha comenzado!", Message(CodeDeliveryStarted, language.Spanish))
}

func TestMessageFallsBackToSpanish(t *testing.T) {
	// Any non-English tag renders the Spanish text.
	assert.Equal(t, "Pedido actualizado", Message(CodeOrderUpdated, language.French))
}

func TestMessageUnknownCodeIsEmpty(t *testing.T) {
	assert.Empty(t, Message("no_such_code", language.Spanish))
}

func TestEveryCodeHasBothTexts(t *testing.T) {
	codes := []string{
		CodeSaleClosed, CodeDeliveryInProgress, CodeSaleCompleted,
		CodeOrderUpdated, CodeOrderCleared, CodeInvalidToken,
		CodeSaleNotFound, CodeSaleClosedNoModify, CodeProductNotFound,
		CodeDeliveryStarted, CodeNewSaleAvailable,
	}
	for _, code := range codes {
		assert.NotEmpty(t, Message(code, language.Spanish), code)
		assert.NotEmpty(t, Message(code, language.English), code)
	}
}

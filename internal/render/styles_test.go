package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStyledSymbol(t *testing.T) {
	for _, symbol := range []string{SymbolExec, SymbolSuccess, SymbolError, SymbolSystemMessage, "?"} {
		t.Run(symbol, func(t *testing.T) {
			// Styled output varies with the color profile; the symbol itself must survive
			assert.Contains(t, StyledSymbol(symbol), symbol)
		})
	}
}

func TestSymbolConstants(t *testing.T) {
	assert.Equal(t, "▶", SymbolExec)
	assert.Equal(t, "✓", SymbolSuccess)
	assert.Equal(t, "✗", SymbolError)
	assert.Equal(t, "→", SymbolSystemMessage)
}

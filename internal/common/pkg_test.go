package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQualify(t *testing.T) {
	assert.Equal(t, "shop.Order", Qualify("docmapper/examples/shop", "Order"))
	assert.Equal(t, "int", Qualify("", "int"))
}

func TestSplitFuncName(t *testing.T) {
	tests := []struct {
		full, alias, name string
	}{
		{"docmapper/examples/shop.(*Order).Check", "shop", "(*Order).Check"},
		{"github.com/acme/hooks.Stamp.func1", "hooks", "Stamp.func1"},
		{"main.run", "main", "run"},
		{"", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.full, func(t *testing.T) {
			alias, name := SplitFuncName(tt.full)
			assert.Equal(t, tt.alias, alias)
			assert.Equal(t, tt.name, name)
		})
	}
}

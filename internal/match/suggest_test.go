package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"reference", "refrence", 1},
		{"idonly", "idOnly", 1},
		{"héllo", "hello", 1},
	}

	for _, tt := range tests {
		t.Run(tt.a+"/"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, Levenshtein(tt.a, tt.b))
			assert.Equal(t, tt.want, Levenshtein(tt.b, tt.a))
		})
	}
}

func TestSuggest(t *testing.T) {
	known := []string{"id", "notsaved", "final", "reference", "idonly", "lazy", "alsoload"}

	got, ok := Suggest("refrence", known)
	assert.True(t, ok)
	assert.Equal(t, "reference", got)

	got, ok = Suggest("not_saved", known)
	assert.True(t, ok)
	assert.Equal(t, "notsaved", got)

	_, ok = Suggest("completelyunrelated", known)
	assert.False(t, ok)

	_, ok = Suggest("x", nil)
	assert.False(t, ok)
}

func TestRank_Order(t *testing.T) {
	ranked := Rank("count", []string{"counts", "amount", "count"})
	assert.Equal(t, "count", ranked[0].Name)
	assert.Equal(t, 1.0, ranked[0].Score)
	assert.Equal(t, "counts", ranked[1].Name)
}

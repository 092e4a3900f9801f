package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "Inception", "Inception", 1},
		{"case only", "THE GODFATHER", "the godfather", 1},
		{"both empty", "", "", 1},
		{"empty vs text", "", "anything-nonempty", 0},
		{"text vs empty", "anything-nonempty", "", 0},
		{"no overlap", "abc", "xyz", 0},
		{"sequel suffix", "Guardians of the Galaxy", "Guardians of the Galaxy Vol. 2", 46.0 / 53.0},
		{"truncated source", "Guardians of the ", "Guardians of the Galaxy", 34.0 / 40.0},
		{"truncated vs sequel", "Guardians of the ", "Guardians of the Galaxy Vol. 2", 34.0 / 47.0},
		{"shifted blocks", "abcd", "bcde", 0.75},
		{"punctuation kept", "Spider-Man: No Way Home", "Spider Man: No Way Home", 44.0 / 46.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, Score(tt.a, tt.b), 1e-9)
		})
	}
}

func TestScore_Symmetric(t *testing.T) {
	t.Parallel()

	pairs := [][2]string{
		{"tide", "diet"},
		{"Guardians of the Galaxy", "Guardians of the Galaxy Vol. 2"},
		{"La casa de papel", "Money Heist"},
		{"Amélie", "amelie"},
		{"Se7en", "Seven"},
		{"", "x"},
	}
	for _, p := range pairs {
		assert.Equal(t, Score(p[0], p[1]), Score(p[1], p[0]), "%q vs %q", p[0], p[1])
	}

	// Plain block matching would give 0.25 one way and 0.5 the other.
	assert.InDelta(t, 0.5, Score("tide", "diet"), 1e-9)
}

func TestScore_SelfIsOne(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"x", "Léon: The Professional", "千と千尋の神隠し", "  spaced  ", "ÉCOLE"} {
		assert.Equal(t, 1.0, Score(s, s))
	}
	assert.Equal(t, 1.0, Score("ÉCOLE", "école"))
}

func TestScore_Range(t *testing.T) {
	t.Parallel()

	for _, p := range [][2]string{{"a", "ab"}, {"The Office", "The Office (US)"}, {"Dark", "Darkness"}} {
		r := Score(p[0], p[1])
		assert.GreaterOrEqual(t, r, 0.0)
		assert.LessOrEqual(t, r, 1.0)
	}
}

func TestFold_OnlyLowercases(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "the lord of the rings: the two towers ", Fold("The Lord of the Rings: The Two Towers "))
	assert.Equal(t, "amélie", Fold("Amélie"))
}

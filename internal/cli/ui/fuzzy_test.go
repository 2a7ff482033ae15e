package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"abc", "abc", 0},
		{"kitten", "sitting", 3},
		{"saturday", "sunday", 3},
		{"rigging.Actr", "rigging.Actor", 1},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, LevenshteinDistance(tt.a, tt.b))
			assert.Equal(t, tt.want, LevenshteinDistance(tt.b, tt.a))
		})
	}
}

func TestFindSimilar(t *testing.T) {
	types := []string{"rigging.Actor", "rigging.ActiveActor", "rigging.Rig", "rigging.FK"}

	assert.Equal(t, []string{"rigging.Actor"}, FindSimilar("rigging.actr", types, 3))
	assert.Equal(t, []string{"rigging.Rig", "rigging.FK"}, FindSimilar("rigging.Ri", types, 3))
	assert.Equal(t, []string{"rigging.Rig"}, FindSimilar("rigging.Ri", types, 1))
	assert.Empty(t, FindSimilar("skeleton", types, 3))
	assert.Empty(t, FindSimilar("rigging.Rig", nil, 3))
}

package kinematic

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVector_ClampLength(t *testing.T) {
	tests := []struct {
		name string
		v    Vector
		max  float64
		want Vector
	}{
		{
			name: "under the limit is unchanged",
			v:    Vector{X: 3, Y: 4},
			max:  10,
			want: Vector{X: 3, Y: 4},
		},
		{
			name: "over the limit is scaled down",
			v:    Vector{X: 30, Y: 40},
			max:  10,
			want: Vector{X: 6, Y: 8},
		},
		{
			name: "zero vector stays zero",
			v:    Vector{},
			max:  10,
			want: Vector{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.v.ClampLength(tt.max)
			assert.InDelta(t, tt.want.X, got.X, 1e-9)
			assert.InDelta(t, tt.want.Y, got.Y, 1e-9)
		})
	}
}

func TestHeading(t *testing.T) {
	right := Heading(0)
	assert.InDelta(t, 1, right.X, 1e-9)
	assert.InDelta(t, 0, right.Y, 1e-9)

	down := Heading(math.Pi / 2)
	assert.InDelta(t, 0, down.X, 1e-9)
	assert.InDelta(t, 1, down.Y, 1e-9)

	assert.InDelta(t, 1, Heading(1.2345).Length(), 1e-9)
}

func TestDisplacement(t *testing.T) {
	assert.Equal(t, 10.0, Displacement(100, 0.1, 0))
	assert.Equal(t, 15.0, Displacement(100, 0.1, 1000))
}

package getsafe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	payload := map[string]any{"a": "x", "b": 1.0}

	assert.Equal(t, "x", String(payload, "a"))
	assert.Equal(t, "", String(payload, "b"))
	assert.Equal(t, "", String(payload, "missing"))
	assert.Equal(t, "", String(nil, "a"))
}

func TestInt(t *testing.T) {
	payload := map[string]any{"f": 3.0, "i": 4, "s": "5"}

	assert.Equal(t, 3, Int(payload, "f"))
	assert.Equal(t, 4, Int(payload, "i"))
	assert.Equal(t, 0, Int(payload, "s"))
	assert.Equal(t, 0, Int(payload, "missing"))
}

func TestFloats(t *testing.T) {
	payload := map[string]any{
		"f32":   []float32{1, 2},
		"f64":   []float64{3, 4},
		"any":   []any{5.0, 6.0},
		"mixed": []any{7.0, "x"},
		"s":     "nope",
	}

	assert.Equal(t, []float32{1, 2}, Floats(payload, "f32"))
	assert.Equal(t, []float32{3, 4}, Floats(payload, "f64"))
	assert.Equal(t, []float32{5, 6}, Floats(payload, "any"))
	assert.Nil(t, Floats(payload, "mixed"))
	assert.Nil(t, Floats(payload, "s"))
	assert.Nil(t, Floats(payload, "missing"))
}

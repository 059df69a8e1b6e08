// Package getsafe reads typed values out of decoded JSON payloads.
package getsafe

func String(payload map[string]any, key string) string {
	if v, ok := payload[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Int accepts the float64 that encoding/json produces for numbers.
func Int(payload map[string]any, key string) int {
	if v, ok := payload[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		case int64:
			return int(n)
		}
	}
	return 0
}

// Floats reads a list of numbers, as decoded JSON or returned by a driver.
func Floats(payload map[string]any, key string) []float32 {
	v, ok := payload[key]
	if !ok {
		return nil
	}

	switch list := v.(type) {
	case []float32:
		return append([]float32(nil), list...)
	case []float64:
		out := make([]float32, len(list))
		for i, f := range list {
			out[i] = float32(f)
		}
		return out
	case []any:
		out := make([]float32, 0, len(list))
		for _, item := range list {
			f, ok := item.(float64)
			if !ok {
				return nil
			}
			out = append(out, float32(f))
		}
		return out
	}

	return nil
}

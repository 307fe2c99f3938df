package tools

// Argument accessors for handlers. Values arrive from JSON, so numbers
// are float64; these smooth over that and fall back to a default when
// the argument is absent or the wrong shape. Schema validation has
// already rejected genuinely bad values for declared parameters.

// StringArg returns args[key] as a string, or fallback.
func StringArg(args map[string]any, key, fallback string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return fallback
}

// IntArg returns args[key] as an int, or fallback.
func IntArg(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	}
	return fallback
}

// FloatArg returns args[key] as a float64, or fallback.
func FloatArg(args map[string]any, key string, fallback float64) float64 {
	switch v := args[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return fallback
}

// BoolArg returns args[key] as a bool, or fallback.
func BoolArg(args map[string]any, key string, fallback bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return fallback
}

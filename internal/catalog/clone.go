package catalog

// CloneMap deep-copies a decoded configuration mapping.
// Params: source map with YAML/TOML decoded values.
// Returns: copy sharing no map or slice with src; nil for nil src.
func CloneMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	out := make(map[string]any, len(src))
	for key, value := range src {
		out[key] = CloneValue(value)
	}
	return out
}

// CloneValue deep-copies one decoded configuration value.
// Params: scalar, map, or slice value.
// Returns: copy with owned containers.
func CloneValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return CloneMap(typed)
	case map[any]any:
		out := make(map[any]any, len(typed))
		for key, item := range typed {
			out[key] = CloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = CloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), typed...)
	default:
		return value
	}
}

package embedder

import (
	"fmt"
	"strconv"
)

// Params keys understood by the built-in providers.
const (
	ParamAPIKey    = "api_key"
	ParamModel     = "model"
	ParamBaseURL   = "base_url"
	ParamRateLimit = "rate_limit" // requests per second, 0 = unlimited
	ParamDimension = "dimension"
	ParamCacheSize = "cache_size"
)

func paramString(params map[string]any, key string) string {
	switch v := params[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// paramFloat accepts the numeric shapes produced by JSON, viper and flags.
func paramFloat(params map[string]any, key string) (float64, error) {
	switch v := params[key].(type) {
	case nil:
		return 0, nil
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s=%q is not a number", ErrInvalidInput, key, v)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: %s has unsupported type %T", ErrInvalidInput, key, v)
	}
}

func paramInt(params map[string]any, key string) (int, error) {
	f, err := paramFloat(params, key)
	return int(f), err
}

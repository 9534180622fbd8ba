package tools

import (
	"fmt"

	"github.com/spf13/cast"
)

// Argument coercion helpers. MCP clients send loosely-typed JSON arguments
// (numbers arrive as float64, some clients stringify them), so handlers go
// through these instead of bare type assertions.

// StringArg extracts a required string argument
func StringArg(args map[string]interface{}, key string) (string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return "", fmt.Errorf("%s parameter is required", key)
	}
	val, err := cast.ToStringE(raw)
	if err != nil || val == "" {
		return "", fmt.Errorf("%s parameter is required", key)
	}
	return val, nil
}

// StringArgDefault extracts an optional string argument
func StringArgDefault(args map[string]interface{}, key, def string) (string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return def, nil
	}
	val, err := cast.ToStringE(raw)
	if err != nil {
		return "", fmt.Errorf("%s must be a string", key)
	}
	if val == "" {
		return def, nil
	}
	return val, nil
}

// Int64Arg extracts a required integer argument
func Int64Arg(args map[string]interface{}, key string) (int64, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return 0, fmt.Errorf("%s parameter is required", key)
	}
	val, err := cast.ToInt64E(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", key)
	}
	return val, nil
}

// IntArgDefault extracts an optional integer argument
func IntArgDefault(args map[string]interface{}, key string, def int) (int, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return def, nil
	}
	val, err := cast.ToIntE(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", key)
	}
	return val, nil
}

// BoolArgDefault extracts an optional boolean argument
func BoolArgDefault(args map[string]interface{}, key string, def bool) (bool, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return def, nil
	}
	val, err := cast.ToBoolE(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean", key)
	}
	return val, nil
}

// Int64SliceArg extracts a required array-of-numbers argument
func Int64SliceArg(args map[string]interface{}, key string) ([]int64, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, fmt.Errorf("%s parameter is required", key)
	}
	items, err := cast.ToSliceE(raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be an array of numbers", key)
	}
	vals := make([]int64, 0, len(items))
	for _, item := range items {
		val, err := cast.ToInt64E(item)
		if err != nil {
			return nil, fmt.Errorf("%s must be an array of numbers", key)
		}
		vals = append(vals, val)
	}
	return vals, nil
}

// StringSliceArg extracts an optional array-of-strings argument, nil when absent
func StringSliceArg(args map[string]interface{}, key string) ([]string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}
	vals, err := cast.ToStringSliceE(raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be an array of strings", key)
	}
	return vals, nil
}

// MapArg extracts an optional object argument, nil when absent
func MapArg(args map[string]interface{}, key string) (map[string]interface{}, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}
	val, err := cast.ToStringMapE(raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be an object", key)
	}
	return val, nil
}

// MapSliceArg extracts an optional array-of-objects argument, nil when absent
func MapSliceArg(args map[string]interface{}, key string) ([]map[string]interface{}, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}
	items, err := cast.ToSliceE(raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be an array of objects", key)
	}
	vals := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		val, err := cast.ToStringMapE(item)
		if err != nil {
			return nil, fmt.Errorf("%s must be an array of objects", key)
		}
		vals = append(vals, val)
	}
	return vals, nil
}

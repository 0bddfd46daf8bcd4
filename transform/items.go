package transform

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	apperrors "github.com/skillsenselab/streamkit/errors"
)

// ItemFunc transforms one item. The signature matches the stream map stage.
type ItemFunc func(context.Context, any) (any, error)

// ItemNames lists the valid item transform names.
var ItemNames = []string{
	"double", "square", "negate", "increment",
	"uppercase", "lowercase", "reverse", "trim",
	"stringify", "length",
}

// Item resolves a named item transform.
func Item(name string) (ItemFunc, error) {
	switch name {
	case "double":
		return numericItem(name, func(f float64) float64 { return f * 2 }), nil
	case "square":
		return numericItem(name, func(f float64) float64 { return f * f }), nil
	case "negate":
		return numericItem(name, func(f float64) float64 { return -f }), nil
	case "increment":
		return numericItem(name, func(f float64) float64 { return f + 1 }), nil
	case "uppercase":
		return stringItem(name, strings.ToUpper), nil
	case "lowercase":
		return stringItem(name, strings.ToLower), nil
	case "reverse":
		return stringItem(name, reverseString), nil
	case "trim":
		return stringItem(name, strings.TrimSpace), nil
	case "stringify":
		return func(_ context.Context, item any) (any, error) {
			return fmt.Sprintf("%v", item), nil
		}, nil
	case "length":
		return lengthItem, nil
	}
	return nil, unknownName("transform", name, ItemNames)
}

func numericItem(name string, fn func(float64) float64) ItemFunc {
	return func(_ context.Context, item any) (any, error) {
		f, err := toNumber(name, item)
		if err != nil {
			return nil, err
		}
		return fn(f), nil
	}
}

func stringItem(name string, fn func(string) string) ItemFunc {
	return func(_ context.Context, item any) (any, error) {
		s, err := toText(name, item)
		if err != nil {
			return nil, err
		}
		return fn(s), nil
	}
}

func lengthItem(_ context.Context, item any) (any, error) {
	switch v := item.(type) {
	case string:
		return float64(utf8.RuneCountInString(v)), nil
	case []any:
		return float64(len(v)), nil
	}
	return nil, fmt.Errorf("length: item %v (%T) has no length", item, item)
}

func reverseString(s string) string {
	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}

// toNumber coerces the numeric representations JSON decoding and Go callers
// produce.
func toNumber(name string, item any) (float64, error) {
	switch v := item.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	}
	return 0, fmt.Errorf("%s: item %v (%T) is not a number", name, item, item)
}

func toText(name string, item any) (string, error) {
	s, ok := item.(string)
	if !ok {
		return "", fmt.Errorf("%s: item %v (%T) is not a string", name, item, item)
	}
	return s, nil
}

func unknownName(kind, name string, valid []string) error {
	return apperrors.InvalidArgument(kind,
		fmt.Sprintf("unknown %s %q (valid: %s)", kind, name, strings.Join(valid, ", ")))
}

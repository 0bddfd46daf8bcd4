package transform

import (
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	apperrors "github.com/skillsenselab/streamkit/errors"
)

// FilterFunc decides whether an item is kept. The signature matches the
// stream filter stage.
type FilterFunc func(any) (bool, error)

// FilterNames lists the valid filter names. minLength takes a parameter,
// written minLength:N.
var FilterNames = []string{
	"even", "odd", "positive", "negative",
	"nonEmpty", "numeric", "alpha", "minLength:N",
}

// Filter resolves a named filter.
func Filter(name string) (FilterFunc, error) {
	if arg, ok := strings.CutPrefix(name, "minLength:"); ok {
		n, err := strconv.Atoi(arg)
		if err != nil || n < 0 {
			return nil, apperrors.InvalidArgument("filter", "minLength wants a non-negative integer, got "+arg)
		}
		return func(item any) (bool, error) {
			s, ok := item.(string)
			return ok && utf8.RuneCountInString(s) >= n, nil
		}, nil
	}

	switch name {
	case "even":
		return numericFilter(name, func(f float64) bool { return math.Mod(f, 2) == 0 }), nil
	case "odd":
		return numericFilter(name, func(f float64) bool { return math.Mod(math.Abs(f), 2) == 1 }), nil
	case "positive":
		return numericFilter(name, func(f float64) bool { return f > 0 }), nil
	case "negative":
		return numericFilter(name, func(f float64) bool { return f < 0 }), nil
	case "nonEmpty":
		return nonEmptyFilter, nil
	case "numeric":
		return func(item any) (bool, error) {
			switch v := item.(type) {
			case string:
				_, err := strconv.ParseFloat(v, 64)
				return err == nil, nil
			case float64, float32, int, int64:
				return true, nil
			}
			return false, nil
		}, nil
	case "alpha":
		return func(item any) (bool, error) {
			s, ok := item.(string)
			if !ok || s == "" {
				return false, nil
			}
			for _, r := range s {
				if !unicode.IsLetter(r) {
					return false, nil
				}
			}
			return true, nil
		}, nil
	}
	return nil, unknownName("filter", name, FilterNames)
}

func numericFilter(name string, fn func(float64) bool) FilterFunc {
	return func(item any) (bool, error) {
		f, err := toNumber(name, item)
		if err != nil {
			return false, err
		}
		return fn(f), nil
	}
}

// nonEmptyFilter is total: values without a notion of emptiness are kept.
func nonEmptyFilter(item any) (bool, error) {
	switch v := item.(type) {
	case nil:
		return false, nil
	case string:
		return v != "", nil
	case []any:
		return len(v) > 0, nil
	case map[string]any:
		return len(v) > 0, nil
	}
	return true, nil
}

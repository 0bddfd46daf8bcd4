package transform

import "fmt"

// Reducer folds a stream of items to one scalar. Init produces the seed,
// Fold is shaped for the stream reduce terminal, and Finish converts the
// accumulator into the reported result (mean divides, min and max of an
// empty stream become nil).
type Reducer struct {
	Init   func() any
	Fold   func(acc, item any) (any, error)
	Finish func(acc any) any
}

// ReducerNames lists the valid reducer names.
var ReducerNames = []string{"sum", "product", "min", "max", "count", "concat", "mean"}

type meanState struct {
	sum float64
	n   int
}

// NewReducer resolves a named reducer.
func NewReducer(name string) (*Reducer, error) {
	identity := func(acc any) any { return acc }
	switch name {
	case "sum":
		return &Reducer{
			Init:   func() any { return float64(0) },
			Fold:   numericFold(name, func(acc, f float64) float64 { return acc + f }),
			Finish: identity,
		}, nil
	case "product":
		return &Reducer{
			Init:   func() any { return float64(1) },
			Fold:   numericFold(name, func(acc, f float64) float64 { return acc * f }),
			Finish: identity,
		}, nil
	case "min":
		return extremumReducer(name, func(best, f float64) bool { return f < best }), nil
	case "max":
		return extremumReducer(name, func(best, f float64) bool { return f > best }), nil
	case "count":
		return &Reducer{
			Init: func() any { return float64(0) },
			Fold: func(acc, _ any) (any, error) {
				return acc.(float64) + 1, nil
			},
			Finish: identity,
		}, nil
	case "concat":
		return &Reducer{
			Init: func() any { return "" },
			Fold: func(acc, item any) (any, error) {
				return acc.(string) + fmt.Sprintf("%v", item), nil
			},
			Finish: identity,
		}, nil
	case "mean":
		return &Reducer{
			Init: func() any { return &meanState{} },
			Fold: func(acc, item any) (any, error) {
				f, err := toNumber(name, item)
				if err != nil {
					return nil, err
				}
				st := acc.(*meanState)
				st.sum += f
				st.n++
				return st, nil
			},
			Finish: func(acc any) any {
				st := acc.(*meanState)
				if st.n == 0 {
					return nil
				}
				return st.sum / float64(st.n)
			},
		}, nil
	}
	return nil, unknownName("reducer", name, ReducerNames)
}

func numericFold(name string, fn func(acc, f float64) float64) func(acc, item any) (any, error) {
	return func(acc, item any) (any, error) {
		f, err := toNumber(name, item)
		if err != nil {
			return nil, err
		}
		return fn(acc.(float64), f), nil
	}
}

// extremumReducer tracks the best value seen; nil marks "nothing yet" so an
// empty stream finishes as nil rather than an arbitrary sentinel.
func extremumReducer(name string, better func(best, f float64) bool) *Reducer {
	return &Reducer{
		Init: func() any { return nil },
		Fold: func(acc, item any) (any, error) {
			f, err := toNumber(name, item)
			if err != nil {
				return nil, err
			}
			if acc == nil {
				return f, nil
			}
			if best := acc.(float64); !better(best, f) {
				return best, nil
			}
			return f, nil
		},
		Finish: func(acc any) any { return acc },
	}
}

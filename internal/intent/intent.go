// Package intent defines the closed set of user requests the counter understands.
// Input decoding lives in keymap; this package knows nothing about keys.
package intent

// Intent is a discrete request to change application state.
type Intent int

const (
	None Intent = iota // not an intent; zero value
	Increment
	Decrement
	LazyIncrement
	LazyDecrement
	Quit
)

// All lists every real intent in declaration order.
var All = []Intent{Increment, Decrement, LazyIncrement, LazyDecrement, Quit}

func (i Intent) String() string {
	switch i {
	case Increment:
		return "increment"
	case Decrement:
		return "decrement"
	case LazyIncrement:
		return "lazy-increment"
	case LazyDecrement:
		return "lazy-decrement"
	case Quit:
		return "quit"
	default:
		return "none"
	}
}

// Describe returns the human-readable label used in the pending queue.
func (i Intent) Describe() string {
	switch i {
	case LazyIncrement:
		return "lazy increment"
	case LazyDecrement:
		return "lazy decrement"
	default:
		return i.String()
	}
}

// Valid reports whether i is one of the declared intents.
func (i Intent) Valid() bool {
	return i > None && i <= Quit
}

// IsLazy reports whether the intent's effect is deferred.
func (i Intent) IsLazy() bool {
	return i == LazyIncrement || i == LazyDecrement
}

// Resolved maps a lazy intent to the concrete intent applied once its delay
// has elapsed. Non-lazy intents resolve to themselves.
func (i Intent) Resolved() Intent {
	switch i {
	case LazyIncrement:
		return Increment
	case LazyDecrement:
		return Decrement
	default:
		return i
	}
}

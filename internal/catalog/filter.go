package catalog

import (
	"github.com/cinelog/cinelog/internal/movie"
)

// AcceptEmptyByDefault decides whether records lacking a filtered
// attribute (no release year, no rating, no genres) pass an enabled
// predicate. Fixed rather than user-configurable for now.
const AcceptEmptyByDefault = true

type WatchMode int

const (
	WatchModeAll WatchMode = iota
	WatchModeWatched
	WatchModePending
)

type (
	// Range is an inclusive numeric bound pair. A nil bound is treated as
	// equal to the record's own value, which makes that side of the range
	// a no-op.
	Range struct {
		Enabled bool
		Min     *int
		Max     *int
	}

	// FilterSpecification is a set of independent predicates; each one,
	// when disabled, passes everything through. AcceptEmpty decides what
	// an enabled predicate does with a record that lacks the relevant
	// attribute.
	FilterSpecification struct {
		WatchMode   WatchMode
		Year        Range
		Runtime     Range
		Critic      Range
		Audience    Range
		GenreNames  []string
		Directors   []string
		AcceptEmpty bool
	}
)

// DefaultFilter returns the all-pass specification.
func DefaultFilter() FilterSpecification {
	return FilterSpecification{AcceptEmpty: AcceptEmptyByDefault}
}

// Filter applies every enabled predicate of the specification to the
// records provided, returning the surviving subset in input order. Every
// predicate is evaluated against the running subset in sequence; the cost
// stays linear per predicate and the implementation stays simple.
func Filter(records []*movie.Record, spec FilterSpecification) []*movie.Record {
	subset := append([]*movie.Record(nil), records...)

	subset = filterBy(subset, func(record *movie.Record) bool {
		switch spec.WatchMode {
		case WatchModeWatched:
			return record.Watched()
		case WatchModePending:
			return !record.Watched()
		default:
			return true
		}
	})

	subset = filterBy(subset, func(record *movie.Record) bool {
		return passesRange(spec.Year, record.ReleaseYear, spec.AcceptEmpty)
	})

	subset = filterBy(subset, func(record *movie.Record) bool {
		return passesRange(spec.Runtime, positiveOrNil(record.RuntimeMinutes), spec.AcceptEmpty)
	})

	subset = filterBy(subset, func(record *movie.Record) bool {
		return passesRange(spec.Critic, ratingOrNil(record.Ratings.Critic), spec.AcceptEmpty)
	})

	subset = filterBy(subset, func(record *movie.Record) bool {
		return passesRange(spec.Audience, ratingOrNil(record.Ratings.Audience), spec.AcceptEmpty)
	})

	subset = filterBy(subset, func(record *movie.Record) bool {
		return passesMembership(spec.GenreNames, record.GenreNames, spec.AcceptEmpty)
	})

	subset = filterBy(subset, func(record *movie.Record) bool {
		return passesMembership(spec.Directors, record.Directors(), spec.AcceptEmpty)
	})

	return subset
}

func filterBy(records []*movie.Record, predicate func(*movie.Record) bool) []*movie.Record {
	insertionIndex := 0
	for _, record := range records {
		if predicate(record) {
			records[insertionIndex] = record
			insertionIndex++
		}
	}

	return records[:insertionIndex]
}

// passesRange reports whether the value lies within [min ?? value,
// max ?? value]. A record lacking the attribute entirely (nil value) is
// decided by the acceptEmpty policy.
func passesRange(bounds Range, value *int, acceptEmpty bool) bool {
	if !bounds.Enabled {
		return true
	}
	if value == nil {
		return acceptEmpty
	}

	lower, upper := *value, *value
	if bounds.Min != nil {
		lower = *bounds.Min
	}
	if bounds.Max != nil {
		upper = *bounds.Max
	}

	return *value >= lower && *value <= upper
}

// passesMembership reports whether the record's attribute set intersects
// the selected set. An empty selected set disables the predicate; an empty
// attribute set is decided by the acceptEmpty policy.
func passesMembership(selected []string, attributes []string, acceptEmpty bool) bool {
	if len(selected) == 0 {
		return true
	}
	if len(attributes) == 0 {
		return acceptEmpty
	}

	for _, want := range selected {
		for _, have := range attributes {
			if want == have {
				return true
			}
		}
	}

	return false
}

func positiveOrNil(value int) *int {
	if value <= 0 {
		return nil
	}

	return &value
}

func ratingOrNil(rating movie.Rating) *int {
	if !rating.Present() {
		return nil
	}

	return &rating.Value
}

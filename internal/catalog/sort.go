package catalog

import (
	"math/rand"
	"sort"
	"strings"

	"github.com/cinelog/cinelog/internal/movie"
)

type SortField int

const (
	SortByCreated SortField = iota
	SortByTitle
	SortByYear
	SortByWatchCount
	SortByGenre
	SortByRuntime
	SortByDirector
	SortByMeanRating
	SortByRandom
)

type Direction int

const (
	Ascending Direction = iota
	Descending
)

type SortSpecification struct {
	Field     SortField
	Direction Direction
}

// DefaultSort orders by creation time, newest first, matching the default
// list the user sees.
func DefaultSort() SortSpecification {
	return SortSpecification{Field: SortByCreated, Direction: Descending}
}

// Sort returns the records ordered per the specification. The input slice
// is not modified; each record's key is computed once on entry and travels
// with the record through the sort.
//
// Descending order is produced by reversing the stable ascending order
// rather than inverting the comparator, so equal-key runs appear in the
// exact reverse of their ascending arrangement.
func Sort(records []*movie.Record, spec SortSpecification) []*movie.Record {
	ordered := make([]*movie.Record, len(records))

	switch spec.Field {
	case SortByTitle, SortByGenre, SortByDirector:
		type keyed struct {
			record *movie.Record
			key    string
		}

		ranked := make([]keyed, len(records))
		for i, record := range records {
			ranked[i] = keyed{record, stringSortKey(record, spec.Field)}
		}

		sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].key < ranked[j].key })
		for i := range ranked {
			ordered[i] = ranked[i].record
		}
	default:
		type keyed struct {
			record *movie.Record
			key    float64
		}

		ranked := make([]keyed, len(records))
		for i, record := range records {
			ranked[i] = keyed{record, numericSortKey(record, spec.Field)}
		}

		sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].key < ranked[j].key })
		for i := range ranked {
			ordered[i] = ranked[i].record
		}
	}

	if spec.Direction == Descending {
		reverse(ordered)
	}

	return ordered
}

func numericSortKey(record *movie.Record, field SortField) float64 {
	switch field {
	case SortByRandom:
		// Fresh keys every invocation; a re-sort reshuffles.
		return rand.Float64()
	case SortByYear:
		if record.ReleaseYear == nil {
			return 0
		}
		return float64(*record.ReleaseYear)
	case SortByWatchCount:
		return float64(len(record.WatchedAt))
	case SortByRuntime:
		return float64(record.RuntimeMinutes)
	case SortByMeanRating:
		return record.Ratings.MeanRating()
	default:
		return float64(record.CreatedAt.UnixNano())
	}
}

// stringSortKey produces a single deterministic comparable string for the
// record. Multi-value attributes (genres, directors) are joined rather
// than compared structurally.
func stringSortKey(record *movie.Record, field SortField) string {
	switch field {
	case SortByGenre:
		return strings.ToLower(strings.Join(record.GenreNames, ", "))
	case SortByDirector:
		return strings.ToLower(strings.Join(record.Directors(), ", "))
	default:
		return strings.ToLower(record.Title)
	}
}

func reverse(records []*movie.Record) {
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
}

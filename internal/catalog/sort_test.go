package catalog_test

import (
	"testing"
	"time"

	"github.com/cinelog/cinelog/internal/catalog"
	"github.com/cinelog/cinelog/internal/movie"
	"github.com/stretchr/testify/assert"
)

func Test_Sort_TitleAscending(t *testing.T) {
	records := []*movie.Record{
		record("zulu", nil),
		record("Alpha", nil),
		record("mike", nil),
	}

	ordered := catalog.Sort(records, catalog.SortSpecification{Field: catalog.SortByTitle, Direction: catalog.Ascending})
	assert.Equal(t, []string{"Alpha", "mike", "zulu"}, titles(ordered))
}

// Orderings that need several element moves must come out fully sorted;
// record keys have to travel with their records through every swap.
func Test_Sort_ScrambledInputFullyOrdered(t *testing.T) {
	records := []*movie.Record{
		record("zulu", nil),
		record("alpha", nil),
		record("mike", nil),
		record("yankee", nil),
		record("bravo", nil),
		record("oscar", nil),
	}

	ordered := catalog.Sort(records, catalog.SortSpecification{Field: catalog.SortByTitle, Direction: catalog.Ascending})
	assert.Equal(t, []string{"alpha", "bravo", "mike", "oscar", "yankee", "zulu"}, titles(ordered))
}

// Descending must be the exact reverse of the stable ascending order, so
// equal-key runs flip their relative order rather than retaining it.
func Test_Sort_DescendingIsReverseOfAscending(t *testing.T) {
	records := []*movie.Record{
		record("First", func(r *movie.Record) { r.ID = 1; r.ReleaseYear = intPtr(1999) }),
		record("Second", func(r *movie.Record) { r.ID = 2; r.ReleaseYear = intPtr(1999) }),
		record("Third", func(r *movie.Record) { r.ID = 3; r.ReleaseYear = intPtr(1999) }),
		record("Older", func(r *movie.Record) { r.ID = 4; r.ReleaseYear = intPtr(1980) }),
	}

	ascending := catalog.Sort(records, catalog.SortSpecification{Field: catalog.SortByYear, Direction: catalog.Ascending})
	descending := catalog.Sort(records, catalog.SortSpecification{Field: catalog.SortByYear, Direction: catalog.Descending})

	assert.Equal(t, []string{"Older", "First", "Second", "Third"}, titles(ascending))
	assert.Equal(t, []string{"Third", "Second", "First", "Older"}, titles(descending))
}

func Test_Sort_MeanRating(t *testing.T) {
	records := []*movie.Record{
		record("Unrated", nil),
		record("Great", func(r *movie.Record) {
			r.Ratings = movie.RatingPair{Critic: movie.Rating{Value: 95}, Audience: movie.Rating{Value: 85}}
		}),
		record("HalfRated", func(r *movie.Record) {
			r.Ratings = movie.RatingPair{Critic: movie.Rating{Value: 60}, Audience: movie.AbsentRating()}
		}),
	}

	ordered := catalog.Sort(records, catalog.SortSpecification{Field: catalog.SortByMeanRating, Direction: catalog.Descending})
	assert.Equal(t, []string{"Great", "HalfRated", "Unrated"}, titles(ordered))
}

func Test_Sort_GenreUsesJoinedKey(t *testing.T) {
	records := []*movie.Record{
		record("B", func(r *movie.Record) { r.GenreNames = []string{"Drama"} }),
		record("A", func(r *movie.Record) { r.GenreNames = []string{"Action", "Drama"} }),
	}

	ordered := catalog.Sort(records, catalog.SortSpecification{Field: catalog.SortByGenre, Direction: catalog.Ascending})
	assert.Equal(t, []string{"A", "B"}, titles(ordered))
}

func Test_Sort_WatchCount(t *testing.T) {
	now := time.Now()
	records := []*movie.Record{
		record("Twice", func(r *movie.Record) { r.WatchedAt = []time.Time{now, now} }),
		record("Never", nil),
		record("Once", func(r *movie.Record) { r.WatchedAt = []time.Time{now} }),
	}

	ordered := catalog.Sort(records, catalog.SortSpecification{Field: catalog.SortByWatchCount, Direction: catalog.Ascending})
	assert.Equal(t, []string{"Never", "Once", "Twice"}, titles(ordered))
}

func Test_Sort_RandomIsAPermutation(t *testing.T) {
	records := []*movie.Record{
		record("A", nil),
		record("B", nil),
		record("C", nil),
		record("D", nil),
	}

	ordered := catalog.Sort(records, catalog.SortSpecification{Field: catalog.SortByRandom, Direction: catalog.Ascending})
	assert.ElementsMatch(t, titles(records), titles(ordered))
	// Input order must survive; the shuffle operates on a copy.
	assert.Equal(t, []string{"A", "B", "C", "D"}, titles(records))
}

func Test_Sort_DoesNotMutateInput(t *testing.T) {
	records := []*movie.Record{
		record("zulu", nil),
		record("alpha", nil),
	}

	catalog.Sort(records, catalog.SortSpecification{Field: catalog.SortByTitle, Direction: catalog.Ascending})
	assert.Equal(t, []string{"zulu", "alpha"}, titles(records))
}

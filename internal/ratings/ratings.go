// Package ratings normalizes and reconciles the percentage ratings
// returned by the two independent rating providers. Providers report
// observations in whatever textual form their API uses; this package owns
// turning those into the catalog's fixed two-slot rating pair.
package ratings

import (
	"math"
	"strconv"
	"strings"

	"github.com/cinelog/cinelog/internal/movie"
)

type Category int

const (
	CategoryCritic Category = iota
	CategoryAudience
)

// Observation is a single raw rating reported by a provider: the category
// it claims to describe, the origin-specific sub-identifier (empty when
// the origin has none) and the untouched value text.
type Observation struct {
	Category Category
	SourceID string
	Text     string
}

// Reconcile merges the observations of the primary and secondary providers
// into one rating pair. Per category the primary provider wins outright;
// the secondary only fills categories the primary could not supply a
// usable value for (cross-source complement, not override). Categories
// neither provider supplies hold the absent sentinel.
//
// An observation whose text does not parse counts as not supplied, so an
// unparsable primary value still lets the secondary fill the slot.
func Reconcile(primary []Observation, secondary []Observation) movie.RatingPair {
	pair := movie.RatingPair{
		Critic:   movie.AbsentRating(),
		Audience: movie.AbsentRating(),
	}

	apply := func(observations []Observation) {
		for _, obs := range observations {
			value := ParsePercent(obs.Text)
			if value == movie.RatingAbsent {
				continue
			}

			rating := movie.Rating{
				Source:  obs.SourceID,
				Display: strings.TrimSpace(obs.Text),
				Value:   value,
			}

			switch obs.Category {
			case CategoryCritic:
				if !pair.Critic.Present() {
					pair.Critic = rating
				}
			case CategoryAudience:
				if !pair.Audience.Present() {
					pair.Audience = rating
				}
			}
		}
	}

	apply(primary)
	apply(secondary)

	return pair
}

// ParsePercent converts the textual rating forms the providers emit into a
// 0-100 integer:
//
//	"81%"    -> 81
//	"12.25%" -> 12  (truncated)
//	"3/5"    -> 60  (round(100*a/b))
//	"71"     -> 71
//
// Anything unparsable yields the absent sentinel, never an error.
func ParsePercent(text string) int {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return movie.RatingAbsent
	}

	if cut, found := strings.CutSuffix(trimmed, "%"); found {
		if value, err := strconv.ParseFloat(strings.TrimSpace(cut), 64); err == nil {
			return clampPercent(int(value))
		}

		return movie.RatingAbsent
	}

	if numerator, denominator, found := strings.Cut(trimmed, "/"); found {
		a, errA := strconv.ParseFloat(strings.TrimSpace(numerator), 64)
		b, errB := strconv.ParseFloat(strings.TrimSpace(denominator), 64)
		if errA != nil || errB != nil || b == 0 {
			return movie.RatingAbsent
		}

		return clampPercent(int(math.Round(100 * a / b)))
	}

	if value, err := strconv.Atoi(trimmed); err == nil {
		return clampPercent(value)
	}

	return movie.RatingAbsent
}

func clampPercent(value int) int {
	if value < 0 || value > 100 {
		return movie.RatingAbsent
	}

	return value
}

package movie

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// UnsavedID is the sentinel ID given to records which have not yet been
	// persisted. The store assigns a real ID on insert.
	UnsavedID int64 = 0

	// RatingAbsent is the sentinel value used for a rating slot which no
	// provider could supply. Ratings are never nil so that comparisons and
	// sorting need no special casing.
	RatingAbsent = -1
)

// Departments a staff member may be credited under.
const (
	DepartmentCast = "cast"
	DepartmentCrew = "crew"

	CrewRoleDirector = "Director"
)

type (
	// Rating is one slot of a record's rating pair. Source identifies the
	// origin-specific sub-identifier (empty when the supplying origin has
	// none), Display is the origin's presentation string and Value is a
	// 0-100 percentage, or RatingAbsent.
	Rating struct {
		Source  string
		Display string
		Value   int
	}

	// RatingPair holds the two fixed rating categories of a record. Either
	// slot may hold the absent sentinel; neither is ever nil.
	RatingPair struct {
		Critic   Rating
		Audience Rating
	}

	// StaffMember is a single cast or crew credit attached to a movie.
	StaffMember struct {
		ID           uuid.UUID `db:"id"`
		MovieID      int64     `db:"movie_id"`
		PersonID     string    `db:"person_id"`
		Name         string    `db:"name"`
		OriginalName string    `db:"original_name"`
		FaceURL      string    `db:"face_url"`
		Role         string    `db:"role"`
		Department   string    `db:"department"`
		DisplayOrder int       `db:"display_order"`
	}

	// Record is the canonical persisted movie entity. Watch history,
	// Archived and CreatedAt are app-local: remote refreshes must never
	// clobber them (see the aggregation save/merge policy).
	Record struct {
		ID             int64
		ExternalID     string
		DetailRef      string
		Title          string
		OriginalTitle  string
		ReleaseYear    *int
		RuntimeMinutes int
		Plot           string
		Tagline        string
		ThumbURL       string
		CoverURL       string
		Ratings        RatingPair
		GenreIDs       []int
		GenreNames     []string
		Cast           []StaffMember
		Crew           []StaffMember
		WatchedAt      []time.Time
		Archived       bool
		CreatedAt      time.Time
		UpdatedAt      time.Time
	}
)

// AbsentRating returns the sentinel rating used when no provider supplied
// a value for a category.
func AbsentRating() Rating {
	return Rating{Source: "", Display: "", Value: RatingAbsent}
}

// Present reports whether the rating slot holds a real value.
func (r Rating) Present() bool {
	return r.Value != RatingAbsent
}

// MeanRating averages the present rating values of the pair. A pair with
// no present values yields 0.0 so that unrated records sort below every
// rated one rather than failing.
func (p RatingPair) MeanRating() float64 {
	sum, count := 0, 0
	if p.Critic.Present() {
		sum += p.Critic.Value
		count++
	}
	if p.Audience.Present() {
		sum += p.Audience.Value
		count++
	}

	if count == 0 {
		return 0.0
	}

	return float64(sum) / float64(count)
}

// Watched reports whether the record has any watch history.
func (record *Record) Watched() bool {
	return len(record.WatchedAt) > 0
}

// Directors returns the names of all crew members credited as director,
// in display order.
func (record *Record) Directors() []string {
	directors := make([]string, 0, 1)
	for _, member := range record.Crew {
		if member.Role == CrewRoleDirector {
			directors = append(directors, member.Name)
		}
	}

	return directors
}

// HasBlankTitle reports whether the record's title is empty or whitespace
// only. Such records must never reach the store.
func (record *Record) HasBlankTitle() bool {
	return strings.TrimSpace(record.Title) == ""
}

// HasSaveableChangesSince reports whether 'record' differs from 'prior' in
// a way worth persisting. A blank title always yields false, regardless of
// what else changed.
func (record *Record) HasSaveableChangesSince(prior *Record) bool {
	if record.HasBlankTitle() {
		return false
	}
	if prior == nil {
		return true
	}

	if record.Title != prior.Title ||
		record.OriginalTitle != prior.OriginalTitle ||
		record.Plot != prior.Plot ||
		record.Tagline != prior.Tagline ||
		record.RuntimeMinutes != prior.RuntimeMinutes ||
		record.ExternalID != prior.ExternalID ||
		record.ThumbURL != prior.ThumbURL ||
		record.CoverURL != prior.CoverURL ||
		record.Ratings != prior.Ratings {
		return true
	}

	if len(record.GenreNames) != len(prior.GenreNames) {
		return true
	}
	for k := range record.GenreNames {
		if record.GenreNames[k] != prior.GenreNames[k] {
			return true
		}
	}

	recordYear, priorYear := record.ReleaseYear, prior.ReleaseYear
	switch {
	case recordYear == nil && priorYear == nil:
		return false
	case recordYear == nil || priorYear == nil:
		return true
	default:
		return *recordYear != *priorYear
	}
}

package movies

import (
	"time"

	"github.com/cinelog/cinelog/internal/api/util"
	"github.com/cinelog/cinelog/internal/catalog"
	"github.com/cinelog/cinelog/internal/movie"
)

type (
	RatingDto struct {
		Source  string `json:"source"`
		Display string `json:"display"`
		Value   *int   `json:"value"`
	}

	StaffDto struct {
		PersonID     string `json:"person_id"`
		Name         string `json:"name"`
		OriginalName string `json:"original_name"`
		FaceURL      string `json:"face_url"`
		Role         string `json:"role"`
		DisplayOrder int    `json:"display_order"`
	}

	// MovieStubDto is the list-view shape of a record: enough to render a
	// row without the staff and watch-history payloads.
	MovieStubDto struct {
		ID         int64     `json:"id"`
		Title      string    `json:"title"`
		Year       *int      `json:"release_year"`
		ThumbURL   string    `json:"thumb_url"`
		Genres     []string  `json:"genres"`
		Watched    bool      `json:"watched"`
		Archived   bool      `json:"archived"`
		Critic     RatingDto `json:"critic_rating"`
		Audience   RatingDto `json:"audience_rating"`
		MeanRating float64   `json:"mean_rating"`
	}

	// MovieDto is the full detail-view shape.
	MovieDto struct {
		ID             int64       `json:"id"`
		ExternalID     string      `json:"external_id"`
		Title          string      `json:"title"`
		OriginalTitle  string      `json:"original_title"`
		Year           *int        `json:"release_year"`
		RuntimeMinutes int         `json:"runtime_minutes"`
		Plot           string      `json:"plot"`
		Tagline        string      `json:"tagline"`
		ThumbURL       string      `json:"thumb_url"`
		CoverURL       string      `json:"cover_url"`
		Critic         RatingDto   `json:"critic_rating"`
		Audience       RatingDto   `json:"audience_rating"`
		Genres         []string    `json:"genres"`
		Cast           []StaffDto  `json:"cast"`
		Crew           []StaffDto  `json:"crew"`
		WatchedAt      []time.Time `json:"watched_at"`
		Archived       bool        `json:"archived"`
		CreatedAt      time.Time   `json:"created_at"`
		UpdatedAt      time.Time   `json:"updated_at"`
	}
)

func NewRatingDto(rating movie.Rating) RatingDto {
	dto := RatingDto{Source: rating.Source, Display: rating.Display}
	if rating.Present() {
		value := rating.Value
		dto.Value = &value
	}

	return dto
}

func NewStaffDto(member movie.StaffMember) StaffDto {
	return StaffDto{
		PersonID:     member.PersonID,
		Name:         member.Name,
		OriginalName: member.OriginalName,
		FaceURL:      member.FaceURL,
		Role:         member.Role,
		DisplayOrder: member.DisplayOrder,
	}
}

func NewStubDto(record *movie.Record) MovieStubDto {
	return MovieStubDto{
		ID:         record.ID,
		Title:      record.Title,
		Year:       record.ReleaseYear,
		ThumbURL:   record.ThumbURL,
		Genres:     record.GenreNames,
		Watched:    record.Watched(),
		Archived:   record.Archived,
		Critic:     NewRatingDto(record.Ratings.Critic),
		Audience:   NewRatingDto(record.Ratings.Audience),
		MeanRating: record.Ratings.MeanRating(),
	}
}

func NewDto(record *movie.Record) MovieDto {
	return MovieDto{
		ID:             record.ID,
		ExternalID:     record.ExternalID,
		Title:          record.Title,
		OriginalTitle:  record.OriginalTitle,
		Year:           record.ReleaseYear,
		RuntimeMinutes: record.RuntimeMinutes,
		Plot:           record.Plot,
		Tagline:        record.Tagline,
		ThumbURL:       record.ThumbURL,
		CoverURL:       record.CoverURL,
		Critic:         NewRatingDto(record.Ratings.Critic),
		Audience:       NewRatingDto(record.Ratings.Audience),
		Genres:         record.GenreNames,
		Cast:           util.ApplyConversion(record.Cast, NewStaffDto),
		Crew:           util.ApplyConversion(record.Crew, NewStaffDto),
		WatchedAt:      record.WatchedAt,
		Archived:       record.Archived,
		CreatedAt:      record.CreatedAt,
		UpdatedAt:      record.UpdatedAt,
	}
}

// ListRequest carries the filter and sort query parameters of the list
// endpoint. Zero values leave the corresponding predicate disabled.
type ListRequest struct {
	WatchMode   string   `query:"watch" validate:"omitempty,oneof=all watched pending"`
	YearMin     *int     `query:"yearMin" validate:"omitempty,min=0"`
	YearMax     *int     `query:"yearMax" validate:"omitempty,min=0"`
	RuntimeMin  *int     `query:"runtimeMin" validate:"omitempty,min=0"`
	RuntimeMax  *int     `query:"runtimeMax" validate:"omitempty,min=0"`
	CriticMin   *int     `query:"criticMin" validate:"omitempty,min=0,max=100"`
	CriticMax   *int     `query:"criticMax" validate:"omitempty,min=0,max=100"`
	AudienceMin *int     `query:"audienceMin" validate:"omitempty,min=0,max=100"`
	AudienceMax *int     `query:"audienceMax" validate:"omitempty,min=0,max=100"`
	Genres      []string `query:"genre"`
	Directors   []string `query:"director"`
	SortBy      string   `query:"sortBy" validate:"omitempty,oneof=created title year watchCount genre runtime director rating random"`
	SortDir     string   `query:"sortDir" validate:"omitempty,oneof=asc desc"`
}

var (
	watchModeMapping = map[string]catalog.WatchMode{
		"all":     catalog.WatchModeAll,
		"watched": catalog.WatchModeWatched,
		"pending": catalog.WatchModePending,
	}

	sortFieldMapping = map[string]catalog.SortField{
		"created":    catalog.SortByCreated,
		"title":      catalog.SortByTitle,
		"year":       catalog.SortByYear,
		"watchCount": catalog.SortByWatchCount,
		"genre":      catalog.SortByGenre,
		"runtime":    catalog.SortByRuntime,
		"director":   catalog.SortByDirector,
		"rating":     catalog.SortByMeanRating,
		"random":     catalog.SortByRandom,
	}
)

// FilterSpecification converts the request's filter parameters to the
// engine's specification; omitted parameters leave predicates disabled.
func (request *ListRequest) FilterSpecification() catalog.FilterSpecification {
	spec := catalog.DefaultFilter()
	spec.WatchMode = watchModeMapping[request.WatchMode]
	spec.Year = rangeFor(request.YearMin, request.YearMax)
	spec.Runtime = rangeFor(request.RuntimeMin, request.RuntimeMax)
	spec.Critic = rangeFor(request.CriticMin, request.CriticMax)
	spec.Audience = rangeFor(request.AudienceMin, request.AudienceMax)
	spec.GenreNames = request.Genres
	spec.Directors = request.Directors

	return spec
}

// SortSpecification converts the request's sort parameters, falling back
// to the default ordering when unspecified.
func (request *ListRequest) SortSpecification() catalog.SortSpecification {
	if request.SortBy == "" {
		return catalog.DefaultSort()
	}

	spec := catalog.SortSpecification{Field: sortFieldMapping[request.SortBy], Direction: catalog.Ascending}
	if request.SortDir == "desc" {
		spec.Direction = catalog.Descending
	}

	return spec
}

func rangeFor(min *int, max *int) catalog.Range {
	return catalog.Range{Enabled: min != nil || max != nil, Min: min, Max: max}
}

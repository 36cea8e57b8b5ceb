package aggregation

import (
	"context"

	"github.com/cinelog/cinelog/internal/genre"
	"github.com/cinelog/cinelog/internal/http/tmdb"
	"github.com/cinelog/cinelog/internal/movie"
)

type (
	// artworkResolver translates raw provider image paths into absolute
	// URLs; satisfied by the artwork cache.
	artworkResolver interface {
		ThumbnailURL(ctx context.Context, rawPath string) string
		CoverURL(ctx context.Context, rawPath string) string
		FaceURL(ctx context.Context, rawPath string) string
	}

	// genreResolver resolves external genre IDs against the warm genre
	// catalog snapshot.
	genreResolver interface {
		NamesByIDs(ids []int) []string
	}
)

// buildCandidate denormalizes the remote detail DTO and the reconciled
// rating pair into an unsaved catalog record, along with the genre list to
// synchronize when the record is persisted. Fields the detail provider
// left unnamed fall back to the warm genre catalog.
func buildCandidate(ctx context.Context, detail *tmdb.MovieDetail, pair movie.RatingPair, art artworkResolver, genres genreResolver) (*movie.Record, []genre.Genre) {
	record := &movie.Record{
		ID:             movie.UnsavedID,
		ExternalID:     detail.ID.String(),
		DetailRef:      detail.ImdbID,
		Title:          detail.Title,
		OriginalTitle:  detail.OriginalTitle,
		RuntimeMinutes: detail.Runtime,
		Plot:           detail.Plot,
		Tagline:        detail.Tagline,
		ThumbURL:       art.ThumbnailURL(ctx, detail.PosterPath),
		CoverURL:       art.CoverURL(ctx, detail.BackdropPath),
		Ratings:        pair,
	}

	if detail.ReleaseDate != nil {
		year := detail.ReleaseDate.Year()
		record.ReleaseYear = &year
	}

	candidateGenres := make([]genre.Genre, 0, len(detail.Genres))
	for _, ref := range detail.Genres {
		record.GenreIDs = append(record.GenreIDs, ref.ID)
		if ref.Name != "" {
			record.GenreNames = append(record.GenreNames, ref.Name)
			candidateGenres = append(candidateGenres, genre.Genre{ID: ref.ID, Label: ref.Name})
		}
	}
	if len(record.GenreNames) < len(record.GenreIDs) {
		record.GenreNames = genres.NamesByIDs(record.GenreIDs)
	}

	for _, credit := range detail.Credits.Cast {
		record.Cast = append(record.Cast, movie.StaffMember{
			PersonID:     credit.ID.String(),
			Name:         credit.Name,
			OriginalName: credit.OriginalName,
			FaceURL:      art.FaceURL(ctx, credit.ProfilePath),
			Role:         credit.Character,
			DisplayOrder: credit.Order,
		})
	}

	for order, credit := range detail.Credits.Crew {
		record.Crew = append(record.Crew, movie.StaffMember{
			PersonID:     credit.ID.String(),
			Name:         credit.Name,
			OriginalName: credit.OriginalName,
			FaceURL:      art.FaceURL(ctx, credit.ProfilePath),
			Role:         credit.Job,
			DisplayOrder: order,
		})
	}

	return record, candidateGenres
}

// searchStub maps one remote search match to its disambiguation-row shape.
func searchStub(ctx context.Context, item *tmdb.SearchResultItem, art artworkResolver) SearchStub {
	return SearchStub{
		ExternalID: item.ID.String(),
		Title:      item.Title,
		Year:       item.Year(),
		ThumbURL:   art.ThumbnailURL(ctx, item.PosterPath),
		Plot:       item.Plot,
	}
}

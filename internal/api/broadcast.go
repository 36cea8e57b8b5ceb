package api

import (
	"errors"

	"github.com/cinelog/cinelog/internal/aggregation"
	"github.com/cinelog/cinelog/internal/api/aggregations"
	"github.com/cinelog/cinelog/internal/api/genres"
	"github.com/cinelog/cinelog/internal/api/movies"
	"github.com/cinelog/cinelog/internal/api/util"
	"github.com/cinelog/cinelog/internal/http/websocket"
	"github.com/cinelog/cinelog/internal/movie"
	"github.com/cinelog/cinelog/pkg/logger"
	"github.com/google/uuid"
)

const (
	TITLE_MOVIE_UPDATE       = "MOVIE_UPDATE"
	TITLE_MOVIE_REMOVE       = "MOVIE_REMOVE"
	TITLE_GENRE_UPDATE       = "GENRE_UPDATE"
	TITLE_AGGREGATION_UPDATE = "AGGREGATION_UPDATE"
)

type (
	MovieUpdate struct {
		MovieID int64            `json:"movie_id"`
		Movie   *movies.MovieDto `json:"movie"`
	}

	GenreUpdate struct {
		Genres []genres.GenreDto `json:"genres"`
	}

	AggregationUpdate struct {
		SessionID uuid.UUID                `json:"session_id"`
		Session   *aggregations.SessionDto `json:"session"`
	}

	// broadcaster translates committed-state events into websocket pushes
	// by re-reading the relevant state and shipping its DTO; the event
	// payload only ever names what changed.
	broadcaster struct {
		socketHub          *websocket.SocketHub
		catalogService     CatalogService
		aggregationService AggregationService
	}
)

func newBroadcaster(socketHub *websocket.SocketHub, catalogService CatalogService, aggregationService AggregationService) *broadcaster {
	return &broadcaster{socketHub, catalogService, aggregationService}
}

func (hub *broadcaster) BroadcastMovieUpdate(id int64) {
	record, err := hub.catalogService.Get(id)
	if err != nil {
		if errors.Is(err, movie.ErrMovieNotFound) {
			// Removed between commit and broadcast; latest value wins.
			hub.BroadcastMovieRemove(id)
			return
		}

		log.Emit(logger.ERROR, "Failed to re-read movie %d for broadcast: %v\n", id, err)
		return
	}

	dto := movies.NewDto(record)
	hub.broadcast(TITLE_MOVIE_UPDATE, MovieUpdate{MovieID: id, Movie: &dto})
}

func (hub *broadcaster) BroadcastMovieRemove(id int64) {
	hub.broadcast(TITLE_MOVIE_REMOVE, MovieUpdate{MovieID: id})
}

func (hub *broadcaster) BroadcastGenreUpdate() {
	list, err := hub.catalogService.ListGenres()
	if err != nil {
		log.Emit(logger.ERROR, "Failed to re-read genres for broadcast: %v\n", err)
		return
	}

	hub.broadcast(TITLE_GENRE_UPDATE, GenreUpdate{Genres: util.ApplyConversion(list, genres.NewDto)})
}

func (hub *broadcaster) BroadcastAggregationUpdate(id uuid.UUID) {
	snapshot, err := hub.aggregationService.GetSession(id)
	if err != nil {
		if errors.Is(err, aggregation.ErrSessionNotFound) {
			hub.broadcast(TITLE_AGGREGATION_UPDATE, AggregationUpdate{SessionID: id})
			return
		}

		log.Emit(logger.ERROR, "Failed to re-read session %s for broadcast: %v\n", id, err)
		return
	}

	dto := aggregations.NewDto(snapshot)
	hub.broadcast(TITLE_AGGREGATION_UPDATE, AggregationUpdate{SessionID: id, Session: &dto})
}

func (hub *broadcaster) broadcast(title string, update any) {
	hub.socketHub.Send(&websocket.SocketMessage{
		Title: title,
		Body:  map[string]any{"update": update},
		Type:  websocket.Update,
	})
}

package internal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cinelog/cinelog/internal/aggregation"
	"github.com/cinelog/cinelog/internal/api"
	"github.com/cinelog/cinelog/internal/artwork"
	"github.com/cinelog/cinelog/internal/catalog"
	"github.com/cinelog/cinelog/internal/database"
	"github.com/cinelog/cinelog/internal/event"
	"github.com/cinelog/cinelog/internal/genre"
	"github.com/cinelog/cinelog/internal/http/omdb"
	"github.com/cinelog/cinelog/internal/http/tmdb"
	"github.com/cinelog/cinelog/internal/http/wikidata"
	"github.com/cinelog/cinelog/internal/movie"
	"github.com/cinelog/cinelog/pkg/logger"
)

var log = logger.Get("Core")

type RunnableService interface {
	Run(context.Context) error
}

// Cinelog is the top-level object for the server, responsible for
// initialising the database, stores, remote clients, services and event
// handling, and for keeping them running until shut down.
type cinelogImpl struct {
	config   CinelogConfig
	eventBus event.EventCoordinator
	db       database.Manager

	movieStore *movie.Store
	genreStore *genre.Store

	tmdbClient     *tmdb.Client
	omdbClient     *omdb.Client
	wikidataClient *wikidata.Client
	artworkCache   *artwork.Cache
}

func New(config CinelogConfig) *cinelogImpl {
	log.Emit(logger.DEBUG, "Bootstrapping Cinelog services using config: %#v\n", config)

	tmdbClient := tmdb.NewClient(tmdb.Config{APIKey: config.TmdbAPIKey})

	return &cinelogImpl{
		config:         config,
		eventBus:       event.New(),
		db:             database.New(),
		movieStore:     movie.NewStore(),
		genreStore:     genre.NewStore(),
		tmdbClient:     tmdbClient,
		omdbClient:     omdb.NewClient(omdb.Config{APIKey: config.OmdbAPIKey}),
		wikidataClient: wikidata.NewClient(),
		artworkCache: artwork.NewCache(
			newArtworkFetcher(tmdbClient),
			time.Duration(config.ArtworkRefreshHours)*time.Hour,
		),
	}
}

// Run connects to the database, wires the services together and keeps
// them running until the provided context is cancelled or a service
// crashes.
func (cinelog *cinelogImpl) Run(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	crashHandler := func(label string, err error) {
		log.Emit(logger.FATAL, "Service crash (%s)! %s\n", label, err.Error())
		cancel()
	}

	log.Emit(logger.NEW, "Connecting to database...\n")
	if err := cinelog.db.Connect(cinelog.config.Database); err != nil {
		return err
	}

	genreCatalog := genre.NewCatalog(cinelog.db.GetSqlxDb(), cinelog.genreStore, cinelog.eventBus)
	catalogService := catalog.NewService(cinelog.db, cinelog.movieStore, cinelog.genreStore, cinelog.eventBus)
	aggregationService := aggregation.New(
		cinelog.tmdbClient,
		cinelog.omdbClient,
		cinelog.wikidataClient,
		catalogService,
		cinelog.artworkCache,
		genreCatalog,
		cinelog.eventBus,
	)
	restGateway := api.NewRestGateway(&cinelog.config.Rest, catalogService, aggregationService, cinelog.eventBus)

	wg := &sync.WaitGroup{}
	cinelog.spawnAsyncService(ctx, wg, aggregationService, "aggregation-service", crashHandler)
	cinelog.spawnAsyncService(ctx, wg, restGateway, "rest-gateway", crashHandler)
	log.Emit(logger.SUCCESS, "Cinelog services spawned!\n")

	wg.Wait()
	return nil
}

// spawnAsyncService runs the provided service in its own goroutine,
// reporting a crash (error return or panic) through the crash handler.
func (cinelog *cinelogImpl) spawnAsyncService(ctx context.Context, wg *sync.WaitGroup, service RunnableService, serviceLabel string, crashHandler func(string, error)) {
	log.Emit(logger.NEW, "Spawning %s\n", serviceLabel)
	wg.Add(1)

	go func(wg *sync.WaitGroup, label string, crash func(string, error)) {
		defer func() {
			if r := recover(); r != nil {
				crash(label, fmt.Errorf("panic %v", r))
			}
		}()

		defer wg.Done()
		if err := service.Run(ctx); err != nil {
			crash(label, err)
		}
	}(wg, serviceLabel, crashHandler)
}

// newArtworkFetcher adapts the TMDB image configuration endpoint to the
// artwork cache's fetch contract, choosing one size segment per artwork
// flavour from the remotely-published lists.
func newArtworkFetcher(client *tmdb.Client) artwork.FetchFunc {
	return func(ctx context.Context) (*artwork.Configuration, error) {
		remote, err := client.FetchConfiguration(ctx)
		if err != nil {
			return nil, err
		}

		return &artwork.Configuration{
			BaseURL:      remote.Images.SecureBaseURL,
			ThumbSegment: pickSize(remote.Images.PosterSizes, "w342"),
			CoverSegment: pickSize(remote.Images.BackdropSizes, "w1280"),
			FaceSegment:  pickSize(remote.Images.ProfileSizes, "w185"),
		}, nil
	}
}

// pickSize returns the preferred size segment when the provider publishes
// it, otherwise the largest available.
func pickSize(sizes []string, preferred string) string {
	for _, size := range sizes {
		if size == preferred {
			return size
		}
	}

	if len(sizes) == 0 {
		return "original"
	}

	return sizes[len(sizes)-1]
}

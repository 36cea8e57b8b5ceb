package api

import (
	"context"
	"sync"

	"github.com/cinelog/cinelog/internal/api/aggregations"
	"github.com/cinelog/cinelog/internal/api/genres"
	"github.com/cinelog/cinelog/internal/api/movies"
	"github.com/cinelog/cinelog/internal/api/util"
	"github.com/cinelog/cinelog/internal/event"
	"github.com/cinelog/cinelog/internal/http/websocket"
	"github.com/cinelog/cinelog/pkg/logger"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

var log = logger.Get("API")

type (
	RestConfig struct {
		HostAddr string `yaml:"host_address" env:"API_HOST_ADDR" env-default:"0.0.0.0:8080"`
	}

	controller interface {
		SetRoutes(*echo.Group)
	}

	// CatalogService unions the catalog requirements of the movie and
	// genre controllers, plus the broadcaster's re-read path.
	CatalogService interface {
		movies.Service
		genres.Service
	}

	AggregationService = aggregations.Service

	// The RestGateway is a thin wrapper around the Echo HTTP router. Its
	// sole responsibility is to expose the REST surface, manage ongoing
	// websocket connections, and forward committed-state events to
	// connected clients.
	RestGateway struct {
		*broadcaster
		config                *RestConfig
		ec                    *echo.Echo
		socket                *websocket.SocketHub
		eventCh               event.HandlerChannel
		movieController       controller
		aggregationController controller
		genreController       controller
	}
)

// NewRestGateway constructs the Echo router and populates it with the
// routes defined by the various controllers, and subscribes to the event
// bus so committed changes reach websocket clients.
func NewRestGateway(config *RestConfig, catalogService CatalogService, aggregationService AggregationService, bus event.EventHandler) *RestGateway {
	ec := echo.New()
	ec.OnAddRouteHandler = func(host string, route echo.Route, handler echo.HandlerFunc, middleware []echo.MiddlewareFunc) {
		log.Emit(logger.DEBUG, "Registered new route %s %s\n", route.Method, route.Path)
	}
	ec.HidePort = true
	ec.HideBanner = true

	validate := validator.New()
	socket := websocket.NewHub()
	socket.WithConnectionCallback(func() map[string]any {
		// New clients learn the open aggregation sessions up front rather
		// than waiting for the next state advance.
		return map[string]any{
			"sessions": util.ApplyConversion(aggregationService.ListSessions(), aggregations.NewDto),
		}
	})

	// Buffered so a Dispatch from a service holding its own locks never
	// blocks on the gateway pump.
	eventCh := make(event.HandlerChannel, 128)
	bus.RegisterHandlerChannel(eventCh, event.MOVIE_UPDATE, event.MOVIE_REMOVE, event.GENRE_UPDATE, event.AGGREGATION_UPDATE)

	gateway := &RestGateway{
		broadcaster:           newBroadcaster(socket, catalogService, aggregationService),
		config:                config,
		ec:                    ec,
		socket:                socket,
		eventCh:               eventCh,
		movieController:       movies.New(validate, catalogService),
		aggregationController: aggregations.New(validate, aggregationService),
		genreController:       genres.New(catalogService),
	}

	ec.Use(middleware.Logger())
	ec.Use(middleware.Recover())
	ec.Pre(middleware.AddTrailingSlash())

	ec.GET("/api/cinelog/v1/updates/ws/", func(ec echo.Context) error {
		gateway.socket.UpgradeToSocket(ec.Response(), ec.Request())
		return nil
	})

	gateway.movieController.SetRoutes(ec.Group("/api/cinelog/v1/movies"))
	gateway.aggregationController.SetRoutes(ec.Group("/api/cinelog/v1/aggregations"))
	gateway.genreController.SetRoutes(ec.Group("/api/cinelog/v1/genres"))

	return gateway
}

func (gateway *RestGateway) Run(parentCtx context.Context) error {
	ctx, ctxCancel := context.WithCancelCause(parentCtx)
	wg := &sync.WaitGroup{}

	// Start echo router
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := gateway.ec.Start(gateway.config.HostAddr); err != nil {
			ctxCancel(err)
		}
	}()

	// Start thread to listen for context cancellation
	go func(ec *echo.Echo) {
		<-ctx.Done()
		ec.Close()
	}(gateway.ec)

	// Start websocket
	wg.Add(1)
	go func() {
		defer wg.Done()
		gateway.socket.Start(ctx)
	}()

	// Pump committed-state events to connected clients
	wg.Add(1)
	go func() {
		defer wg.Done()
		gateway.pumpEvents(ctx)
	}()

	wg.Wait()

	// Return cancellation cause if any, otherwise nil as parent context
	// cancellation is not an error case we should report.
	if cause := context.Cause(ctx); cause != ctx.Err() {
		return cause
	}

	return nil
}

func (gateway *RestGateway) pumpEvents(ctx context.Context) {
	for {
		select {
		case message := <-gateway.eventCh:
			gateway.handleEvent(message)
		case <-ctx.Done():
			return
		}
	}
}

func (gateway *RestGateway) handleEvent(message event.HandlerEvent) {
	switch message.Event {
	case event.MOVIE_UPDATE:
		gateway.BroadcastMovieUpdate(message.Payload.(int64))
	case event.MOVIE_REMOVE:
		gateway.BroadcastMovieRemove(message.Payload.(int64))
	case event.GENRE_UPDATE:
		gateway.BroadcastGenreUpdate()
	case event.AGGREGATION_UPDATE:
		gateway.BroadcastAggregationUpdate(message.Payload.(uuid.UUID))
	default:
		log.Emit(logger.WARNING, "Gateway received unknown event %v\n", message.Event)
	}
}

package aggregations

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/cinelog/cinelog/internal/aggregation"
	"github.com/cinelog/cinelog/internal/api/util"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type (
	// Service is the slice of the aggregation surface the session
	// endpoints consume.
	Service interface {
		NewSession() aggregation.SessionSnapshot
		GetSession(sessionID uuid.UUID) (aggregation.SessionSnapshot, error)
		ListSessions() []aggregation.SessionSnapshot
		CloseSession(sessionID uuid.UUID) error
		Search(sessionID uuid.UUID, query string) error
		Select(sessionID uuid.UUID, externalID string) error
		Save(sessionID uuid.UUID) error
		ResolveConflict(sessionID uuid.UUID, overwrite bool) error
		Cancel(sessionID uuid.UUID) error
	}

	Controller struct {
		service  Service
		validate *validator.Validate
	}

	SearchRequest struct {
		Query string `json:"query" validate:"required"`
	}

	SelectRequest struct {
		ExternalID string `json:"external_id" validate:"required"`
	}

	ResolveConflictRequest struct {
		Resolution string `json:"resolution" validate:"required,oneof=overwrite discard"`
	}
)

func New(validate *validator.Validate, service Service) *Controller {
	return &Controller{service: service, validate: validate}
}

func (controller *Controller) SetRoutes(eg *echo.Group) {
	eg.GET("/", controller.list)
	eg.POST("/", controller.create)
	eg.GET("/:id/", controller.get)
	eg.DELETE("/:id/", controller.delete)
	eg.POST("/:id/search/", controller.search)
	eg.POST("/:id/select/", controller.selectCandidate)
	eg.POST("/:id/save/", controller.save)
	eg.POST("/:id/conflict/", controller.resolveConflict)
	eg.POST("/:id/cancel/", controller.cancel)
}

func (controller *Controller) list(ec echo.Context) error {
	return ec.JSON(http.StatusOK, util.ApplyConversion(controller.service.ListSessions(), NewDto))
}

// create opens a fresh aggregation session in the entry state.
func (controller *Controller) create(ec echo.Context) error {
	return ec.JSON(http.StatusCreated, NewDto(controller.service.NewSession()))
}

func (controller *Controller) get(ec echo.Context) error {
	id, err := parseSessionID(ec)
	if err != nil {
		return err
	}

	snapshot, err := controller.service.GetSession(id)
	if err != nil {
		return mapServiceError(err)
	}

	return ec.JSON(http.StatusOK, NewDto(snapshot))
}

func (controller *Controller) delete(ec echo.Context) error {
	id, err := parseSessionID(ec)
	if err != nil {
		return err
	}

	if err := controller.service.CloseSession(id); err != nil {
		return mapServiceError(err)
	}

	return ec.NoContent(http.StatusOK)
}

// search submits the session's query; results arrive asynchronously over
// the update stream.
func (controller *Controller) search(ec echo.Context) error {
	id, err := parseSessionID(ec)
	if err != nil {
		return err
	}

	var request SearchRequest
	if err := controller.bind(ec, &request); err != nil {
		return err
	}

	if err := controller.service.Search(id, request.Query); err != nil {
		return mapServiceError(err)
	}

	return ec.NoContent(http.StatusAccepted)
}

// selectCandidate resolves a multi-match disambiguation by external ID.
func (controller *Controller) selectCandidate(ec echo.Context) error {
	id, err := parseSessionID(ec)
	if err != nil {
		return err
	}

	var request SelectRequest
	if err := controller.bind(ec, &request); err != nil {
		return err
	}

	if err := controller.service.Select(id, request.ExternalID); err != nil {
		return mapServiceError(err)
	}

	return ec.NoContent(http.StatusAccepted)
}

// save persists the aggregated candidate; a duplicate-title collision is
// reported as a conflict for the client to resolve via the conflict
// endpoint.
func (controller *Controller) save(ec echo.Context) error {
	id, err := parseSessionID(ec)
	if err != nil {
		return err
	}

	if err := controller.service.Save(id); err != nil {
		var duplicate *aggregation.DuplicateTitleError
		if errors.As(err, &duplicate) {
			return ec.JSON(http.StatusConflict, NewConflictDto(duplicate.Conflict))
		}

		return mapServiceError(err)
	}

	return ec.NoContent(http.StatusOK)
}

func (controller *Controller) resolveConflict(ec echo.Context) error {
	id, err := parseSessionID(ec)
	if err != nil {
		return err
	}

	var request ResolveConflictRequest
	if err := controller.bind(ec, &request); err != nil {
		return err
	}

	if err := controller.service.ResolveConflict(id, request.Resolution == "overwrite"); err != nil {
		return mapServiceError(err)
	}

	return ec.NoContent(http.StatusOK)
}

func (controller *Controller) cancel(ec echo.Context) error {
	id, err := parseSessionID(ec)
	if err != nil {
		return err
	}

	if err := controller.service.Cancel(id); err != nil {
		return mapServiceError(err)
	}

	return ec.NoContent(http.StatusOK)
}

func (controller *Controller) bind(ec echo.Context, request any) error {
	if err := ec.Bind(request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("JSON body illegal: %v", err))
	}
	if err := controller.validate.Struct(request); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	return nil
}

func parseSessionID(ec echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(ec.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "Session ID is not a valid UUID")
	}

	return id, nil
}

func mapServiceError(err error) error {
	switch {
	case errors.Is(err, aggregation.ErrSessionNotFound):
		return echo.NewHTTPError(http.StatusNotFound)
	case errors.Is(err, aggregation.ErrIllegalTransition),
		errors.Is(err, aggregation.ErrNoCandidate):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, aggregation.ErrUnknownCandidate):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

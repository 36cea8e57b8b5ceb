package movies

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/cinelog/cinelog/internal/api/util"
	"github.com/cinelog/cinelog/internal/catalog"
	"github.com/cinelog/cinelog/internal/movie"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type (
	// Service is the slice of the catalog surface the movies endpoints
	// consume.
	Service interface {
		Snapshot(catalog.FilterSpecification, catalog.SortSpecification) ([]*movie.Record, error)
		ListArchived() ([]*movie.Record, error)
		Get(movieID int64) (*movie.Record, error)
		CreateManual(title string) (*movie.Record, error)
		SetWatched(movieID int64, watched bool) error
		Archive(movieID int64) error
		Restore(movieID int64) error
		Delete(movieID int64) error
	}

	Controller struct {
		service  Service
		validate *validator.Validate
	}

	CreateRequest struct {
		Title string `json:"title" validate:"required"`
	}

	WatchRequest struct {
		Watched bool `json:"watched"`
	}
)

func New(validate *validator.Validate, service Service) *Controller {
	return &Controller{service: service, validate: validate}
}

func (controller *Controller) SetRoutes(eg *echo.Group) {
	eg.GET("/", controller.list)
	eg.GET("/archived/", controller.listArchived)
	eg.POST("/", controller.create)
	eg.GET("/:id/", controller.get)
	eg.POST("/:id/watched/", controller.setWatched)
	eg.POST("/:id/archive/", controller.archive)
	eg.POST("/:id/restore/", controller.restore)
	eg.DELETE("/:id/", controller.delete)
}

// list returns the active records run through the filter and sort engines
// per the request's query parameters.
func (controller *Controller) list(ec echo.Context) error {
	var request ListRequest
	if err := ec.Bind(&request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("query parameters illegal: %v", err))
	}
	if err := controller.validate.Struct(&request); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	records, err := controller.service.Snapshot(request.FilterSpecification(), request.SortSpecification())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return ec.JSON(http.StatusOK, util.ApplyConversion(records, NewStubDto))
}

func (controller *Controller) listArchived(ec echo.Context) error {
	records, err := controller.service.ListArchived()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return ec.JSON(http.StatusOK, util.ApplyConversion(records, NewStubDto))
}

func (controller *Controller) get(ec echo.Context) error {
	id, err := parseID(ec)
	if err != nil {
		return err
	}

	record, err := controller.service.Get(id)
	if err != nil {
		return mapServiceError(err)
	}

	return ec.JSON(http.StatusOK, NewDto(record))
}

// create inserts a manual, title-only record.
func (controller *Controller) create(ec echo.Context) error {
	var request CreateRequest
	if err := ec.Bind(&request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("JSON body illegal: %v", err))
	}
	if err := controller.validate.Struct(&request); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	record, err := controller.service.CreateManual(request.Title)
	if err != nil {
		return mapServiceError(err)
	}

	return ec.JSON(http.StatusCreated, NewDto(record))
}

func (controller *Controller) setWatched(ec echo.Context) error {
	id, err := parseID(ec)
	if err != nil {
		return err
	}

	var request WatchRequest
	if err := ec.Bind(&request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("JSON body illegal: %v", err))
	}

	if err := controller.service.SetWatched(id, request.Watched); err != nil {
		return mapServiceError(err)
	}

	return ec.NoContent(http.StatusOK)
}

func (controller *Controller) archive(ec echo.Context) error {
	id, err := parseID(ec)
	if err != nil {
		return err
	}

	if err := controller.service.Archive(id); err != nil {
		return mapServiceError(err)
	}

	return ec.NoContent(http.StatusOK)
}

func (controller *Controller) restore(ec echo.Context) error {
	id, err := parseID(ec)
	if err != nil {
		return err
	}

	if err := controller.service.Restore(id); err != nil {
		return mapServiceError(err)
	}

	return ec.NoContent(http.StatusOK)
}

// delete permanently removes a record; only archived records are
// eligible, anything else is a conflict.
func (controller *Controller) delete(ec echo.Context) error {
	id, err := parseID(ec)
	if err != nil {
		return err
	}

	if err := controller.service.Delete(id); err != nil {
		return mapServiceError(err)
	}

	return ec.NoContent(http.StatusOK)
}

func parseID(ec echo.Context) (int64, error) {
	id, err := strconv.ParseInt(ec.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "Movie ID is not a valid integer")
	}

	return id, nil
}

func mapServiceError(err error) error {
	switch {
	case errors.Is(err, movie.ErrMovieNotFound):
		return echo.NewHTTPError(http.StatusNotFound)
	case errors.Is(err, movie.ErrBlankTitle):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "title must not be blank")
	case errors.Is(err, catalog.ErrNotArchived):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

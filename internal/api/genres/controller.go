package genres

import (
	"net/http"

	"github.com/cinelog/cinelog/internal/api/util"
	"github.com/cinelog/cinelog/internal/genre"
	"github.com/labstack/echo/v4"
)

type (
	GenreDto struct {
		ID    int    `json:"id"`
		Label string `json:"label"`
	}

	Service interface {
		ListGenres() ([]genre.Genre, error)
	}

	Controller struct {
		service Service
	}
)

func New(service Service) *Controller {
	return &Controller{service: service}
}

func (controller *Controller) SetRoutes(eg *echo.Group) {
	eg.GET("/", controller.list)
}

func (controller *Controller) list(ec echo.Context) error {
	genres, err := controller.service.ListGenres()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return ec.JSON(http.StatusOK, util.ApplyConversion(genres, NewDto))
}

func NewDto(model genre.Genre) GenreDto {
	return GenreDto{ID: model.ID, Label: model.Label}
}

package movies_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cinelog/cinelog/internal/api/movies"
	"github.com/cinelog/cinelog/internal/catalog"
	"github.com/cinelog/cinelog/internal/movie"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

// fakeService returns the domain errors the controller must translate.
type fakeService struct{}

func (fakeService) Snapshot(catalog.FilterSpecification, catalog.SortSpecification) ([]*movie.Record, error) {
	return nil, nil
}
func (fakeService) ListArchived() ([]*movie.Record, error) { return nil, nil }
func (fakeService) Get(int64) (*movie.Record, error)       { return nil, movie.ErrMovieNotFound }
func (fakeService) CreateManual(string) (*movie.Record, error) {
	return nil, movie.ErrBlankTitle
}
func (fakeService) SetWatched(int64, bool) error { return nil }
func (fakeService) Archive(int64) error          { return nil }
func (fakeService) Restore(int64) error          { return nil }
func (fakeService) Delete(int64) error           { return catalog.ErrNotArchived }

func newTestRouter(t *testing.T) *echo.Echo {
	t.Helper()

	ec := echo.New()
	movies.New(validator.New(), fakeService{}).SetRoutes(ec.Group("/movies"))
	return ec
}

func performJSON(router *echo.Echo, method string, target string, body string) *httptest.ResponseRecorder {
	request := httptest.NewRequest(method, target, strings.NewReader(body))
	request.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	return recorder
}

// A title that survives binding but is rejected by the service (whitespace
// only) is a validation failure, same as a missing title.
func Test_Create_BlankTitleIsUnprocessable(t *testing.T) {
	router := newTestRouter(t)

	response := performJSON(router, http.MethodPost, "/movies/", `{"title":"   "}`)
	assert.Equal(t, http.StatusUnprocessableEntity, response.Code)
}

func Test_Create_MissingTitleIsUnprocessable(t *testing.T) {
	router := newTestRouter(t)

	response := performJSON(router, http.MethodPost, "/movies/", `{}`)
	assert.Equal(t, http.StatusUnprocessableEntity, response.Code)
}

func Test_Get_MissingRecordIsNotFound(t *testing.T) {
	router := newTestRouter(t)

	response := performJSON(router, http.MethodGet, "/movies/42/", "")
	assert.Equal(t, http.StatusNotFound, response.Code)
}

func Test_Delete_UnarchivedRecordIsConflict(t *testing.T) {
	router := newTestRouter(t)

	response := performJSON(router, http.MethodDelete, "/movies/42/", "")
	assert.Equal(t, http.StatusConflict, response.Code)
}

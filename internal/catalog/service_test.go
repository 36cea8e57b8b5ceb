package catalog_test

import (
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cinelog/cinelog/internal/catalog"
	"github.com/cinelog/cinelog/internal/database"
	"github.com/cinelog/cinelog/internal/event"
	"github.com/cinelog/cinelog/internal/genre"
	"github.com/cinelog/cinelog/internal/movie"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var movieColumns = []string{
	"id", "external_id", "detail_ref", "title", "original_title", "release_year",
	"runtime_minutes", "plot", "tagline", "thumb_url", "cover_url",
	"critic_source", "critic_display", "critic_value",
	"audience_source", "audience_display", "audience_value",
	"archived", "created_at", "updated_at",
}

// testDb adapts a mocked sqlx handle to the service's database dependency.
type testDb struct{ db *sqlx.DB }

func (t testDb) WrapTx(f func(*sqlx.Tx) error) error { return database.WrapTx(t.db, f) }
func (t testDb) GetSqlxDb() *sqlx.DB                 { return t.db }

func newTestService(t *testing.T, bus event.EventCoordinator) (*catalog.Service, sqlmock.Sqlmock) {
	t.Helper()

	rawDb, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { rawDb.Close() })

	db := testDb{sqlx.NewDb(rawDb, "postgres")}
	return catalog.NewService(db, movie.NewStore(), genre.NewStore(), bus), mock
}

func expectGetByID(mock sqlmock.Sqlmock, movieID int64, archived bool) {
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT movie.* FROM movie WHERE movie.id=$1`)).
		WithArgs(movieID).
		WillReturnRows(sqlmock.NewRows(movieColumns).AddRow(
			movieID, "", "", "Heat", "", nil,
			0, "", "", "", "",
			"", "", -1, "", "", -1,
			archived, time.Now(), time.Now(),
		))
	mock.ExpectQuery(`SELECT \* FROM movie_watch`).
		WithArgs(movieID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "movie_id", "watched_at"}))
	mock.ExpectQuery(`SELECT \* FROM movie_staff`).
		WithArgs(movieID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "movie_id", "name", "role", "department"}))
	mock.ExpectQuery(`SELECT mg\.movie_id, mg\.genre_id, genre\.label FROM movie_genres mg`).
		WithArgs(movieID).
		WillReturnRows(sqlmock.NewRows([]string{"movie_id", "genre_id", "label"}))
}

// Deletion is permanent, so it is refused until the record has been moved
// out of the default list.
func Test_Delete_RefusedUntilArchived(t *testing.T) {
	bus := event.New()
	removeCh := make(event.HandlerChannel, 4)
	bus.RegisterHandlerChannel(removeCh, event.MOVIE_REMOVE)

	service, mock := newTestService(t, bus)
	mock.ExpectBegin()
	expectGetByID(mock, 42, false)
	mock.ExpectRollback()

	err := service.Delete(42)
	assert.ErrorIs(t, err, catalog.ErrNotArchived)
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Empty(t, removeCh)
}

func Test_Delete_ArchivedRecordIsRemovedAndAnnounced(t *testing.T) {
	bus := event.New()
	removeCh := make(event.HandlerChannel, 4)
	bus.RegisterHandlerChannel(removeCh, event.MOVIE_REMOVE)

	service, mock := newTestService(t, bus)
	mock.ExpectBegin()
	expectGetByID(mock, 42, true)
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM movie WHERE id=$1`)).
		WithArgs(int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, service.Delete(42))
	require.NoError(t, mock.ExpectationsWereMet())

	// The removal event is dispatched only after the commit.
	message := <-removeCh
	assert.Equal(t, event.MOVIE_REMOVE, message.Event)
	assert.Equal(t, int64(42), message.Payload)
}

func Test_CreateManual_BlankTitleNeverTouchesStore(t *testing.T) {
	service, mock := newTestService(t, event.New())

	record, err := service.CreateManual("   ")
	assert.Nil(t, record)
	assert.ErrorIs(t, err, movie.ErrBlankTitle)
	require.NoError(t, mock.ExpectationsWereMet())
}

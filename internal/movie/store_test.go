package movie_test

import (
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
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

func newMockDb(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()

	rawDb, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { rawDb.Close() })

	return sqlx.NewDb(rawDb, "postgres"), mock
}

func expectRelationQueries(mock sqlmock.Sqlmock, movieID int64, watchedAt ...time.Time) {
	watches := sqlmock.NewRows([]string{"id", "movie_id", "watched_at"})
	for k, at := range watchedAt {
		watches.AddRow(int64(k+1), movieID, at)
	}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM movie_watch WHERE movie_id IN ($1) ORDER BY watched_at ASC`)).
		WithArgs(movieID).
		WillReturnRows(watches)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM movie_staff WHERE movie_id IN ($1) ORDER BY display_order ASC`)).
		WithArgs(movieID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "movie_id", "name", "role", "department"}))
	mock.ExpectQuery(`SELECT mg\.movie_id, mg\.genre_id, genre\.label FROM movie_genres mg`).
		WithArgs(movieID).
		WillReturnRows(sqlmock.NewRows([]string{"movie_id", "genre_id", "label"}))
}

func Test_GetByID_InflatesWatchHistory(t *testing.T) {
	db, mock := newMockDb(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT movie.* FROM movie WHERE movie.id=$1`)).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows(movieColumns).AddRow(
			int64(42), "603", "tt0133093", "The Matrix", "The Matrix", 1999,
			136, "A hacker learns the truth.", "", "thumb.jpg", "cover.jpg",
			"tmdb", "87%", 87, "wikidata", "8.7/10", 87,
			false, now, now,
		))
	expectRelationQueries(mock, 42, now.Add(-time.Hour), now)

	record, err := movie.NewStore().GetByID(db, 42)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, int64(42), record.ID)
	assert.Equal(t, "The Matrix", record.Title)
	assert.Len(t, record.WatchedAt, 2)
	assert.True(t, record.WatchedAt[0].Before(record.WatchedAt[1]))
}

func Test_GetByID_MissingRowYieldsNotFound(t *testing.T) {
	db, mock := newMockDb(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT movie.* FROM movie WHERE movie.id=$1`)).
		WithArgs(int64(999)).
		WillReturnRows(sqlmock.NewRows(movieColumns))

	record, err := movie.NewStore().GetByID(db, 999)
	assert.Nil(t, record)
	assert.ErrorIs(t, err, movie.ErrMovieNotFound)
}

// An absent row during duplicate detection is an expected answer, not a
// failure.
func Test_GetByExternalID_NoMatchIsNotAnError(t *testing.T) {
	db, mock := newMockDb(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT movie.* FROM movie WHERE movie.external_id=$1`)).
		WithArgs("603").
		WillReturnRows(sqlmock.NewRows(movieColumns))

	record, err := movie.NewStore().GetByExternalID(db, "603")
	assert.Nil(t, record)
	assert.NoError(t, err)
}

func Test_FindByExactTitle_NoMatchIsNotAnError(t *testing.T) {
	db, mock := newMockDb(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT movie.* FROM movie WHERE lower(movie.title)=lower($1) ORDER BY movie.created_at ASC LIMIT 1`)).
		WithArgs("the matrix").
		WillReturnRows(sqlmock.NewRows(movieColumns))

	record, err := movie.NewStore().FindByExactTitle(db, "the matrix")
	assert.Nil(t, record)
	assert.NoError(t, err)
}

func Test_Insert_BlankTitleRejected(t *testing.T) {
	err := movie.NewStore().Insert(nil, &movie.Record{Title: "   "})
	assert.ErrorIs(t, err, movie.ErrBlankTitle)
}

func Test_SetArchived_MissingRowYieldsNotFound(t *testing.T) {
	db, mock := newMockDb(t)
	mock.ExpectExec(`UPDATE movie SET archived=\$1`).
		WithArgs(true, int64(999)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := movie.NewStore().SetArchived(db, 999, true)
	assert.ErrorIs(t, err, movie.ErrMovieNotFound)
}

func Test_Delete_MissingRowYieldsNotFound(t *testing.T) {
	db, mock := newMockDb(t)
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM movie WHERE id=$1`)).
		WithArgs(int64(999)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := movie.NewStore().Delete(db, 999)
	assert.ErrorIs(t, err, movie.ErrMovieNotFound)
}

package movie

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/cinelog/cinelog/internal/database"
	"github.com/cinelog/cinelog/pkg/logger"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var (
	ErrBlankTitle    = errors.New("movie title must not be blank")
	ErrMovieNotFound = errors.New("movie does not exist")

	log = logger.Get("MovieStore")
)

type (
	// movieRow is the flat database representation of a movie. It is kept
	// separate from the public Record so the relational parts (watch
	// history, staff, genres) can change shape without breaking the
	// store's API.
	movieRow struct {
		ID              int64     `db:"id"`
		ExternalID      string    `db:"external_id"`
		DetailRef       string    `db:"detail_ref"`
		Title           string    `db:"title"`
		OriginalTitle   string    `db:"original_title"`
		ReleaseYear     *int      `db:"release_year"`
		RuntimeMinutes  int       `db:"runtime_minutes"`
		Plot            string    `db:"plot"`
		Tagline         string    `db:"tagline"`
		ThumbURL        string    `db:"thumb_url"`
		CoverURL        string    `db:"cover_url"`
		CriticSource    string    `db:"critic_source"`
		CriticDisplay   string    `db:"critic_display"`
		CriticValue     int       `db:"critic_value"`
		AudienceSource  string    `db:"audience_source"`
		AudienceDisplay string    `db:"audience_display"`
		AudienceValue   int       `db:"audience_value"`
		Archived        bool      `db:"archived"`
		CreatedAt       time.Time `db:"created_at"`
		UpdatedAt       time.Time `db:"updated_at"`
	}

	watchRow struct {
		ID        int64     `db:"id"`
		MovieID   int64     `db:"movie_id"`
		WatchedAt time.Time `db:"watched_at"`
	}

	genreRefRow struct {
		MovieID int64  `db:"movie_id"`
		GenreID int    `db:"genre_id"`
		Label   string `db:"label"`
	}

	Store struct{}
)

func NewStore() *Store {
	return &Store{}
}

func selectMovieBuilder() squirrel.SelectBuilder {
	return squirrel.
		Select("movie.*").
		From("movie").
		PlaceholderFormat(squirrel.Dollar)
}

// Insert persists a brand new record, assigning it a store-owned ID which
// is set on the provided record before returning. Watch history, staff and
// genre associations present on the record are persisted alongside it, so
// callers carrying state forward from a replaced record need no extra
// steps.
func (store *Store) Insert(tx *sqlx.Tx, record *Record) error {
	if record.HasBlankTitle() {
		return ErrBlankTitle
	}

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	row := recordToRow(record)
	var assignedID int64
	if err := tx.Get(&assignedID, `
		INSERT INTO movie(external_id, detail_ref, title, original_title, release_year,
			runtime_minutes, plot, tagline, thumb_url, cover_url,
			critic_source, critic_display, critic_value,
			audience_source, audience_display, audience_value,
			archived, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, current_timestamp)
		RETURNING id
	`, row.ExternalID, row.DetailRef, row.Title, row.OriginalTitle, row.ReleaseYear,
		row.RuntimeMinutes, row.Plot, row.Tagline, row.ThumbURL, row.CoverURL,
		row.CriticSource, row.CriticDisplay, row.CriticValue,
		row.AudienceSource, row.AudienceDisplay, row.AudienceValue,
		row.Archived, row.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert movie: %w", err)
	}

	record.ID = assignedID
	if err := store.saveAssociations(tx, record); err != nil {
		return err
	}

	return store.saveWatchHistory(tx, record)
}

// Update overwrites the remote-sourced fields of an existing record (title,
// metadata, artwork, ratings, genre and staff associations) and the
// archived flag. Watch history and creation time are deliberately left
// untouched; they are app-local state managed by their own operations.
func (store *Store) Update(tx *sqlx.Tx, record *Record) error {
	if record.HasBlankTitle() {
		return ErrBlankTitle
	}

	row := recordToRow(record)
	result, err := tx.Exec(`
		UPDATE movie SET
			external_id=$1, detail_ref=$2, title=$3, original_title=$4, release_year=$5,
			runtime_minutes=$6, plot=$7, tagline=$8, thumb_url=$9, cover_url=$10,
			critic_source=$11, critic_display=$12, critic_value=$13,
			audience_source=$14, audience_display=$15, audience_value=$16,
			archived=$17, updated_at=current_timestamp
		WHERE id=$18
	`, row.ExternalID, row.DetailRef, row.Title, row.OriginalTitle, row.ReleaseYear,
		row.RuntimeMinutes, row.Plot, row.Tagline, row.ThumbURL, row.CoverURL,
		row.CriticSource, row.CriticDisplay, row.CriticValue,
		row.AudienceSource, row.AudienceDisplay, row.AudienceValue,
		row.Archived, record.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update movie %d: %w", record.ID, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrMovieNotFound
	}

	return store.saveAssociations(tx, record)
}

// SetWatched appends a watch timestamp when 'watched' is true, and clears
// the full watch history when false. The caller supplies the timestamp so
// merges can replay history faithfully.
func (store *Store) SetWatched(db database.Queryable, movieID int64, watched bool, at time.Time) error {
	if watched {
		_, err := db.Exec(`INSERT INTO movie_watch(movie_id, watched_at) VALUES ($1, $2)`, movieID, at)
		return err
	}

	_, err := db.Exec(`DELETE FROM movie_watch WHERE movie_id=$1`, movieID)
	return err
}

// SetArchived flips the archived flag. Archiving is reversible; it moves a
// record out of the default list without destroying anything.
func (store *Store) SetArchived(db database.Queryable, movieID int64, archived bool) error {
	result, err := db.Exec(`UPDATE movie SET archived=$1, updated_at=current_timestamp WHERE id=$2`, archived, movieID)
	if err != nil {
		return err
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrMovieNotFound
	}

	return nil
}

// Delete permanently removes the record. Watch history, staff credits and
// genre associations are removed by the schema's cascading foreign keys.
func (store *Store) Delete(db database.Queryable, movieID int64) error {
	result, err := db.Exec(`DELETE FROM movie WHERE id=$1`, movieID)
	if err != nil {
		return fmt.Errorf("failed to delete movie %d: %w", movieID, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrMovieNotFound
	}

	return nil
}

// GetByID fetches a single fully-inflated record.
func (store *Store) GetByID(db database.Queryable, movieID int64) (*Record, error) {
	return store.getOne(db, selectMovieBuilder().Where("movie.id=?", movieID))
}

// GetByExternalID fetches the record referencing the provided external
// catalog identifier. No match yields (nil, nil), as an absent row is an
// expected answer during duplicate detection, not a failure.
func (store *Store) GetByExternalID(db database.Queryable, externalID string) (*Record, error) {
	record, err := store.getOne(db, selectMovieBuilder().Where("movie.external_id=?", externalID))
	if errors.Is(err, ErrMovieNotFound) {
		return nil, nil
	}

	return record, err
}

// FindByExactTitle fetches the oldest record whose title matches the one
// provided, compared case-insensitively but otherwise exactly. No match
// yields (nil, nil).
func (store *Store) FindByExactTitle(db database.Queryable, title string) (*Record, error) {
	builder := selectMovieBuilder().
		Where("lower(movie.title)=lower(?)", title).
		OrderBy("movie.created_at ASC").
		Limit(1)

	record, err := store.getOne(db, builder)
	if errors.Is(err, ErrMovieNotFound) {
		return nil, nil
	}

	return record, err
}

// ListActive returns all non-archived records, fully inflated.
func (store *Store) ListActive(db database.Queryable) ([]*Record, error) {
	return store.list(db, selectMovieBuilder().Where("movie.archived=false"))
}

// ListArchived returns all archived records, fully inflated.
func (store *Store) ListArchived(db database.Queryable) ([]*Record, error) {
	return store.list(db, selectMovieBuilder().Where("movie.archived=true"))
}

func (store *Store) getOne(db database.Queryable, builder squirrel.SelectBuilder) (*Record, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to construct select movie query: %w", err)
	}

	var row movieRow
	if err := db.Get(&row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMovieNotFound
		}

		return nil, err
	}

	records, err := store.inflate(db, []movieRow{row})
	if err != nil {
		return nil, err
	}

	return records[0], nil
}

func (store *Store) list(db database.Queryable, builder squirrel.SelectBuilder) ([]*Record, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to construct list movies query: %w", err)
	}

	var rows []movieRow
	if err := db.Select(&rows, query, args...); err != nil {
		return nil, err
	}

	return store.inflate(db, rows)
}

// inflate attaches the relational parts (watch history, staff credits,
// genre references) to the flat movie rows provided, using one batched
// query per relation rather than one per record.
func (store *Store) inflate(db database.Queryable, rows []movieRow) ([]*Record, error) {
	records := make([]*Record, len(rows))
	recordsByID := make(map[int64]*Record, len(rows))
	ids := make([]int64, len(rows))
	for k, v := range rows {
		records[k] = rowToRecord(&v)
		recordsByID[v.ID] = records[k]
		ids[k] = v.ID
	}

	if len(ids) == 0 {
		return records, nil
	}

	var watches []watchRow
	if err := selectIn(db, &watches, `SELECT * FROM movie_watch WHERE movie_id IN (?) ORDER BY watched_at ASC`, ids); err != nil {
		return nil, fmt.Errorf("failed to select watch history: %w", err)
	}
	for _, w := range watches {
		record := recordsByID[w.MovieID]
		record.WatchedAt = append(record.WatchedAt, w.WatchedAt)
	}

	var staff []StaffMember
	if err := selectIn(db, &staff, `SELECT * FROM movie_staff WHERE movie_id IN (?) ORDER BY display_order ASC`, ids); err != nil {
		return nil, fmt.Errorf("failed to select staff credits: %w", err)
	}
	for _, member := range staff {
		record := recordsByID[member.MovieID]
		if member.Department == DepartmentCast {
			record.Cast = append(record.Cast, member)
		} else {
			record.Crew = append(record.Crew, member)
		}
	}

	var genreRefs []genreRefRow
	if err := selectIn(db, &genreRefs, `
		SELECT mg.movie_id, mg.genre_id, genre.label FROM movie_genres mg
		INNER JOIN genre ON genre.id = mg.genre_id
		WHERE mg.movie_id IN (?)
		ORDER BY genre.label ASC`, ids); err != nil {
		return nil, fmt.Errorf("failed to select genre references: %w", err)
	}
	for _, ref := range genreRefs {
		record := recordsByID[ref.MovieID]
		record.GenreIDs = append(record.GenreIDs, ref.GenreID)
		record.GenreNames = append(record.GenreNames, ref.Label)
	}

	return records, nil
}

// saveAssociations replaces the staff credits and genre associations of the
// record with those currently present on it.
//
// NB: genre association inserts will FAIL if any referenced genre has no
// row in the genre table; synchronize the genre catalog first.
func (store *Store) saveAssociations(tx *sqlx.Tx, record *Record) error {
	if _, err := tx.Exec(`DELETE FROM movie_staff WHERE movie_id=$1`, record.ID); err != nil {
		return err
	}

	allStaff := make([]StaffMember, 0, len(record.Cast)+len(record.Crew))
	for _, member := range record.Cast {
		member.ID, member.MovieID, member.Department = uuid.New(), record.ID, DepartmentCast
		allStaff = append(allStaff, member)
	}
	for _, member := range record.Crew {
		member.ID, member.MovieID, member.Department = uuid.New(), record.ID, DepartmentCrew
		allStaff = append(allStaff, member)
	}

	if len(allStaff) > 0 {
		if _, err := tx.NamedExec(`
			INSERT INTO movie_staff(id, movie_id, person_id, name, original_name, face_url, role, department, display_order)
			VALUES(:id, :movie_id, :person_id, :name, :original_name, :face_url, :role, :department, :display_order)
			ON CONFLICT(movie_id, person_id, department) DO NOTHING
		`, allStaff); err != nil {
			return fmt.Errorf("failed to insert staff credits: %w", err)
		}
	}

	if _, err := tx.Exec(`DELETE FROM movie_genres WHERE movie_id=$1`, record.ID); err != nil {
		return err
	}

	if len(record.GenreIDs) > 0 {
		type genreAssoc struct {
			ID      uuid.UUID `db:"id"`
			MovieID int64     `db:"movie_id"`
			GenreID int       `db:"genre_id"`
		}
		assocs := make([]genreAssoc, len(record.GenreIDs))
		for k, genreID := range record.GenreIDs {
			assocs[k] = genreAssoc{uuid.New(), record.ID, genreID}
		}

		if _, err := tx.NamedExec(`
			INSERT INTO movie_genres(id, movie_id, genre_id)
			VALUES(:id, :movie_id, :genre_id)
			ON CONFLICT(movie_id, genre_id) DO NOTHING
		`, assocs); err != nil {
			return fmt.Errorf("failed to insert genre associations: %w", err)
		}
	}

	return nil
}

func (store *Store) saveWatchHistory(tx *sqlx.Tx, record *Record) error {
	if len(record.WatchedAt) == 0 {
		return nil
	}

	watches := make([]watchRow, len(record.WatchedAt))
	for k, at := range record.WatchedAt {
		watches[k] = watchRow{MovieID: record.ID, WatchedAt: at}
	}

	if _, err := tx.NamedExec(`
		INSERT INTO movie_watch(movie_id, watched_at) VALUES(:movie_id, :watched_at)
	`, watches); err != nil {
		return fmt.Errorf("failed to insert watch history: %w", err)
	}

	return nil
}

// selectIn expands, rebinds and runs an IN query against the provided db.
func selectIn(db database.Queryable, dest interface{}, query string, arg any) error {
	expanded, args, err := sqlx.In(query, arg)
	if err != nil {
		return err
	}

	return db.Select(dest, db.Rebind(expanded), args...)
}

func recordToRow(record *Record) *movieRow {
	return &movieRow{
		ID:              record.ID,
		ExternalID:      record.ExternalID,
		DetailRef:       record.DetailRef,
		Title:           record.Title,
		OriginalTitle:   record.OriginalTitle,
		ReleaseYear:     record.ReleaseYear,
		RuntimeMinutes:  record.RuntimeMinutes,
		Plot:            record.Plot,
		Tagline:         record.Tagline,
		ThumbURL:        record.ThumbURL,
		CoverURL:        record.CoverURL,
		CriticSource:    record.Ratings.Critic.Source,
		CriticDisplay:   record.Ratings.Critic.Display,
		CriticValue:     record.Ratings.Critic.Value,
		AudienceSource:  record.Ratings.Audience.Source,
		AudienceDisplay: record.Ratings.Audience.Display,
		AudienceValue:   record.Ratings.Audience.Value,
		Archived:        record.Archived,
		CreatedAt:       record.CreatedAt,
		UpdatedAt:       record.UpdatedAt,
	}
}

func rowToRecord(row *movieRow) *Record {
	return &Record{
		ID:             row.ID,
		ExternalID:     row.ExternalID,
		DetailRef:      row.DetailRef,
		Title:          row.Title,
		OriginalTitle:  row.OriginalTitle,
		ReleaseYear:    row.ReleaseYear,
		RuntimeMinutes: row.RuntimeMinutes,
		Plot:           row.Plot,
		Tagline:        row.Tagline,
		ThumbURL:       row.ThumbURL,
		CoverURL:       row.CoverURL,
		Ratings: RatingPair{
			Critic:   Rating{Source: row.CriticSource, Display: row.CriticDisplay, Value: row.CriticValue},
			Audience: Rating{Source: row.AudienceSource, Display: row.AudienceDisplay, Value: row.AudienceValue},
		},
		Archived:  row.Archived,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

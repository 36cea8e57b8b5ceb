package catalog

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cinelog/cinelog/internal/event"
	"github.com/cinelog/cinelog/internal/genre"
	"github.com/cinelog/cinelog/internal/movie"
	"github.com/cinelog/cinelog/pkg/logger"
	"github.com/jmoiron/sqlx"
)

var (
	// ErrNotArchived is returned when deletion is requested for a record
	// still in the default list. Deletion is permanent, so it is gated
	// behind archiving first.
	ErrNotArchived = errors.New("movie must be archived before it can be deleted")

	log = logger.Get("Catalog")
)

type database interface {
	WrapTx(func(*sqlx.Tx) error) error
	GetSqlxDb() *sqlx.DB
}

// Service is the catalog's write funnel and read surface. Every mutation
// goes through the single write lock and commits before its event is
// dispatched, so concurrent UI-triggered and aggregation-triggered writes
// cannot interleave into stale states, and subscribers re-reading on an
// event always observe the committed row.
type Service struct {
	writeMu sync.Mutex

	db         database
	movieStore *movie.Store
	genreStore *genre.Store
	bus        event.EventDispatcher
}

func NewService(db database, movieStore *movie.Store, genreStore *genre.Store, bus event.EventDispatcher) *Service {
	return &Service{
		db:         db,
		movieStore: movieStore,
		genreStore: genreStore,
		bus:        bus,
	}
}

// ListActive returns the non-archived records; the default list view.
func (service *Service) ListActive() ([]*movie.Record, error) {
	return service.movieStore.ListActive(service.db.GetSqlxDb())
}

// ListArchived returns the archived records.
func (service *Service) ListArchived() ([]*movie.Record, error) {
	return service.movieStore.ListArchived(service.db.GetSqlxDb())
}

// Get returns a single fully-inflated record.
func (service *Service) Get(movieID int64) (*movie.Record, error) {
	return service.movieStore.GetByID(service.db.GetSqlxDb(), movieID)
}

// GetByExternalID returns the record referencing the external catalog ID,
// or nil when none does.
func (service *Service) GetByExternalID(externalID string) (*movie.Record, error) {
	return service.movieStore.GetByExternalID(service.db.GetSqlxDb(), externalID)
}

// FindByExactTitle returns the record whose title matches exactly
// (case-insensitively), or nil when none does.
func (service *Service) FindByExactTitle(title string) (*movie.Record, error) {
	return service.movieStore.FindByExactTitle(service.db.GetSqlxDb(), title)
}

// Snapshot produces the live list the presentation layer renders: the
// active records run through the filter and sort engines.
func (service *Service) Snapshot(filterSpec FilterSpecification, sortSpec SortSpecification) ([]*movie.Record, error) {
	records, err := service.ListActive()
	if err != nil {
		return nil, err
	}

	return Sort(Filter(records, filterSpec), sortSpec), nil
}

// CreateManual inserts a title-only record with every other field at its
// default; the path taken when the user adds a movie by hand rather than
// through aggregation.
func (service *Service) CreateManual(title string) (*movie.Record, error) {
	record := &movie.Record{
		Title: strings.TrimSpace(title),
		Ratings: movie.RatingPair{
			Critic:   movie.AbsentRating(),
			Audience: movie.AbsentRating(),
		},
	}

	if record.HasBlankTitle() {
		return nil, movie.ErrBlankTitle
	}

	service.writeMu.Lock()
	defer service.writeMu.Unlock()

	if err := service.db.WrapTx(func(tx *sqlx.Tx) error {
		return service.movieStore.Insert(tx, record)
	}); err != nil {
		return nil, err
	}

	service.bus.Dispatch(event.MOVIE_UPDATE, record.ID)
	return record, nil
}

// SaveAggregated persists a fully-aggregated record, synchronizing the
// genre catalog in the same transaction so association inserts cannot
// race a missing genre row. When replaceID is non-zero the record it names
// is deleted first (the duplicate-title overwrite path); when the record
// carries an assigned ID it is refreshed in place; otherwise it is
// inserted fresh.
func (service *Service) SaveAggregated(record *movie.Record, genres []genre.Genre, replaceID int64) error {
	service.writeMu.Lock()
	defer service.writeMu.Unlock()

	if err := service.db.WrapTx(func(tx *sqlx.Tx) error {
		if err := service.genreStore.Synchronize(tx, genres); err != nil {
			return err
		}

		if replaceID != 0 {
			if err := service.movieStore.Delete(tx, replaceID); err != nil {
				return fmt.Errorf("failed to remove record %d being overwritten: %w", replaceID, err)
			}
		}

		if record.ID != movie.UnsavedID {
			return service.movieStore.Update(tx, record)
		}

		return service.movieStore.Insert(tx, record)
	}); err != nil {
		return err
	}

	service.bus.Dispatch(event.GENRE_UPDATE, nil)
	if replaceID != 0 {
		service.bus.Dispatch(event.MOVIE_REMOVE, replaceID)
	}
	service.bus.Dispatch(event.MOVIE_UPDATE, record.ID)

	return nil
}

// SetWatched toggles the record's watch state: true appends a watch
// timestamp, false clears the history back to pending.
func (service *Service) SetWatched(movieID int64, watched bool) error {
	service.writeMu.Lock()
	defer service.writeMu.Unlock()

	if err := service.db.WrapTx(func(tx *sqlx.Tx) error {
		return service.movieStore.SetWatched(tx, movieID, watched, time.Now())
	}); err != nil {
		return err
	}

	service.bus.Dispatch(event.MOVIE_UPDATE, movieID)
	return nil
}

// Archive moves the record out of the default list without destroying it.
func (service *Service) Archive(movieID int64) error {
	return service.setArchived(movieID, true)
}

// Restore returns an archived record to the default list, all fields
// intact.
func (service *Service) Restore(movieID int64) error {
	return service.setArchived(movieID, false)
}

func (service *Service) setArchived(movieID int64, archived bool) error {
	service.writeMu.Lock()
	defer service.writeMu.Unlock()

	if err := service.db.WrapTx(func(tx *sqlx.Tx) error {
		return service.movieStore.SetArchived(tx, movieID, archived)
	}); err != nil {
		return err
	}

	service.bus.Dispatch(event.MOVIE_UPDATE, movieID)
	return nil
}

// Delete permanently removes an archived record along with its staff and
// watch associations. Records still in the default list are refused.
func (service *Service) Delete(movieID int64) error {
	service.writeMu.Lock()
	defer service.writeMu.Unlock()

	if err := service.db.WrapTx(func(tx *sqlx.Tx) error {
		record, err := service.movieStore.GetByID(tx, movieID)
		if err != nil {
			return err
		}
		if !record.Archived {
			return ErrNotArchived
		}

		return service.movieStore.Delete(tx, movieID)
	}); err != nil {
		return err
	}

	service.bus.Dispatch(event.MOVIE_REMOVE, movieID)
	return nil
}

// ListGenres returns the stored genre table.
func (service *Service) ListGenres() ([]genre.Genre, error) {
	return service.genreStore.List(service.db.GetSqlxDb())
}

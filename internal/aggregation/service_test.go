package aggregation_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cinelog/cinelog/internal/aggregation"
	"github.com/cinelog/cinelog/internal/event"
	"github.com/cinelog/cinelog/internal/genre"
	"github.com/cinelog/cinelog/internal/http/tmdb"
	"github.com/cinelog/cinelog/internal/movie"
	"github.com/cinelog/cinelog/internal/ratings"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = time.Second
	tick    = 5 * time.Millisecond
)

type fakeSearcher struct {
	mu            sync.Mutex
	searchResults []tmdb.SearchResultItem
	searchErr     error
	searchBlocks  bool
	detail        *tmdb.MovieDetail
	detailErr     error
}

func (f *fakeSearcher) SearchByTitle(ctx context.Context, query string) ([]tmdb.SearchResultItem, error) {
	f.mu.Lock()
	blocks := f.searchBlocks
	results, err := f.searchResults, f.searchErr
	f.mu.Unlock()

	if blocks {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	return results, err
}

func (f *fakeSearcher) FetchDetails(ctx context.Context, externalID string) (*tmdb.MovieDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.detail, f.detailErr
}

type fakeRatingsSource struct {
	observations []ratings.Observation
	err          error
}

func (f *fakeRatingsSource) FetchRatings(ctx context.Context, detailRef string) ([]ratings.Observation, error) {
	return f.observations, f.err
}

type savedCall struct {
	record    *movie.Record
	genres    []genre.Genre
	replaceID int64
}

type fakeCatalog struct {
	mu         sync.Mutex
	byID       map[int64]*movie.Record
	byExternal map[string]*movie.Record
	byTitle    map[string]*movie.Record
	saved      []savedCall
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		byID:       make(map[int64]*movie.Record),
		byExternal: make(map[string]*movie.Record),
		byTitle:    make(map[string]*movie.Record),
	}
}

func (f *fakeCatalog) add(record *movie.Record) {
	f.byID[record.ID] = record
	f.byExternal[record.ExternalID] = record
	f.byTitle[record.Title] = record
}

func (f *fakeCatalog) Get(movieID int64) (*movie.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.byID[movieID]
	if !ok {
		return nil, movie.ErrMovieNotFound
	}
	return record, nil
}

func (f *fakeCatalog) GetByExternalID(externalID string) (*movie.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byExternal[externalID], nil
}

func (f *fakeCatalog) FindByExactTitle(title string) (*movie.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byTitle[title], nil
}

func (f *fakeCatalog) SaveAggregated(record *movie.Record, genres []genre.Genre, replaceID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, savedCall{record, genres, replaceID})
	return nil
}

func (f *fakeCatalog) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

type fakeArtwork struct{}

func (fakeArtwork) ThumbnailURL(ctx context.Context, rawPath string) string { return rawPath }
func (fakeArtwork) CoverURL(ctx context.Context, rawPath string) string     { return rawPath }
func (fakeArtwork) FaceURL(ctx context.Context, rawPath string) string      { return rawPath }

type fakeGenres struct{}

func (fakeGenres) NamesByIDs(ids []int) []string { return nil }

func searchItem(id string, title string) tmdb.SearchResultItem {
	return tmdb.SearchResultItem{ID: json.Number(id), Title: title}
}

func movieDetail(id string, imdbID string, title string) *tmdb.MovieDetail {
	return &tmdb.MovieDetail{
		ID:     json.Number(id),
		ImdbID: imdbID,
		Title:  title,
		Genres: []tmdb.GenreRef{{ID: 28, Name: "Action"}},
	}
}

func newTestService(searcher *fakeSearcher, primary *fakeRatingsSource, secondary *fakeRatingsSource, catalog *fakeCatalog) *aggregation.Service {
	return aggregation.New(searcher, primary, secondary, catalog, fakeArtwork{}, fakeGenres{}, event.New())
}

func waitForChoice(t *testing.T, service *aggregation.Service, sessionID uuid.UUID) {
	t.Helper()

	require.Eventually(t, func() bool {
		snap, err := service.GetSession(sessionID)
		return err == nil && snap.State == aggregation.StateChoice
	}, waitFor, tick)
}

func Test_Search_EmptyResultReturnsToEntry(t *testing.T) {
	searcher := &fakeSearcher{}
	service := newTestService(searcher, &fakeRatingsSource{}, &fakeRatingsSource{}, newFakeCatalog())
	session := service.NewSession()

	require.NoError(t, service.Search(session.ID, "nothing matches this"))

	assert.Eventually(t, func() bool {
		snap, err := service.GetSession(session.ID)
		return err == nil && snap.State == aggregation.StateEntry && snap.Notice == aggregation.NoticeEmptyResult
	}, waitFor, tick)
}

func Test_Search_FailureRaisesConnectionNotice(t *testing.T) {
	searcher := &fakeSearcher{searchErr: errors.New("connection refused")}
	service := newTestService(searcher, &fakeRatingsSource{}, &fakeRatingsSource{}, newFakeCatalog())
	session := service.NewSession()

	require.NoError(t, service.Search(session.ID, "heat"))

	assert.Eventually(t, func() bool {
		snap, err := service.GetSession(session.ID)
		return err == nil && snap.State == aggregation.StateEntry && snap.Notice == aggregation.NoticeConnectionFailure
	}, waitFor, tick)
}

func Test_Search_MultipleResultsAwaitSelection(t *testing.T) {
	searcher := &fakeSearcher{searchResults: []tmdb.SearchResultItem{
		searchItem("1", "Alien vs Predator"),
		searchItem("2", "Alien"),
		searchItem("3", "Aliens"),
	}}
	service := newTestService(searcher, &fakeRatingsSource{}, &fakeRatingsSource{}, newFakeCatalog())
	session := service.NewSession()

	require.NoError(t, service.Search(session.ID, "Alien"))

	var snapshot aggregation.SessionSnapshot
	assert.Eventually(t, func() bool {
		snap, err := service.GetSession(session.ID)
		if err != nil {
			return false
		}
		snapshot = snap
		return snap.State == aggregation.StateResults
	}, waitFor, tick)

	require.Equal(t, aggregation.OutcomeMultiple, snapshot.Outcome.Kind)
	require.Len(t, snapshot.Outcome.Multiple, 3)
	// The exact query match must rank first.
	assert.Equal(t, "Alien", snapshot.Outcome.Multiple[0].Title)
}

func Test_Search_SingleResultAutoAdvancesToChoice(t *testing.T) {
	searcher := &fakeSearcher{
		searchResults: []tmdb.SearchResultItem{searchItem("949", "Heat")},
		detail:        movieDetail("949", "tt0113277", "Heat"),
	}
	primary := &fakeRatingsSource{observations: []ratings.Observation{
		{Category: ratings.CategoryCritic, SourceID: "tt0113277", Text: "87%"},
	}}
	service := newTestService(searcher, primary, &fakeRatingsSource{}, newFakeCatalog())
	session := service.NewSession()

	require.NoError(t, service.Search(session.ID, "Heat"))

	var snapshot aggregation.SessionSnapshot
	assert.Eventually(t, func() bool {
		snap, err := service.GetSession(session.ID)
		if err != nil {
			return false
		}
		snapshot = snap
		return snap.State == aggregation.StateChoice
	}, waitFor, tick)

	require.NotNil(t, snapshot.Candidate)
	assert.Equal(t, "Heat", snapshot.Candidate.Title)
	assert.Equal(t, 87, snapshot.Candidate.Ratings.Critic.Value)
}

func Test_Select_RatingFailureIsNotFatal(t *testing.T) {
	searcher := &fakeSearcher{
		searchResults: []tmdb.SearchResultItem{searchItem("949", "Heat")},
		detail:        movieDetail("949", "tt0113277", "Heat"),
	}
	primary := &fakeRatingsSource{err: errors.New("rate limited")}
	secondary := &fakeRatingsSource{observations: []ratings.Observation{
		{Category: ratings.CategoryCritic, SourceID: "Q104123", Text: "86%"},
	}}
	service := newTestService(searcher, primary, secondary, newFakeCatalog())
	session := service.NewSession()

	require.NoError(t, service.Search(session.ID, "Heat"))

	var snapshot aggregation.SessionSnapshot
	assert.Eventually(t, func() bool {
		snap, err := service.GetSession(session.ID)
		if err != nil {
			return false
		}
		snapshot = snap
		return snap.State == aggregation.StateChoice
	}, waitFor, tick)

	require.NotNil(t, snapshot.Candidate)
	// Secondary provider filled the slot the failed primary could not.
	assert.Equal(t, 86, snapshot.Candidate.Ratings.Critic.Value)
	assert.Equal(t, "Q104123", snapshot.Candidate.Ratings.Critic.Source)
	assert.False(t, snapshot.Candidate.Ratings.Audience.Present())
}

func Test_Select_DetailFailureAbandonsAggregation(t *testing.T) {
	searcher := &fakeSearcher{
		searchResults: []tmdb.SearchResultItem{searchItem("949", "Heat")},
		detailErr:     errors.New("tmdb unavailable"),
	}
	service := newTestService(searcher, &fakeRatingsSource{}, &fakeRatingsSource{}, newFakeCatalog())
	session := service.NewSession()

	require.NoError(t, service.Search(session.ID, "Heat"))

	assert.Eventually(t, func() bool {
		snap, err := service.GetSession(session.ID)
		return err == nil && snap.State == aggregation.StateEntry && snap.Notice == aggregation.NoticeConnectionFailure
	}, waitFor, tick)
}

func Test_Save_InsertsCleanCandidate(t *testing.T) {
	searcher := &fakeSearcher{
		searchResults: []tmdb.SearchResultItem{searchItem("949", "Heat")},
		detail:        movieDetail("949", "tt0113277", "Heat"),
	}
	catalog := newFakeCatalog()
	service := newTestService(searcher, &fakeRatingsSource{}, &fakeRatingsSource{}, catalog)
	session := service.NewSession()

	require.NoError(t, service.Search(session.ID, "Heat"))
	waitForChoice(t, service, session.ID)

	require.NoError(t, service.Save(session.ID))
	require.Equal(t, 1, catalog.saveCount())
	assert.Equal(t, int64(0), catalog.saved[0].replaceID)
	assert.Equal(t, movie.UnsavedID, catalog.saved[0].record.ID)
	assert.Equal(t, []genre.Genre{{ID: 28, Label: "Action"}}, catalog.saved[0].genres)

	// Session returns to entry after a successful save.
	snap, err := service.GetSession(session.ID)
	require.NoError(t, err)
	assert.Equal(t, aggregation.StateEntry, snap.State)
}

func Test_Save_RefreshesExistingRecordPreservingLocalState(t *testing.T) {
	searcher := &fakeSearcher{
		searchResults: []tmdb.SearchResultItem{searchItem("949", "Heat")},
		detail:        movieDetail("949", "tt0113277", "Heat"),
	}
	catalog := newFakeCatalog()
	watched := []time.Time{time.Now().Add(-24 * time.Hour)}
	created := time.Now().Add(-30 * 24 * time.Hour)
	catalog.add(&movie.Record{
		ID:         42,
		ExternalID: "949",
		Title:      "Heat",
		WatchedAt:  watched,
		CreatedAt:  created,
		Archived:   true,
	})

	service := newTestService(searcher, &fakeRatingsSource{}, &fakeRatingsSource{}, catalog)
	session := service.NewSession()

	require.NoError(t, service.Search(session.ID, "Heat"))
	waitForChoice(t, service, session.ID)

	require.NoError(t, service.Save(session.ID))
	require.Equal(t, 1, catalog.saveCount())

	saved := catalog.saved[0].record
	assert.Equal(t, int64(42), saved.ID)
	assert.Equal(t, created, saved.CreatedAt)
	assert.Equal(t, watched, saved.WatchedAt)
	// A refresh always returns the record to the default list.
	assert.False(t, saved.Archived)
	assert.Equal(t, int64(0), catalog.saved[0].replaceID)
}

func Test_Save_UnchangedCandidateNeedsNoWrite(t *testing.T) {
	searcher := &fakeSearcher{
		searchResults: []tmdb.SearchResultItem{searchItem("949", "Heat")},
		detail:        movieDetail("949", "tt0113277", "Heat"),
	}
	catalog := newFakeCatalog()
	catalog.add(&movie.Record{
		ID:         42,
		ExternalID: "949",
		DetailRef:  "tt0113277",
		Title:      "Heat",
		GenreNames: []string{"Action"},
		Ratings:    movie.RatingPair{Critic: movie.AbsentRating(), Audience: movie.AbsentRating()},
	})

	service := newTestService(searcher, &fakeRatingsSource{}, &fakeRatingsSource{}, catalog)
	session := service.NewSession()

	require.NoError(t, service.Search(session.ID, "Heat"))
	waitForChoice(t, service, session.ID)

	require.NoError(t, service.Save(session.ID))
	assert.Zero(t, catalog.saveCount())

	snap, err := service.GetSession(session.ID)
	require.NoError(t, err)
	assert.Equal(t, aggregation.StateEntry, snap.State)
}

func Test_Save_DuplicateTitleRaisesConflict(t *testing.T) {
	searcher := &fakeSearcher{
		searchResults: []tmdb.SearchResultItem{searchItem("949", "Heat")},
		detail:        movieDetail("949", "tt0113277", "Heat"),
	}
	catalog := newFakeCatalog()
	catalog.add(&movie.Record{ID: 7, ExternalID: "different-id", Title: "Heat"})

	service := newTestService(searcher, &fakeRatingsSource{}, &fakeRatingsSource{}, catalog)
	session := service.NewSession()

	require.NoError(t, service.Search(session.ID, "Heat"))
	waitForChoice(t, service, session.ID)

	err := service.Save(session.ID)
	var duplicate *aggregation.DuplicateTitleError
	require.ErrorAs(t, err, &duplicate)
	assert.Equal(t, int64(7), duplicate.Conflict.ExistingID)
	assert.Zero(t, catalog.saveCount())

	snap, getErr := service.GetSession(session.ID)
	require.NoError(t, getErr)
	assert.Equal(t, aggregation.StateChoice, snap.State)
	require.NotNil(t, snap.Conflict)
}

func Test_ResolveConflict_OverwriteCarriesWatchHistoryForward(t *testing.T) {
	searcher := &fakeSearcher{
		searchResults: []tmdb.SearchResultItem{searchItem("949", "Heat")},
		detail:        movieDetail("949", "tt0113277", "Heat"),
	}
	catalog := newFakeCatalog()
	watched := []time.Time{time.Now().Add(-48 * time.Hour)}
	catalog.add(&movie.Record{ID: 7, ExternalID: "different-id", Title: "Heat", WatchedAt: watched})

	service := newTestService(searcher, &fakeRatingsSource{}, &fakeRatingsSource{}, catalog)
	session := service.NewSession()

	require.NoError(t, service.Search(session.ID, "Heat"))
	waitForChoice(t, service, session.ID)
	require.Error(t, service.Save(session.ID))

	require.NoError(t, service.ResolveConflict(session.ID, true))
	require.Equal(t, 1, catalog.saveCount())
	assert.Equal(t, int64(7), catalog.saved[0].replaceID)
	assert.Equal(t, watched, catalog.saved[0].record.WatchedAt)
}

func Test_ResolveConflict_DiscardLeavesStoreUntouched(t *testing.T) {
	searcher := &fakeSearcher{
		searchResults: []tmdb.SearchResultItem{searchItem("949", "Heat")},
		detail:        movieDetail("949", "tt0113277", "Heat"),
	}
	catalog := newFakeCatalog()
	catalog.add(&movie.Record{ID: 7, ExternalID: "different-id", Title: "Heat"})

	service := newTestService(searcher, &fakeRatingsSource{}, &fakeRatingsSource{}, catalog)
	session := service.NewSession()

	require.NoError(t, service.Search(session.ID, "Heat"))
	waitForChoice(t, service, session.ID)
	require.Error(t, service.Save(session.ID))

	require.NoError(t, service.ResolveConflict(session.ID, false))
	assert.Zero(t, catalog.saveCount())

	snap, err := service.GetSession(session.ID)
	require.NoError(t, err)
	assert.Equal(t, aggregation.StateEntry, snap.State)
	assert.Nil(t, snap.Conflict)
}

func Test_Cancel_SuppressesInFlightSearch(t *testing.T) {
	searcher := &fakeSearcher{searchBlocks: true}
	catalog := newFakeCatalog()
	service := newTestService(searcher, &fakeRatingsSource{}, &fakeRatingsSource{}, catalog)
	session := service.NewSession()

	require.NoError(t, service.Search(session.ID, "Heat"))
	require.NoError(t, service.Cancel(session.ID))

	snap, err := service.GetSession(session.ID)
	require.NoError(t, err)
	assert.Equal(t, aggregation.StateEntry, snap.State)
	assert.Equal(t, aggregation.NoticeNone, snap.Notice)
	assert.Zero(t, catalog.saveCount())

	// The abandoned search must never surface a late failure notice.
	time.Sleep(50 * time.Millisecond)
	snap, err = service.GetSession(session.ID)
	require.NoError(t, err)
	assert.Equal(t, aggregation.StateEntry, snap.State)
	assert.Equal(t, aggregation.NoticeNone, snap.Notice)

	// The session remains usable for a fresh search.
	searcher.mu.Lock()
	searcher.searchBlocks = false
	searcher.mu.Unlock()
	require.NoError(t, service.Search(session.ID, "again"))
}

func Test_SessionLifecycle(t *testing.T) {
	service := newTestService(&fakeSearcher{}, &fakeRatingsSource{}, &fakeRatingsSource{}, newFakeCatalog())

	session := service.NewSession()
	assert.Equal(t, aggregation.StateEntry, session.State)
	assert.Len(t, service.ListSessions(), 1)

	require.NoError(t, service.CloseSession(session.ID))
	assert.Empty(t, service.ListSessions())

	_, err := service.GetSession(session.ID)
	assert.ErrorIs(t, err, aggregation.ErrSessionNotFound)
	assert.ErrorIs(t, service.Search(session.ID, "anything"), aggregation.ErrSessionNotFound)
}

package aggregation

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/cinelog/cinelog/internal/event"
	"github.com/cinelog/cinelog/internal/genre"
	"github.com/cinelog/cinelog/internal/http/tmdb"
	"github.com/cinelog/cinelog/internal/movie"
	"github.com/cinelog/cinelog/internal/ratings"
	"github.com/cinelog/cinelog/pkg/logger"
	"github.com/google/uuid"
)

var log = logger.Get("Aggregation")

type (
	// searcher is the remote metadata provider the aggregation flow
	// searches and fetches movie detail from; satisfied by the TMDB
	// client.
	searcher interface {
		SearchByTitle(ctx context.Context, query string) ([]tmdb.SearchResultItem, error)
		FetchDetails(ctx context.Context, externalID string) (*tmdb.MovieDetail, error)
	}

	// ratingsSource is one of the two rating providers, keyed by the
	// cross-reference ID the detail payload carries.
	ratingsSource interface {
		FetchRatings(ctx context.Context, detailRef string) ([]ratings.Observation, error)
	}

	// catalogWriter is the slice of the catalog service the aggregation
	// flow needs to detect duplicates and persist candidates.
	catalogWriter interface {
		Get(movieID int64) (*movie.Record, error)
		GetByExternalID(externalID string) (*movie.Record, error)
		FindByExactTitle(title string) (*movie.Record, error)
		SaveAggregated(record *movie.Record, genres []genre.Genre, replaceID int64) error
	}

	// Service owns the in-flight aggregation sessions and drives each one
	// through its state machine: query entry, search, disambiguation,
	// concurrent detail/rating fetches, and the save/merge decision.
	Service struct {
		mu       sync.Mutex
		sessions map[uuid.UUID]*Session
		rootCtx  context.Context

		searcher  searcher
		primary   ratingsSource
		secondary ratingsSource
		catalog   catalogWriter
		art       artworkResolver
		genres    genreResolver
		bus       event.EventDispatcher
	}
)

func New(searcher searcher, primary ratingsSource, secondary ratingsSource, catalog catalogWriter, art artworkResolver, genres genreResolver, bus event.EventDispatcher) *Service {
	return &Service{
		sessions:  make(map[uuid.UUID]*Session),
		rootCtx:   context.Background(),
		searcher:  searcher,
		primary:   primary,
		secondary: secondary,
		catalog:   catalog,
		art:       art,
		genres:    genres,
		bus:       bus,
	}
}

// Run parents every session context to the provided context and blocks
// until it's cancelled, at which point all open sessions are torn down.
func (service *Service) Run(ctx context.Context) error {
	service.mu.Lock()
	service.rootCtx = ctx
	service.mu.Unlock()

	<-ctx.Done()

	service.mu.Lock()
	defer service.mu.Unlock()
	for _, session := range service.sessions {
		session.cancel()
	}
	service.sessions = make(map[uuid.UUID]*Session)

	return nil
}

// NewSession opens a fresh session in the Entry state.
func (service *Service) NewSession() SessionSnapshot {
	service.mu.Lock()
	defer service.mu.Unlock()

	session := newSession(service.rootCtx)
	service.sessions[session.ID] = session

	log.Emit(logger.DEBUG, "Opened aggregation session %s\n", session.ID)
	return session.Snapshot()
}

// GetSession returns a snapshot of the identified session.
func (service *Service) GetSession(sessionID uuid.UUID) (SessionSnapshot, error) {
	session, err := service.session(sessionID)
	if err != nil {
		return SessionSnapshot{}, err
	}

	return session.Snapshot(), nil
}

// ListSessions snapshots every open session.
func (service *Service) ListSessions() []SessionSnapshot {
	service.mu.Lock()
	defer service.mu.Unlock()

	snapshots := make([]SessionSnapshot, 0, len(service.sessions))
	for _, session := range service.sessions {
		snapshots = append(snapshots, session.Snapshot())
	}

	return snapshots
}

// CloseSession cancels any in-flight work and discards the session.
func (service *Service) CloseSession(sessionID uuid.UUID) error {
	service.mu.Lock()
	defer service.mu.Unlock()

	session, ok := service.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}

	session.cancel()
	delete(service.sessions, sessionID)

	log.Emit(logger.DEBUG, "Closed aggregation session %s\n", sessionID)
	return nil
}

// Search kicks off a remote title search for the session. The session
// moves to Searching immediately; the result lands asynchronously as an
// outcome-carrying state update. A search is legal from any settled state,
// allowing the user to abandon results or a pending choice by simply
// searching again.
func (service *Service) Search(sessionID uuid.UUID, query string) error {
	session, err := service.session(sessionID)
	if err != nil {
		return err
	}

	session.mu.Lock()
	if session.state == StateSearching || session.state == StateFetchingDetail {
		session.mu.Unlock()
		return ErrIllegalTransition
	}

	session.reset(NoticeNone)
	session.state = StateSearching
	session.query = query
	session.outcome = LoadingOutcome()
	ctx := session.ctx
	session.mu.Unlock()

	service.dispatchUpdate(session)
	go service.performSearch(session, ctx, query)

	return nil
}

// Select resolves a multi-match disambiguation: the user picked one of the
// result stubs and the session proceeds to the concurrent detail and
// rating fetches.
func (service *Service) Select(sessionID uuid.UUID, externalID string) error {
	session, err := service.session(sessionID)
	if err != nil {
		return err
	}

	session.mu.Lock()
	if session.state != StateResults {
		session.mu.Unlock()
		return ErrIllegalTransition
	}

	found := false
	for _, stub := range OutcomeToList(session.outcome) {
		if stub.ExternalID == externalID {
			found = true
			break
		}
	}
	if !found {
		session.mu.Unlock()
		return ErrUnknownCandidate
	}

	session.state = StateFetchingDetail
	ctx := session.ctx
	session.mu.Unlock()

	service.dispatchUpdate(session)
	go service.fetchCandidate(session, ctx, externalID)

	return nil
}

// Save persists the session's aggregated candidate according to the merge
// policy: a record already referencing the same external ID is refreshed
// in place (watch history and creation time preserved, archived records
// resurfaced); a clean candidate is inserted; an exact-title collision
// with a different record is held as a conflict for the user to resolve.
func (service *Service) Save(sessionID uuid.UUID) error {
	session, err := service.session(sessionID)
	if err != nil {
		return err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	if session.state != StateChoice || session.candidate == nil {
		return ErrNoCandidate
	}

	candidate := session.candidate
	existing, err := service.catalog.GetByExternalID(candidate.ExternalID)
	if err != nil {
		session.notice = NoticeStoreFailure
		service.dispatchUpdate(session)
		return fmt.Errorf("failed to check for existing record: %w", err)
	}

	if existing == nil {
		titleMatch, err := service.catalog.FindByExactTitle(candidate.Title)
		if err != nil {
			session.notice = NoticeStoreFailure
			service.dispatchUpdate(session)
			return fmt.Errorf("failed to check for title collision: %w", err)
		}

		if titleMatch != nil {
			session.conflict = &TitleConflict{ExistingID: titleMatch.ID, ExistingTitle: titleMatch.Title}
			service.dispatchUpdate(session)
			return &DuplicateTitleError{Conflict: *session.conflict}
		}

		return service.persistCandidate(session, 0)
	}

	// Refresh: remote fields overwrite, local watch history and creation
	// time survive, and an archived record is pulled back into the
	// default list.
	candidate.ID = existing.ID
	candidate.CreatedAt = existing.CreatedAt
	candidate.WatchedAt = existing.WatchedAt
	candidate.Archived = false

	// An unchanged record still in the default list needs no write.
	if !existing.Archived && !candidate.HasSaveableChangesSince(existing) {
		log.Emit(logger.DEBUG, "Session %s candidate matches stored record %d; nothing to save\n", session.ID, existing.ID)
		session.reset(NoticeNone)
		service.dispatchUpdate(session)
		return nil
	}

	return service.persistCandidate(session, 0)
}

// ResolveConflict settles a pending duplicate-title collision. Overwrite
// replaces the existing record with the candidate, carrying the old watch
// history and creation time forward; discard drops the candidate and
// leaves the store untouched. Either way the session returns to Entry.
func (service *Service) ResolveConflict(sessionID uuid.UUID, overwrite bool) error {
	session, err := service.session(sessionID)
	if err != nil {
		return err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	if session.state != StateChoice || session.conflict == nil {
		return ErrIllegalTransition
	}

	if !overwrite {
		session.reset(NoticeNone)
		service.dispatchUpdate(session)
		return nil
	}

	existing, err := service.catalog.Get(session.conflict.ExistingID)
	if err != nil {
		session.notice = NoticeStoreFailure
		service.dispatchUpdate(session)
		return fmt.Errorf("failed to load record being overwritten: %w", err)
	}

	session.candidate.CreatedAt = existing.CreatedAt
	session.candidate.WatchedAt = existing.WatchedAt
	session.candidate.Archived = false

	return service.persistCandidate(session, existing.ID)
}

// Cancel aborts whatever the session is doing. In-flight fetches are
// cancelled and their late results suppressed; the session returns to
// Entry with a fresh context, ready for another search. No store write
// the cancelled work would have made survives.
func (service *Service) Cancel(sessionID uuid.UUID) error {
	session, err := service.session(sessionID)
	if err != nil {
		return err
	}

	service.mu.Lock()
	rootCtx := service.rootCtx
	service.mu.Unlock()

	session.mu.Lock()
	session.cancel()
	session.ctx, session.cancel = context.WithCancel(rootCtx)
	session.reset(NoticeNone)
	session.mu.Unlock()

	service.dispatchUpdate(session)
	return nil
}

// persistCandidate commits the session's candidate via the catalog write
// funnel and, on success, returns the session to Entry. Expects the
// session lock to be held.
func (service *Service) persistCandidate(session *Session, replaceID int64) error {
	if err := service.catalog.SaveAggregated(session.candidate, session.candidateGenres, replaceID); err != nil {
		session.notice = NoticeStoreFailure
		service.dispatchUpdate(session)
		return fmt.Errorf("failed to persist aggregated record: %w", err)
	}

	log.Emit(logger.SUCCESS, "Session %s saved record %q (id %d)\n", session.ID, session.candidate.Title, session.candidate.ID)
	session.reset(NoticeNone)
	service.dispatchUpdate(session)

	return nil
}

func (service *Service) performSearch(session *Session, ctx context.Context, query string) {
	results, err := service.searcher.SearchByTitle(ctx, query)

	session.mu.Lock()
	defer session.mu.Unlock()
	if ctx.Err() != nil {
		return
	}

	if err != nil {
		log.Emit(logger.ERROR, "Search for %q failed: %v\n", query, err)
		session.reset(NoticeConnectionFailure)
		session.outcome = FailedOutcome(err)
		service.dispatchUpdate(session)
		return
	}

	stubs := make([]SearchStub, 0, len(results))
	for i := range results {
		stubs = append(stubs, searchStub(ctx, &results[i], service.art))
	}

	switch len(stubs) {
	case 0:
		session.reset(NoticeEmptyResult)
		service.dispatchUpdate(session)
	case 1:
		// Lone match: skip disambiguation and fetch detail directly.
		session.outcome = SingleOutcome(stubs[0])
		session.state = StateFetchingDetail
		service.dispatchUpdate(session)
		go service.fetchCandidate(session, ctx, stubs[0].ExternalID)
	default:
		orderByRelevance(stubs, query)
		session.outcome = MultipleOutcome(stubs)
		session.state = StateResults
		service.dispatchUpdate(session)
	}
}

// fetchCandidate runs the three remote legs of an aggregation. Detail is
// fetched from the search provider; the two rating sources wait on the
// cross-reference ID the detail payload carries and then run concurrently.
// A detail failure abandons the aggregation; a rating failure only costs
// that source's observations.
func (service *Service) fetchCandidate(session *Session, ctx context.Context, externalID string) {
	type detailResult struct {
		detail *tmdb.MovieDetail
		err    error
	}

	detailCh := make(chan detailResult, 1)
	primaryKeyCh := make(chan string, 1)
	secondaryKeyCh := make(chan string, 1)
	primaryCh := make(chan []ratings.Observation, 1)
	secondaryCh := make(chan []ratings.Observation, 1)

	go func() {
		detail, err := service.searcher.FetchDetails(ctx, externalID)
		if err != nil {
			close(primaryKeyCh)
			close(secondaryKeyCh)
			detailCh <- detailResult{err: err}
			return
		}

		primaryKeyCh <- detail.ImdbID
		secondaryKeyCh <- detail.ImdbID
		detailCh <- detailResult{detail: detail}
	}()

	fetchRatings := func(source ratingsSource, keyCh <-chan string, out chan<- []ratings.Observation, label string) {
		key, ok := <-keyCh
		if !ok || key == "" {
			out <- nil
			return
		}

		observations, err := source.FetchRatings(ctx, key)
		if err != nil {
			log.Emit(logger.WARNING, "Ratings fetch from %s for %s failed (continuing without): %v\n", label, key, err)
			out <- nil
			return
		}

		out <- observations
	}

	go fetchRatings(service.primary, primaryKeyCh, primaryCh, "primary source")
	go fetchRatings(service.secondary, secondaryKeyCh, secondaryCh, "secondary source")

	detail := <-detailCh
	primaryObs := <-primaryCh
	secondaryObs := <-secondaryCh

	session.mu.Lock()
	defer session.mu.Unlock()
	if ctx.Err() != nil {
		return
	}

	if detail.err != nil {
		log.Emit(logger.ERROR, "Detail fetch for %s failed: %v\n", externalID, detail.err)
		session.reset(NoticeConnectionFailure)
		service.dispatchUpdate(session)
		return
	}

	record, candidateGenres := buildCandidate(ctx, detail.detail, ratings.Reconcile(primaryObs, secondaryObs), service.art, service.genres)
	session.candidate = record
	session.candidateGenres = candidateGenres
	session.state = StateChoice
	service.dispatchUpdate(session)
}

func (service *Service) session(sessionID uuid.UUID) (*Session, error) {
	service.mu.Lock()
	defer service.mu.Unlock()

	session, ok := service.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	return session, nil
}

// dispatchUpdate announces a state-machine advance. The payload is only
// the session ID; subscribers re-read via GetSession. Often called with
// the session lock held, so subscribers must consume asynchronously
// (buffered channel or async handler) rather than snapshotting inline.
func (service *Service) dispatchUpdate(session *Session) {
	service.bus.Dispatch(event.AGGREGATION_UPDATE, session.ID)
}

// orderByRelevance sorts disambiguation stubs by textual similarity to the
// query, most similar first. The sort is stable, preserving the remote
// provider's own popularity ordering between equally-similar titles.
func orderByRelevance(stubs []SearchStub, query string) {
	metric := metrics.NewJaroWinkler()
	type scored struct {
		stub       SearchStub
		similarity float64
	}

	ranked := make([]scored, len(stubs))
	for i, stub := range stubs {
		ranked[i] = scored{stub, strutil.Similarity(stub.Title, query, metric)}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].similarity > ranked[j].similarity
	})
	for i := range ranked {
		stubs[i] = ranked[i].stub
	}
}

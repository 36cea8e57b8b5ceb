package aggregation

import (
	"context"
	"sync"

	"github.com/cinelog/cinelog/internal/genre"
	"github.com/cinelog/cinelog/internal/movie"
	"github.com/google/uuid"
)

// SessionState enumerates the states of one search/aggregation session.
type SessionState int

const (
	// StateEntry is both the initial state and the safe state every
	// cancel, failure or completed save returns to.
	StateEntry SessionState = iota
	StateSearching
	StateResults
	StateFetchingDetail
	// StateChoice holds a fully-aggregated candidate awaiting the user's
	// save decision (and, possibly, a duplicate-title resolution).
	StateChoice
)

func (state SessionState) String() string {
	return []string{"ENTRY", "SEARCHING", "RESULTS", "FETCHING_DETAIL", "CHOICE"}[state]
}

// NoticeKind identifies the dismissible notice (if any) the presentation
// layer should surface for a session.
type NoticeKind int

const (
	NoticeNone NoticeKind = iota
	NoticeEmptyResult
	NoticeConnectionFailure
	NoticeStoreFailure
)

type (
	// SearchStub is the list-view shape of one remote search match:
	// just enough to render a disambiguation row.
	SearchStub struct {
		ExternalID string
		Title      string
		Year       *int
		ThumbURL   string
		Plot       string
	}

	// TitleConflict describes a pending duplicate-title collision: the
	// assembled candidate matches the title of an existing local record
	// carrying a different external ID. The user resolves it by choosing
	// overwrite or discard.
	TitleConflict struct {
		ExistingID    int64
		ExistingTitle string
	}

	// Session is a single in-flight aggregation, from query entry through
	// candidate save. All mutation happens under the session mutex via the
	// owning service; the context governs every network leg so one cancel
	// stops the whole session and suppresses stale results.
	Session struct {
		ID uuid.UUID

		mu       sync.Mutex
		state    SessionState
		notice   NoticeKind
		query    string
		outcome  SearchOutcome
		conflict *TitleConflict

		candidate       *movie.Record
		candidateGenres []genre.Genre

		ctx    context.Context
		cancel context.CancelFunc
	}

	// SessionSnapshot is the immutable view of a session handed to the
	// presentation layer.
	SessionSnapshot struct {
		ID        uuid.UUID
		State     SessionState
		Notice    NoticeKind
		Query     string
		Outcome   SearchOutcome
		Conflict  *TitleConflict
		Candidate *movie.Record
	}
)

func newSession(parent context.Context) *Session {
	ctx, cancel := context.WithCancel(parent)
	return &Session{
		ID:      uuid.New(),
		state:   StateEntry,
		outcome: SearchOutcome{Kind: OutcomeEmpty},
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Snapshot captures the session's current state under its lock.
func (session *Session) Snapshot() SessionSnapshot {
	session.mu.Lock()
	defer session.mu.Unlock()

	return SessionSnapshot{
		ID:        session.ID,
		State:     session.state,
		Notice:    session.notice,
		Query:     session.query,
		Outcome:   session.outcome,
		Conflict:  session.conflict,
		Candidate: session.candidate,
	}
}

// reset returns the session to Entry, dropping any results, candidate and
// conflict, and installing the provided notice (NoticeNone for a silent
// reset).
func (session *Session) reset(notice NoticeKind) {
	session.state = StateEntry
	session.notice = notice
	session.outcome = EmptyOutcome()
	session.conflict = nil
	session.candidate = nil
	session.candidateGenres = nil
}

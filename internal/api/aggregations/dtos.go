package aggregations

import (
	"github.com/cinelog/cinelog/internal/aggregation"
	"github.com/cinelog/cinelog/internal/api/movies"
	"github.com/cinelog/cinelog/internal/api/util"
	"github.com/google/uuid"
)

type (
	SessionStateDto string
	NoticeDto       string
	OutcomeKindDto  string

	SearchStubDto struct {
		ExternalID string `json:"external_id"`
		Title      string `json:"title"`
		Year       *int   `json:"release_year"`
		ThumbURL   string `json:"thumb_url"`
		Plot       string `json:"plot"`
	}

	OutcomeDto struct {
		Kind    OutcomeKindDto  `json:"kind"`
		Results []SearchStubDto `json:"results"`
	}

	ConflictDto struct {
		ExistingID    int64  `json:"existing_id"`
		ExistingTitle string `json:"existing_title"`
	}

	// SessionDto is the full client-facing view of one aggregation
	// session.
	SessionDto struct {
		ID        uuid.UUID        `json:"id"`
		State     SessionStateDto  `json:"state"`
		Notice    NoticeDto        `json:"notice"`
		Query     string           `json:"query"`
		Outcome   OutcomeDto       `json:"outcome"`
		Conflict  *ConflictDto     `json:"conflict"`
		Candidate *movies.MovieDto `json:"candidate"`
	}
)

const (
	ENTRY           SessionStateDto = "ENTRY"
	SEARCHING       SessionStateDto = "SEARCHING"
	RESULTS         SessionStateDto = "RESULTS"
	FETCHING_DETAIL SessionStateDto = "FETCHING_DETAIL"
	CHOICE          SessionStateDto = "CHOICE"

	NOTICE_NONE               NoticeDto = "NONE"
	NOTICE_EMPTY_RESULT       NoticeDto = "EMPTY_RESULT"
	NOTICE_CONNECTION_FAILURE NoticeDto = "CONNECTION_FAILURE"
	NOTICE_STORE_FAILURE      NoticeDto = "STORE_FAILURE"

	OUTCOME_LOADING  OutcomeKindDto = "LOADING"
	OUTCOME_EMPTY    OutcomeKindDto = "EMPTY"
	OUTCOME_SINGLE   OutcomeKindDto = "SINGLE"
	OUTCOME_MULTIPLE OutcomeKindDto = "MULTIPLE"
	OUTCOME_FAILED   OutcomeKindDto = "FAILED"
)

func NewDto(snapshot aggregation.SessionSnapshot) SessionDto {
	dto := SessionDto{
		ID:      snapshot.ID,
		State:   stateModelToDto(snapshot.State),
		Notice:  noticeModelToDto(snapshot.Notice),
		Query:   snapshot.Query,
		Outcome: newOutcomeDto(snapshot.Outcome),
	}

	if snapshot.Conflict != nil {
		conflict := NewConflictDto(*snapshot.Conflict)
		dto.Conflict = &conflict
	}
	if snapshot.Candidate != nil {
		candidate := movies.NewDto(snapshot.Candidate)
		dto.Candidate = &candidate
	}

	return dto
}

func NewConflictDto(conflict aggregation.TitleConflict) ConflictDto {
	return ConflictDto{ExistingID: conflict.ExistingID, ExistingTitle: conflict.ExistingTitle}
}

func newOutcomeDto(outcome aggregation.SearchOutcome) OutcomeDto {
	return OutcomeDto{
		Kind:    outcomeKindModelToDto(outcome.Kind),
		Results: util.ApplyConversion(aggregation.OutcomeToList(outcome), newSearchStubDto),
	}
}

func newSearchStubDto(stub aggregation.SearchStub) SearchStubDto {
	return SearchStubDto{
		ExternalID: stub.ExternalID,
		Title:      stub.Title,
		Year:       stub.Year,
		ThumbURL:   stub.ThumbURL,
		Plot:       stub.Plot,
	}
}

func stateModelToDto(state aggregation.SessionState) SessionStateDto {
	switch state {
	case aggregation.StateEntry:
		return ENTRY
	case aggregation.StateSearching:
		return SEARCHING
	case aggregation.StateResults:
		return RESULTS
	case aggregation.StateFetchingDetail:
		return FETCHING_DETAIL
	case aggregation.StateChoice:
		return CHOICE
	}

	return ENTRY
}

func noticeModelToDto(notice aggregation.NoticeKind) NoticeDto {
	switch notice {
	case aggregation.NoticeEmptyResult:
		return NOTICE_EMPTY_RESULT
	case aggregation.NoticeConnectionFailure:
		return NOTICE_CONNECTION_FAILURE
	case aggregation.NoticeStoreFailure:
		return NOTICE_STORE_FAILURE
	default:
		return NOTICE_NONE
	}
}

func outcomeKindModelToDto(kind aggregation.SearchOutcomeKind) OutcomeKindDto {
	switch kind {
	case aggregation.OutcomeLoading:
		return OUTCOME_LOADING
	case aggregation.OutcomeSingle:
		return OUTCOME_SINGLE
	case aggregation.OutcomeMultiple:
		return OUTCOME_MULTIPLE
	case aggregation.OutcomeFailed:
		return OUTCOME_FAILED
	default:
		return OUTCOME_EMPTY
	}
}

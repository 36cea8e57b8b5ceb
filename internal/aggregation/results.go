package aggregation

// SearchOutcomeKind discriminates the variants of a SearchOutcome.
type SearchOutcomeKind int

const (
	OutcomeLoading SearchOutcomeKind = iota
	OutcomeEmpty
	OutcomeSingle
	OutcomeMultiple
	OutcomeFailed
)

// SearchOutcome is a tagged union over the possible results of a title
// search: still loading, no matches, exactly one match, several matches,
// or a transport failure. Exactly the field matching Kind is populated.
type SearchOutcome struct {
	Kind     SearchOutcomeKind
	Single   *SearchStub
	Multiple []SearchStub
	Err      error
}

func LoadingOutcome() SearchOutcome          { return SearchOutcome{Kind: OutcomeLoading} }
func EmptyOutcome() SearchOutcome            { return SearchOutcome{Kind: OutcomeEmpty} }
func FailedOutcome(err error) SearchOutcome  { return SearchOutcome{Kind: OutcomeFailed, Err: err} }
func SingleOutcome(stub SearchStub) SearchOutcome {
	return SearchOutcome{Kind: OutcomeSingle, Single: &stub}
}
func MultipleOutcome(stubs []SearchStub) SearchOutcome {
	return SearchOutcome{Kind: OutcomeMultiple, Multiple: stubs}
}

// OutcomeToList flattens any outcome into the list of stubs it carries;
// loading, empty and failed outcomes yield an empty list.
func OutcomeToList(outcome SearchOutcome) []SearchStub {
	switch outcome.Kind {
	case OutcomeSingle:
		return []SearchStub{*outcome.Single}
	case OutcomeMultiple:
		return outcome.Multiple
	default:
		return []SearchStub{}
	}
}

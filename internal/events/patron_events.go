package events

const PatronActiveLoansEventName = "patron.active_loans"

// PatronActiveLoansEvent is published when a patron could not be anonymized
// because of loans still in progress.
type PatronActiveLoansEvent struct {
	UserID uint64
	Email  string
}

func (e PatronActiveLoansEvent) Name() string {
	return PatronActiveLoansEventName
}

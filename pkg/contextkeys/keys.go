package contextkeys

type contextKey string

const (
	// SubjectKey holds the subject of the token that authenticated the request.
	SubjectKey contextKey = "Subject"
	// ScopeKey holds its scope.
	ScopeKey contextKey = "Scope"
)

// SyncScope is the scope required to trigger directory synchronization.
const SyncScope = "sync"

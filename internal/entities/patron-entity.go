package entities

// PatronDocument is what the patron index stores for a user.
type PatronDocument struct {
	ID         uint64 `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	PersonID   string `json:"person_id"`
	Department string `json:"department,omitempty"`
}

package entities

// UserIdentity links a user to the SSO account; ID holds the LDAP uidNumber.
type UserIdentity struct {
	ID     string `json:"id" db:"id"`
	Method string `json:"method" db:"method"`
	UserID uint64 `json:"user_id" db:"user_id"`
}

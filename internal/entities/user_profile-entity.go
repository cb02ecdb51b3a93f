package entities

import "fmt"

type UserProfile struct {
	UserID   uint64 `json:"user_id" db:"user_id"`
	Username string `json:"username" db:"username"`
	FullName string `json:"full_name" db:"full_name"`
}

// ProfileUsername is the display name given to imported accounts.
func ProfileUsername(userID uint64) string {
	return fmt.Sprintf("id_%d", userID)
}

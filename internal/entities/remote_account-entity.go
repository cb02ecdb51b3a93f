package entities

import (
	"github.com/aarondl/null/v8"

	"cds-ils/pkg/types"
)

// RemoteAccountExtraData is the JSONB payload of a remote account.
// Department is null for accounts imported before departments were synced.
type RemoteAccountExtraData struct {
	PersonID   string      `json:"person_id"`
	Department null.String `json:"department"`
}

type RemoteAccount struct {
	ID        uint64                 `json:"id" db:"id"`
	ClientID  string                 `json:"client_id" db:"client_id"`
	UserID    uint64                 `json:"user_id" db:"user_id"`
	ExtraData RemoteAccountExtraData `json:"extra_data" db:"extra_data"`

	types.BaseEntity
}

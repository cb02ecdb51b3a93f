package entities

import "cds-ils/pkg/types"

// User is the account row. Email is stored lowercased.
type User struct {
	ID     uint64 `json:"id" db:"id"`
	Email  string `json:"email" db:"email"`
	Active bool   `json:"active" db:"active"`

	types.BaseEntity
}

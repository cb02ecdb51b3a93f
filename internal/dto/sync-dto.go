package dto

import (
	"time"

	"github.com/aarondl/null/v8"
)

const (
	SyncActionUpdate = "update"
	SyncActionImport = "import"
	SyncActionDelete = "delete"
)

// SyncRequestDTO is the body of POST /api/sync/ldap.
type SyncRequestDTO struct {
	Action string `json:"action" validate:"required,oneof=update import delete"`
	// DryRun only matters for deletions and defaults to true there.
	DryRun *bool `json:"dry_run"`
}

// IsDryRun applies the default.
func (r SyncRequestDTO) IsDryRun() bool {
	if r.DryRun == nil {
		return true
	}
	return *r.DryRun
}

// SyncChangeDTO records one user touched by a run.
type SyncChangeDTO struct {
	Kind               string      `json:"kind"`
	UserID             uint64      `json:"user_id"`
	PersonID           string      `json:"person_id"`
	PreviousName       string      `json:"previous_name,omitempty"`
	NewName            string      `json:"new_name,omitempty"`
	PreviousDepartment null.String `json:"previous_department"`
	NewDepartment      string      `json:"new_department,omitempty"`
	PreviousEmail      string      `json:"previous_email,omitempty"`
	NewEmail           string      `json:"new_email,omitempty"`
}

// SyncSkippedDTO records a directory entry or local user left untouched, with the reason.
type SyncSkippedDTO struct {
	Reason   string `json:"reason"`
	PersonID string `json:"person_id,omitempty"`
	Email    string `json:"email,omitempty"`
	UserID   uint64 `json:"user_id,omitempty"`
}

type SyncResultDTO struct {
	RunID     string           `json:"run_id"`
	Action    string           `json:"action"`
	DryRun    bool             `json:"dry_run"`
	StartedAt time.Time        `json:"started_at"`
	Duration  time.Duration    `json:"duration"`
	LDAPUsers int              `json:"ldap_users"`
	Updated   int              `json:"updated"`
	Added     int              `json:"added"`
	Deleted   int              `json:"deleted"`
	Changes   []SyncChangeDTO  `json:"changes"`
	Skipped   []SyncSkippedDTO `json:"skipped"`
}

// SyncAcceptedDTO is returned when a run was started in the background.
type SyncAcceptedDTO struct {
	Action string `json:"action"`
	DryRun bool   `json:"dry_run"`
}

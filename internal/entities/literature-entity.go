package entities

import "time"

// LiteratureRecord is a stored literature document. Metadata is kept as decoded JSON.
type LiteratureRecord struct {
	PID      string                 `json:"pid" db:"pid"`
	Metadata map[string]interface{} `json:"metadata" db:"metadata"`
	Created  time.Time              `json:"created" db:"created_at"`
	Updated  time.Time              `json:"updated" db:"updated_at"`
}

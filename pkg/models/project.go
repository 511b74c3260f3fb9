package models

import (
	"time"

	"github.com/google/uuid"
)

// Project is one event (a wedding, a reunion) that guests upload media to.
// Project CRUD lives outside this service; the job engine only reads projects
// and publishes the finished highlight reel URL back onto them.
type Project struct {
	ID               uuid.UUID `db:"id"                 json:"id"`
	AccountID        uuid.UUID `db:"account_id"         json:"account_id"`
	Name             string    `db:"name"               json:"name"`
	HighlightReelURL *string   `db:"highlight_reel_url" json:"highlight_reel_url,omitempty"`
	CreatedAt        time.Time `db:"created_at"         json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"         json:"updated_at"`
}

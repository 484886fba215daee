package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the minimal slice of the profile service this engine reads:
// identity plus the push device token registered elsewhere.
type User struct {
	ID           uuid.UUID `json:"id"`
	DisplayName  *string   `json:"display_name,omitempty"`
	DeviceToken  *string   `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

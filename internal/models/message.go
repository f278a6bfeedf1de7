package models

import "time"

// Message represents a chat message within a lobby. Messages are
// append-only; the timestamp is assigned by the server when the row
// is stored.
type Message struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	LobbyRef  uint      `gorm:"not null;index" json:"-"`
	Username  string    `gorm:"size:255;not null" json:"username"`
	Text      string    `gorm:"not null" json:"text"`
	CreatedAt time.Time `json:"timestamp"`
}

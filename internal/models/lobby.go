package models

import "gorm.io/gorm"

// Lobby capacity is deliberately small: study groups of 2 to 4 students.
const (
	MinLobbyUsers = 2
	MaxLobbyUsers = 4
)

// Lobby represents a study-group session for a class at a school.
// The durable record mirrors the live session: Host is always a member
// while the lobby exists, and CurrentUsers equals len(Users).
type Lobby struct {
	gorm.Model
	LobbyID      string `gorm:"size:64;uniqueIndex;not null"`
	Name         string `gorm:"size:255;not null"`
	ClassName    string `gorm:"size:255;not null;index:idx_lobbies_class_school"`
	School       string `gorm:"size:255;not null;index:idx_lobbies_class_school"`
	Host         string `gorm:"size:255;not null"` // host's username
	MaxUsers     int    `gorm:"not null;default:4"`
	CurrentUsers int    `gorm:"not null;default:1"`

	Users    []LobbyUser `gorm:"foreignKey:LobbyRef;references:ID;constraint:OnDelete:CASCADE"`
	Messages []Message   `gorm:"foreignKey:LobbyRef;references:ID;constraint:OnDelete:CASCADE"`
}

// Usernames returns the usernames of the lobby's members.
func (l *Lobby) Usernames() []string {
	names := make([]string, 0, len(l.Users))
	for _, u := range l.Users {
		names = append(names, u.Username)
	}
	return names
}

// HasUser reports whether username is a member of the lobby.
func (l *Lobby) HasUser(username string) bool {
	for _, u := range l.Users {
		if u.Username == username {
			return true
		}
	}
	return false
}

// LobbyUser is a single membership row. A username appears at most once
// per lobby.
type LobbyUser struct {
	ID       uint   `gorm:"primaryKey" json:"-"`
	LobbyRef uint   `gorm:"not null;uniqueIndex:idx_lobby_users_member" json:"-"`
	Username string `gorm:"size:255;not null;uniqueIndex:idx_lobby_users_member" json:"username"`
}

package models

import "gorm.io/gorm"

// User represents a registered student.
type User struct {
	gorm.Model
	Username     string   `gorm:"size:255;unique;not null"`
	Email        string   `gorm:"size:255;unique;not null"`
	PasswordHash string   `gorm:"size:255;not null"`
	School       string   `gorm:"size:255"`
	Classes      []string `gorm:"serializer:json"`

	// Users must verify their email address before they can log in.
	IsVerified bool `gorm:"not null;default:false"`
}

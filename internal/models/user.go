package models

import "time"

// RoleAdmin is the role of the administrative account users chat with.
const RoleAdmin = "admin"

// User is the subset of a user record the messaging core reads.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name,omitempty"`
	Email        string    `json:"email,omitempty"`
	ProfileImage string    `json:"profileImage,omitempty"`
	FCMToken     string    `json:"-"`
	Role         string    `json:"role,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

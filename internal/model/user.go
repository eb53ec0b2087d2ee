package model

import "time"

// Role is the access level of an authenticated user.
type Role string

const (
	RoleDoctor     Role = "doctor"
	RoleResearcher Role = "researcher"
	RoleAdmin      Role = "admin"
)

// User is an authenticated clinician or researcher.
// PasswordHash is never serialized.
type User struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"`
	Role           Role      `json:"role"`
	Specialization string    `json:"specialization,omitempty"`
	LicenseNumber  string    `json:"licenseNumber,omitempty"`
	IsActive       bool      `json:"isActive"`
	CreatedAt      time.Time `json:"createdAt"`
}

// UserSummary is the joined view of a user embedded in other records.
type UserSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

package models

import "time"

type UserRole string

const (
	RoleAdmin     UserRole = "admin"
	RoleOrganizer UserRole = "organizer"
	RolePlayer    UserRole = "player"
)

// User is the subset of the account record needed for authorization.
type User struct {
	ID        string    `json:"id" db:"id"`
	Nickname  string    `json:"nickname" db:"nickname"`
	Role      UserRole  `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

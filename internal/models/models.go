package models

import "time"

// Role grants Name within Realm. Realm mirrors the database a user belongs to
// (e.g. "entree", "entree_test").
type Role struct {
	Name  string `json:"role"`
	Realm string `json:"db"`
}

type User struct {
	ID           string    `json:"id"`
	Realm        string    `json:"realm"`
	Username     string    `json:"user"`
	PasswordHash string    `json:"-"`
	Roles        []Role    `json:"roles"`
	CreatedAt    time.Time `json:"created_at"`
}

// SeedSpec describes one user the seed command recreates from scratch.
type SeedSpec struct {
	Realm    string
	Username string
	Password string
	Roles    []Role
}

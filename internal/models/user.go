package models

import "github.com/google/uuid"

// DefaultStatus is assigned to every new user.
const DefaultStatus = "I am new!"

type User struct {
	ID           uuid.UUID `json:"_id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Status       string    `json:"status"`
	// Posts holds the ids of posts the user owns.
	Posts []string `json:"posts"`
}

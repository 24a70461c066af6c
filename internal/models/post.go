package models

import (
	"time"

	"github.com/google/uuid"
)

// Creator is the owner reference embedded in a post.
type Creator struct {
	ID   uuid.UUID `json:"_id"`
	Name string    `json:"name"`
}

type Post struct {
	ID        uuid.UUID `json:"_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	ImageURL  string    `json:"imageUrl"`
	Creator   Creator   `json:"creator"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PostEvent is the payload broadcast on the "posts" channel. Post is the full
// post for create and update, and the post id for delete.
type PostEvent struct {
	Action string `json:"action"`
	Post   any    `json:"post"`
}

const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

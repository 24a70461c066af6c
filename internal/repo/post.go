package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/crucial707/postfeed/internal/models"
	"github.com/google/uuid"
)

// ========================
// REPOSITORY STRUCT
// ========================

type PostRepo struct {
	DB *sql.DB
}

func NewPostRepo(db *sql.DB) *PostRepo {
	return &PostRepo{DB: db}
}

// postColumns selects a post joined with its creator (aliases p and u).
const postColumns = `p.id, p.title, p.content, p.image_url, p.creator_id, u.name, p.created_at, p.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*models.Post, error) {
	var p models.Post
	err := row.Scan(
		&p.ID,
		&p.Title,
		&p.Content,
		&p.ImageURL,
		&p.Creator.ID,
		&p.Creator.Name,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ========================
// COUNT POSTS
// ========================

func (r *PostRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return n, nil
}

// ========================
// LIST POSTS, NEWEST FIRST
// ========================

func (r *PostRepo) ListPage(ctx context.Context, limit, offset int) ([]models.Post, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+postColumns+`
		 FROM posts p
		 JOIN users u ON u.id = p.creator_id
		 ORDER BY p.created_at DESC
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	posts := []models.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, *p)
	}
	return posts, rows.Err()
}

// ========================
// CREATE POST
// ========================

// Create inserts a post owned by creatorID. The owner's post set is the set
// of posts referencing it, so the insert also adds the post to that set.
func (r *PostRepo) Create(ctx context.Context, title, content, imageURL string, creatorID uuid.UUID) (*models.Post, error) {
	p := &models.Post{
		ID:       uuid.New(),
		Title:    title,
		Content:  content,
		ImageURL: imageURL,
		Creator:  models.Creator{ID: creatorID},
	}
	err := r.DB.QueryRowContext(ctx,
		`INSERT INTO posts (id, title, content, image_url, creator_id)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at, updated_at`,
		p.ID, title, content, imageURL, creatorID,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("create post: %w", err)
	}
	return p, nil
}

// ========================
// GET POST BY ID
// ========================

func (r *PostRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	p, err := scanPost(r.DB.QueryRowContext(ctx,
		`SELECT `+postColumns+`
		 FROM posts p
		 JOIN users u ON u.id = p.creator_id
		 WHERE p.id = $1`,
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	return p, nil
}

// lockOwned locks the post row for the rest of tx and checks ownership.
// It returns the current image reference.
func lockOwned(ctx context.Context, tx *sql.Tx, id, ownerID uuid.UUID) (string, error) {
	var creatorID uuid.UUID
	var imageURL string
	err := tx.QueryRowContext(ctx,
		`SELECT creator_id, image_url FROM posts WHERE id = $1 FOR UPDATE`,
		id,
	).Scan(&creatorID, &imageURL)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lock post: %w", err)
	}
	if creatorID != ownerID {
		return "", ErrNotOwner
	}
	return imageURL, nil
}

// ========================
// UPDATE POST (OWNER ONLY)
// ========================

// UpdateOwned replaces title, content and image of a post owned by ownerID.
// The ownership check and the write share one transaction. When keepImage is
// set, imageURL must equal the post's current reference or ErrImageMismatch
// is returned. It returns the updated post and the image reference it had
// before the update.
func (r *PostRepo) UpdateOwned(ctx context.Context, id, ownerID uuid.UUID, title, content, imageURL string, keepImage bool) (*models.Post, string, error) {
	var updated *models.Post
	var previous string

	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		var err error
		previous, err = lockOwned(ctx, tx, id, ownerID)
		if err != nil {
			return err
		}
		if keepImage && imageURL != previous {
			return ErrImageMismatch
		}

		updated, err = scanPost(tx.QueryRowContext(ctx,
			`UPDATE posts p
			 SET title = $1, content = $2, image_url = $3, updated_at = NOW()
			 FROM users u
			 WHERE p.id = $4 AND u.id = p.creator_id
			 RETURNING `+postColumns,
			title, content, imageURL, id,
		))
		if err != nil {
			return fmt.Errorf("update post: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return updated, previous, nil
}

// ========================
// DELETE POST (OWNER ONLY)
// ========================

// DeleteOwned removes a post owned by ownerID and returns its image reference.
// Removing the row also removes it from the owner's post set.
func (r *PostRepo) DeleteOwned(ctx context.Context, id, ownerID uuid.UUID) (string, error) {
	var imageURL string

	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		var err error
		imageURL, err = lockOwned(ctx, tx, id, ownerID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete post: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return imageURL, nil
}

// ========================
// LIST IMAGE REFERENCES
// ========================

func (r *PostRepo) ImageURLs(ctx context.Context) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT image_url FROM posts`)
	if err != nil {
		return nil, fmt.Errorf("list image urls: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

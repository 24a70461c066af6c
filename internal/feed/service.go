// Package feed implements paginated listing and owner-only mutation of posts,
// including the lifecycle of each post's image and realtime notification.
package feed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/crucial707/postfeed/internal/apperr"
	"github.com/crucial707/postfeed/internal/metrics"
	"github.com/crucial707/postfeed/internal/models"
	"github.com/crucial707/postfeed/internal/repo"
	"github.com/crucial707/postfeed/internal/storage"
	"github.com/crucial707/postfeed/internal/validate"
	"github.com/google/uuid"
)

// PerPage is the fixed page size of ListPosts.
const PerPage = 2

// EventPosts is the realtime event name for post mutations.
const EventPosts = "posts"

type PostStore interface {
	Count(ctx context.Context) (int, error)
	ListPage(ctx context.Context, limit, offset int) ([]models.Post, error)
	Create(ctx context.Context, title, content, imageURL string, creatorID uuid.UUID) (*models.Post, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Post, error)
	UpdateOwned(ctx context.Context, id, ownerID uuid.UUID, title, content, imageURL string, keepImage bool) (*models.Post, string, error)
	DeleteOwned(ctx context.Context, id, ownerID uuid.UUID) (string, error)
	ImageURLs(ctx context.Context) ([]string, error)
}

type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type ImageStore interface {
	Accepts(contentType string) bool
	Save(filename, contentType string, r io.Reader) (string, error)
	Remove(ref string) error
	List() ([]storage.StoredImage, error)
}

// Notifier delivers an event to every connected realtime client.
type Notifier interface {
	Broadcast(event string, payload any)
}

type ActivityLog interface {
	Log(ctx context.Context, userID uuid.UUID, action string, postID uuid.UUID) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.AuditEntry, error)
}

// Upload is an image file attached to a create or update request.
type Upload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

type PostInput struct {
	Title   string `json:"title" validate:"min=5"`
	Content string `json:"content" validate:"min=5"`
}

// Page is one page of ListPosts.
type Page struct {
	Posts      []models.Post `json:"posts"`
	TotalItems int           `json:"totalItems"`
}

type Service struct {
	posts    PostStore
	users    UserLookup
	images   ImageStore
	notifier Notifier
	audit    ActivityLog

	// pending tracks asynchronous image removals.
	pending sync.WaitGroup
}

// NewService wires the service. audit may be nil.
func NewService(posts PostStore, users UserLookup, images ImageStore, notifier Notifier, audit ActivityLog) *Service {
	return &Service{
		posts:    posts,
		users:    users,
		images:   images,
		notifier: notifier,
		audit:    audit,
	}
}

var errPostNotFound = apperr.NotFound("Could not find post.")

func parsePostID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errPostNotFound
	}
	return id, nil
}

func (in *PostInput) check() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	return validate.Struct("Validation failed, entered data is incorrect.", *in)
}

// accepted drops uploads whose declared type is not an allowed image type.
func (s *Service) accepted(up *Upload) *Upload {
	if up == nil || up.Body == nil || !s.images.Accepts(up.ContentType) {
		return nil
	}
	return up
}

func (s *Service) saveImage(up *Upload) (string, error) {
	ref, err := s.images.Save(up.Filename, up.ContentType, up.Body)
	if errors.Is(err, storage.ErrUnsupportedType) {
		return "", apperr.Validation("No image provided.", nil)
	}
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "save image", err)
	}
	return ref, nil
}

// maxPage keeps the OFFSET of the last reachable page from overflowing int.
const maxPage = math.MaxInt/PerPage + 1

// ListPosts returns page (1-based, values below 1 mean 1) of posts, newest first.
func (s *Service) ListPosts(ctx context.Context, page int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if page > maxPage {
		page = maxPage
	}
	total, err := s.posts.Count(ctx)
	if err != nil {
		return nil, err
	}
	posts, err := s.posts.ListPage(ctx, PerPage, (page-1)*PerPage)
	if err != nil {
		return nil, err
	}
	return &Page{Posts: posts, TotalItems: total}, nil
}

// CreatePost stores a post owned by userID with the uploaded image and
// broadcasts it.
func (s *Service) CreatePost(ctx context.Context, userID uuid.UUID, in PostInput, up *Upload) (*models.Post, error) {
	if err := in.check(); err != nil {
		return nil, err
	}
	up = s.accepted(up)
	if up == nil {
		return nil, apperr.Validation("No image provided.", nil)
	}

	owner, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, apperr.NotFound("User not found.")
	}
	if err != nil {
		return nil, err
	}

	ref, err := s.saveImage(up)
	if err != nil {
		return nil, err
	}

	post, err := s.posts.Create(ctx, in.Title, in.Content, ref, owner.ID)
	if err != nil {
		s.removeImage(ref)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, apperr.NotFound("User not found.")
		}
		return nil, err
	}
	post.Creator.Name = owner.Name

	slog.Info("post created", "post_id", post.ID, "user_id", owner.ID)
	s.record(ctx, owner.ID, models.ActionCreate, post.ID)
	s.publish(models.ActionCreate, post)
	return post, nil
}

// GetPost returns a single post. Malformed ids are reported as not found.
func (s *Service) GetPost(ctx context.Context, postID string) (*models.Post, error) {
	id, err := parsePostID(postID)
	if err != nil {
		return nil, err
	}
	post, err := s.posts.GetByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, errPostNotFound
	}
	if err != nil {
		return nil, err
	}
	return post, nil
}

// UpdatePost replaces a post's fields. The image is the new upload when one
// is attached, otherwise existingImage, which must be the post's current
// reference. A replaced image file is removed.
func (s *Service) UpdatePost(ctx context.Context, userID uuid.UUID, postID string, in PostInput, up *Upload, existingImage string) (*models.Post, error) {
	id, err := parsePostID(postID)
	if err != nil {
		return nil, err
	}
	if err := in.check(); err != nil {
		return nil, err
	}
	up = s.accepted(up)
	existingImage = strings.TrimSpace(existingImage)
	if up == nil && existingImage == "" {
		return nil, apperr.Validation("No file picked.", nil)
	}

	ref := existingImage
	if up != nil {
		if ref, err = s.saveImage(up); err != nil {
			return nil, err
		}
	}

	post, previous, err := s.posts.UpdateOwned(ctx, id, userID, in.Title, in.Content, ref, up == nil)
	if err != nil {
		if up != nil {
			s.removeImage(ref)
		}
		switch {
		case errors.Is(err, repo.ErrNotFound):
			return nil, errPostNotFound
		case errors.Is(err, repo.ErrNotOwner):
			return nil, apperr.Forbidden("Not authorized!")
		case errors.Is(err, repo.ErrImageMismatch):
			return nil, apperr.Validation("No file picked.", nil)
		}
		return nil, err
	}
	if previous != ref {
		s.removeImage(previous)
	}

	slog.Info("post updated", "post_id", post.ID, "user_id", userID)
	s.record(ctx, userID, models.ActionUpdate, post.ID)
	s.publish(models.ActionUpdate, post)
	return post, nil
}

// DeletePost removes a post owned by userID together with its image.
func (s *Service) DeletePost(ctx context.Context, userID uuid.UUID, postID string) error {
	id, err := parsePostID(postID)
	if err != nil {
		return err
	}

	image, err := s.posts.DeleteOwned(ctx, id, userID)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return errPostNotFound
	case errors.Is(err, repo.ErrNotOwner):
		return apperr.Forbidden("Not authorized!")
	case err != nil:
		return err
	}
	s.removeImage(image)

	slog.Info("post deleted", "post_id", id, "user_id", userID)
	s.record(ctx, userID, models.ActionDelete, id)
	s.publish(models.ActionDelete, id.String())
	return nil
}

// Activity lists the user's recent post mutations, newest first.
func (s *Service) Activity(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.AuditEntry, error) {
	if s.audit == nil {
		return []models.AuditEntry{}, nil
	}
	return s.audit.ListByUser(ctx, userID, limit, offset)
}

// PruneImages removes stored images that no post references and that are
// older than grace. It returns the number of files removed.
func (s *Service) PruneImages(ctx context.Context, grace time.Duration) (int, error) {
	refs, err := s.posts.ImageURLs(ctx)
	if err != nil {
		return 0, err
	}
	inUse := make(map[string]bool, len(refs))
	for _, ref := range refs {
		inUse[path.Base(ref)] = true
	}

	files, err := s.images.List()
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-grace)
	removed := 0
	for _, f := range files {
		if inUse[path.Base(f.Ref)] || f.ModTime.After(cutoff) {
			continue
		}
		if err := s.images.Remove(f.Ref); err != nil {
			slog.Warn("prune image", "ref", f.Ref, "error", err)
			metrics.IncImageRemovals("failed")
			continue
		}
		metrics.IncImageRemovals("removed")
		removed++
	}
	return removed, nil
}

// Wait blocks until pending image removals have finished.
func (s *Service) Wait() {
	s.pending.Wait()
}

// removeImage deletes ref in the background. Failures are only logged.
func (s *Service) removeImage(ref string) {
	if ref == "" {
		return
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.images.Remove(ref); err != nil {
			slog.Warn("remove image", "ref", ref, "error", err)
			metrics.IncImageRemovals("failed")
			return
		}
		metrics.IncImageRemovals("removed")
	}()
}

func (s *Service) record(ctx context.Context, userID uuid.UUID, action string, postID uuid.UUID) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, userID, action, postID); err != nil {
		slog.Warn("audit log", "action", action, "post_id", postID, "error", err)
	}
}

func (s *Service) publish(action string, post any) {
	s.notifier.Broadcast(EventPosts, models.PostEvent{Action: action, Post: post})
	metrics.IncPostEvents(action)
}

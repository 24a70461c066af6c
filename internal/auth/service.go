// Package auth handles signup, login, token verification and user status.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/crucial707/postfeed/internal/apperr"
	"github.com/crucial707/postfeed/internal/models"
	"github.com/crucial707/postfeed/internal/repo"
	"github.com/crucial707/postfeed/internal/validate"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// TokenTTL is the lifetime of an issued access token.
const TokenTTL = time.Hour

const defaultBcryptCost = 12

// UserStore is the persistence the service needs; *repo.UserRepo implements it.
type UserStore interface {
	Create(ctx context.Context, email, passwordHash, name string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}

// Claims are the JWT claims embedded in every access token.
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

type Service struct {
	users  UserStore
	secret []byte
	cost   int
	now    func() time.Time
}

func NewService(users UserStore, secret []byte) *Service {
	return &Service{
		users:  users,
		secret: secret,
		cost:   defaultBcryptCost,
		now:    time.Now,
	}
}

type SignupInput struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required"`
	Password string `json:"password" validate:"min=5"`
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Signup validates in, rejects registered emails and stores a new user with
// a bcrypt password hash.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	in.Email = normalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	in.Password = strings.TrimSpace(in.Password)
	if err := validate.Struct("Validation failed.", in); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
		return nil, apperr.Conflict("E-Mail address already exists!")
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "hash password", err)
	}

	user, err := s.users.Create(ctx, in.Email, string(hash), in.Name)
	if errors.Is(err, repo.ErrDuplicateEmail) {
		return nil, apperr.Conflict("E-Mail address already exists!")
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Login checks the credentials and issues a signed token valid for TokenTTL.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, repo.ErrNotFound) {
		return nil, apperr.Auth("A user with this email could not be found.")
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, apperr.Auth("Wrong password!")
	}

	token, err := s.issue(user)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "issue token", err)
	}
	return &LoginResult{Token: token, UserID: user.ID.String()}, nil
}

func (s *Service) issue(user *models.User) (string, error) {
	now := s.now()
	claims := Claims{
		UserID: user.ID.String(),
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify checks a token's signature and expiry and returns the user id it carries.
func (s *Service) Verify(token string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, apperr.Auth("Not authenticated.")
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return uuid.Nil, apperr.Auth("Not authenticated.")
	}

	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil, apperr.Auth("Not authenticated.")
	}
	return id, nil
}

// Status returns the user's status text.
func (s *Service) Status(ctx context.Context, userID uuid.UUID) (string, error) {
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return "", apperr.NotFound("User not found.")
	}
	if err != nil {
		return "", err
	}
	return user.Status, nil
}

type StatusInput struct {
	Status string `json:"status" validate:"required"`
}

// SetStatus replaces the user's status text.
func (s *Service) SetStatus(ctx context.Context, userID uuid.UUID, in StatusInput) error {
	in.Status = strings.TrimSpace(in.Status)
	if err := validate.Struct("Validation failed.", in); err != nil {
		return err
	}

	err := s.users.UpdateStatus(ctx, userID, in.Status)
	if errors.Is(err, repo.ErrNotFound) {
		return apperr.NotFound("User not found.")
	}
	return err
}

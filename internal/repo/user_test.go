package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const (
	aliceID = "6f1c2a8e-3b7d-4c59-9a0e-2d4f5b6c7d81"
	postID1 = "0b9e6f3a-1c2d-4e5f-8a9b-0c1d2e3f4a5b"
	postID2 = "a1b2c3d4-e5f6-4711-8899-aabbccddeeff"
)

func TestUserRepo_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO users \(id, email, password_hash, name\)`).
		WithArgs(sqlmock.AnyArg(), "ann@x.com", "hash", "Ann").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "name", "status"}).
			AddRow(aliceID, "ann@x.com", "Ann", "I am new!"))

	repo := NewUserRepo(db)
	user, err := repo.Create(context.Background(), "ann@x.com", "hash", "Ann")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if user.ID.String() != aliceID || user.Name != "Ann" || user.Status != "I am new!" {
		t.Errorf("unexpected user: %+v", user)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestUserRepo_Create_DuplicateEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO users`).
		WillReturnError(&pq.Error{Code: "23505"})

	repo := NewUserRepo(db)
	_, err = repo.Create(context.Background(), "ann@x.com", "hash", "Ann")
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("expected ErrDuplicateEmail, got: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestUserRepo_GetByEmail_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT id, email, password_hash, name, status`).
		WithArgs("nobody@x.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "name", "status"}))

	repo := NewUserRepo(db)
	_, err = repo.GetByEmail(context.Background(), "nobody@x.com")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestUserRepo_GetByID_WithPosts(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	id := uuid.MustParse(aliceID)
	mock.ExpectQuery(`SELECT u.id, u.email, u.password_hash, u.name, u.status`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "name", "status", "posts"}).
			AddRow(aliceID, "ann@x.com", "hash", "Ann", "busy", "{"+postID1+","+postID2+"}"))

	repo := NewUserRepo(db)
	user, err := repo.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if user.Status != "busy" || len(user.Posts) != 2 || user.Posts[0] != postID1 {
		t.Errorf("unexpected user: %+v", user)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestUserRepo_UpdateStatus_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	id := uuid.MustParse(aliceID)
	mock.ExpectExec(`UPDATE users SET status = \$1 WHERE id = \$2`).
		WithArgs("hello", id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewUserRepo(db)
	if err := repo.UpdateStatus(context.Background(), id, "hello"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

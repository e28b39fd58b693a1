package rbac

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
)

// Driver failures must surface wrapped, never as ErrNotFound or a silent
// denial.
func TestStore_GetUserDriverError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer db.Close()

	boom := errors.New("connection reset by peer")
	mock.ExpectQuery("SELECT (.+) FROM users WHERE id").WillReturnError(boom)

	store := NewStore(db)
	_, err = store.GetUser(context.Background(), uuid.New())
	if !errors.Is(err, boom) {
		t.Errorf("Expected the driver error to be wrapped, got %v", err)
	}
	if err == ErrNotFound {
		t.Error("A driver failure must not read as a missing row")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestStore_UpdateUserExistenceProbeError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer db.Close()

	// The update matches no row; the existence probe then fails, which must
	// be reported as an error rather than ErrStaleWrite.
	boom := errors.New("connection reset by peer")
	mock.ExpectExec("UPDATE users SET").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT 1 FROM users WHERE id").WillReturnError(boom)

	store := NewStore(db)
	user := &User{Name: "Jana", Surname: "Novotná", Valid: true}
	user.ID = uuid.New()
	user.Lastchange = time.Now().UTC()

	err = store.UpdateUser(context.Background(), user, nil)
	if !errors.Is(err, boom) {
		t.Errorf("Expected the probe error to be wrapped, got %v", err)
	}
	if err == ErrStaleWrite {
		t.Error("A probe failure must not read as a stale write")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestStore_ExpireRolesDriverError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	defer db.Close()

	boom := errors.New("database is shutting down")
	mock.ExpectExec("UPDATE roles SET valid").WillReturnError(boom)

	store := NewStore(db)
	count, err := store.ExpireRoles(context.Background(), time.Now().UTC())
	if !errors.Is(err, boom) {
		t.Errorf("Expected the driver error to be wrapped, got %v", err)
	}
	if count != 0 {
		t.Errorf("Expected zero rows on failure, got %d", count)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

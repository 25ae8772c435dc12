package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/advising-api/internal/models"
)

func TestUserRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newLedgerMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "email", "full_name", "role", "active", "created_at", "updated_at"}).
		AddRow("teacher-1", "vega@example.edu", "Dr. Vega", "teacher", true, now, now)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE id = $1 LIMIT 1`)).WithArgs("teacher-1").WillReturnRows(rows)

	user, err := repo.FindByID(context.Background(), "teacher-1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleTeacher, user.Role)
	assert.Equal(t, "Dr. Vega", user.DisplayName())
}

func TestUserRepositoryFindByIDMissing(t *testing.T) {
	db, mock, cleanup := newLedgerMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE id = $1`)).WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "ghost")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestUserRepositoryListByRole(t *testing.T) {
	db, mock, cleanup := newLedgerMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "email", "full_name", "role", "active", "created_at", "updated_at"}).
		AddRow("admin-1", "root@example.edu", "Root", "admin", true, now, now)
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE role = $1 AND active = TRUE`)).WithArgs("admin").WillReturnRows(rows)

	users, err := repo.ListByRole(context.Background(), models.RoleAdmin)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "admin-1", users[0].ID)
}

package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/advising-api/internal/models"
	appErrors "github.com/noah-isme/advising-api/pkg/errors"
)

func TestDirectoryServiceUser(t *testing.T) {
	store := newTestStore()
	store.PutUser(models.User{ID: "gone", Role: models.RoleStudent, Active: false})
	dir := NewDirectoryService(store, nil)

	role, err := dir.RoleOf(context.Background(), "student-1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, role)

	_, err = dir.User(context.Background(), "ghost")
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
	_, err = dir.User(context.Background(), "gone")
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
	_, err = dir.User(context.Background(), "")
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestDirectoryServiceTeacher(t *testing.T) {
	dir := NewDirectoryService(newTestStore(), nil)

	teacher, err := dir.Teacher(context.Background(), "teacher-1")
	require.NoError(t, err)
	assert.Equal(t, "Dr. Vega", teacher.FullName)

	_, err = dir.Teacher(context.Background(), "student-1")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestDirectoryServiceAdmins(t *testing.T) {
	dir := NewDirectoryService(newTestStore(), nil)
	admins, err := dir.Admins(context.Background())
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, "root@example.edu", admins[0].Email)
}

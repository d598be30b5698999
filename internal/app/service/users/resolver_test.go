package users

import (
	"context"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ship-kit/billing/internal/models"
	"github.com/ship-kit/billing/pkg/tool"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}))
	return NewService(db, zap.NewNop().Sugar())
}

func TestResolveOrCreate_CreatesNewUser(t *testing.T) {
	s := newTestService(t)

	user, created, err := s.ResolveOrCreate(context.Background(), "a@x.com", "Ada", "")
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, "a@x.com", user.Email)
	require.Equal(t, "Ada", lo.FromPtr(user.Name))
	require.NotEmpty(t, user.ID)
}

func TestResolveOrCreate_FindsExistingByEmail(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	first, created, err := s.ResolveOrCreate(ctx, "a@x.com", "Ada", "")
	require.NoError(t, err)
	require.True(t, created)

	// Second purchase with a different display name must not touch the profile.
	second, created, err := s.ResolveOrCreate(ctx, "a@x.com", "Somebody Else", "")
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, "Ada", lo.FromPtr(second.Name))
}

func TestResolveOrCreate_MetadataIDTakesPriorityOverEmail(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	account := &models.User{ID: tool.GenerateUUIDV7(), Email: "account@x.com"}
	require.NoError(t, s.db.Create(account).Error)

	// Purchaser paid with a personal email but the checkout carried their
	// account id in custom data.
	user, created, err := s.ResolveOrCreate(ctx, "personal@x.com", "", account.ID)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, account.ID, user.ID)
}

func TestResolveOrCreate_FallsBackWhenMetadataIDUnknown(t *testing.T) {
	s := newTestService(t)

	user, created, err := s.ResolveOrCreate(context.Background(), "a@x.com", "", tool.GenerateUUIDV7())
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, "a@x.com", user.Email)
}

func TestResolveOrCreate_NoEmailFails(t *testing.T) {
	s := newTestService(t)

	_, _, err := s.ResolveOrCreate(context.Background(), "", "", "")
	require.Error(t, err)
}

func TestFindByID(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	created, _, err := s.ResolveOrCreate(ctx, "a@x.com", "", "")
	require.NoError(t, err)

	got, err := s.FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.Email, got.Email)

	_, err = s.FindByID(ctx, tool.GenerateUUIDV7())
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

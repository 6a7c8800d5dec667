package user

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/FACorreiaa/go-user-identity/internal/api/credential"
	"github.com/FACorreiaa/go-user-identity/internal/types"
)

// MockUserRepo is a mock implementation of the UserRepo interface
type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*types.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.User), args.Error(1)
}

func (m *MockUserRepo) FindByUsername(ctx context.Context, username string) (*types.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.User), args.Error(1)
}

func (m *MockUserRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepo) Insert(ctx context.Context, user *types.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockUserRepo) Update(ctx context.Context, user *types.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockUserRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockUserRepo) ListAll(ctx context.Context) ([]types.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.User), args.Error(1)
}

func newTestCodec(t *testing.T) credential.PasswordCodec {
	t.Helper()
	codec, err := credential.NewBcryptCodec(bcrypt.MinCost, 4, slog.Default())
	require.NoError(t, err)
	return codec
}

func newMemoryService(t *testing.T) (*UserServiceImpl, *MemoryUserRepo, credential.PasswordCodec) {
	repo := NewMemoryUserRepo()
	codec := newTestCodec(t)
	return NewUserService(repo, codec, slog.Default()), repo, codec
}

func TestCreateUser(t *testing.T) {
	ctx := context.Background()

	t.Run("StoresHashNotPlaintext", func(t *testing.T) {
		svc, repo, codec := newMemoryService(t)

		created, err := svc.CreateUser(ctx, "alice", "Secret123")
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, created.ID)
		assert.Equal(t, "alice", created.Username)

		stored, err := repo.FindByID(ctx, created.ID)
		require.NoError(t, err)
		assert.NotEqual(t, "Secret123", stored.PasswordHash)
		assert.True(t, codec.Verify(ctx, "Secret123", stored.PasswordHash))
		assert.Nil(t, stored.RefreshToken)
	})

	t.Run("DuplicateUsername", func(t *testing.T) {
		svc, repo, _ := newMemoryService(t)
		_, err := svc.CreateUser(ctx, "alice", "Secret123")
		require.NoError(t, err)

		_, err = svc.CreateUser(ctx, "alice", "Other456")
		assert.ErrorIs(t, err, types.ErrConflict)

		users, err := repo.ListAll(ctx)
		require.NoError(t, err)
		assert.Len(t, users, 1)
	})

	t.Run("ConcurrentDuplicatesLeaveOne", func(t *testing.T) {
		svc, repo, _ := newMemoryService(t)

		var wg sync.WaitGroup
		errs := make([]error, 8)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = svc.CreateUser(ctx, "alice", "Secret123")
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.ErrorIs(t, err, types.ErrConflict)
		}
		assert.Equal(t, 1, succeeded)
		users, err := repo.ListAll(ctx)
		require.NoError(t, err)
		assert.Len(t, users, 1)
	})

	t.Run("InputBounds", func(t *testing.T) {
		tests := []struct {
			name     string
			username string
			password string
			wantErr  error
		}{
			{"Username255", strings.Repeat("u", 255), "Secret123", nil},
			{"Username256", strings.Repeat("u", 256), "Secret123", types.ErrInvalidArgument},
			{"UsernameMultibyte255", strings.Repeat("é", 255), "Secret123", nil},
			{"Password512", "bob", strings.Repeat("p", 512), nil},
			{"Password513", "bob", strings.Repeat("p", 513), types.ErrInvalidArgument},
			{"EmptyUsername", "", "Secret123", types.ErrInvalidArgument},
			{"BlankUsername", "   \t", "Secret123", types.ErrInvalidArgument},
			{"EmptyPassword", "bob", "", types.ErrInvalidArgument},
			{"BlankPassword", "bob", "    ", types.ErrInvalidArgument},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				svc, repo, _ := newMemoryService(t)
				_, err := svc.CreateUser(ctx, tt.username, tt.password)
				if tt.wantErr == nil {
					require.NoError(t, err)
					return
				}
				assert.ErrorIs(t, err, tt.wantErr)
				users, listErr := repo.ListAll(ctx)
				require.NoError(t, listErr)
				assert.Empty(t, users)
			})
		}
	})

	t.Run("UsernameCheckedBeforePassword", func(t *testing.T) {
		svc, _, _ := newMemoryService(t)
		_, err := svc.CreateUser(ctx, " ", "")
		require.ErrorIs(t, err, types.ErrInvalidArgument)
		assert.Contains(t, err.Error(), "username")
	})

	t.Run("ValidationSkipsStorage", func(t *testing.T) {
		repo := new(MockUserRepo)
		svc := NewUserService(repo, newTestCodec(t), slog.Default())

		_, err := svc.CreateUser(ctx, "", "Secret123")
		assert.ErrorIs(t, err, types.ErrInvalidArgument)
		repo.AssertNotCalled(t, "ExistsByUsername", mock.Anything, mock.Anything)
		repo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
	})

	t.Run("StorageConflictSurfaces", func(t *testing.T) {
		repo := new(MockUserRepo)
		svc := NewUserService(repo, newTestCodec(t), slog.Default())
		repo.On("ExistsByUsername", mock.Anything, "alice").Return(false, nil).Once()
		repo.On("Insert", mock.Anything, mock.AnythingOfType("*types.User")).Return(types.ErrConflict).Once()

		_, err := svc.CreateUser(ctx, "alice", "Secret123")
		assert.ErrorIs(t, err, types.ErrConflict)
		repo.AssertExpectations(t)
	})

	t.Run("StorageFailure", func(t *testing.T) {
		repo := new(MockUserRepo)
		svc := NewUserService(repo, newTestCodec(t), slog.Default())
		repo.On("ExistsByUsername", mock.Anything, "alice").Return(false, errors.New("db down")).Once()

		_, err := svc.CreateUser(ctx, "alice", "Secret123")
		require.Error(t, err)
		assert.NotErrorIs(t, err, types.ErrConflict)
		assert.NotErrorIs(t, err, types.ErrInvalidArgument)
	})
}

func TestGetAndListUsers(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newMemoryService(t)

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	assert.NotNil(t, users)
	assert.Empty(t, users)

	alice, err := svc.CreateUser(ctx, "alice", "Secret123")
	require.NoError(t, err)
	bob, err := svc.CreateUser(ctx, "bob", "Secret123")
	require.NoError(t, err)

	got, err := svc.GetUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, *alice, *got)

	users, err = svc.ListUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.UserResponse{*alice, *bob}, users)

	_, err = svc.GetUser(ctx, uuid.New())
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestDeleteUser(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newMemoryService(t)

	created, err := svc.CreateUser(ctx, "alice", "Secret123")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteUser(ctx, created.ID))
	_, err = svc.GetUser(ctx, created.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)

	assert.ErrorIs(t, svc.DeleteUser(ctx, created.ID), types.ErrNotFound)

	// The name is free again.
	_, err = svc.CreateUser(ctx, "alice", "Secret123")
	assert.NoError(t, err)
}

func TestUpdateUsername(t *testing.T) {
	ctx := context.Background()

	t.Run("Renames", func(t *testing.T) {
		svc, _, _ := newMemoryService(t)
		created, err := svc.CreateUser(ctx, "alice", "Secret123")
		require.NoError(t, err)

		updated, err := svc.UpdateUsername(ctx, created.ID, "alice2")
		require.NoError(t, err)
		assert.Equal(t, created.ID, updated.ID)
		assert.Equal(t, "alice2", updated.Username)

		got, err := svc.GetUser(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice2", got.Username)
	})

	t.Run("SameNameIsAllowed", func(t *testing.T) {
		svc, _, _ := newMemoryService(t)
		created, err := svc.CreateUser(ctx, "alice", "Secret123")
		require.NoError(t, err)

		_, err = svc.UpdateUsername(ctx, created.ID, "alice")
		assert.NoError(t, err)
	})

	t.Run("TakenByOtherUser", func(t *testing.T) {
		svc, _, _ := newMemoryService(t)
		_, err := svc.CreateUser(ctx, "alice", "Secret123")
		require.NoError(t, err)
		bob, err := svc.CreateUser(ctx, "bob", "Secret123")
		require.NoError(t, err)

		_, err = svc.UpdateUsername(ctx, bob.ID, "alice")
		assert.ErrorIs(t, err, types.ErrConflict)
	})

	t.Run("Invalid", func(t *testing.T) {
		svc, _, _ := newMemoryService(t)
		created, err := svc.CreateUser(ctx, "alice", "Secret123")
		require.NoError(t, err)

		for _, name := range []string{"", "  ", strings.Repeat("x", 256)} {
			_, err = svc.UpdateUsername(ctx, created.ID, name)
			assert.ErrorIs(t, err, types.ErrInvalidArgument)
		}
		got, err := svc.GetUser(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice", got.Username)
	})

	t.Run("MissingUserWinsOverInvalidName", func(t *testing.T) {
		svc, _, _ := newMemoryService(t)
		_, err := svc.UpdateUsername(ctx, uuid.New(), "")
		assert.ErrorIs(t, err, types.ErrNotFound)
	})
}

func TestUpdatePassword(t *testing.T) {
	ctx := context.Background()

	t.Run("Rehashes", func(t *testing.T) {
		svc, repo, codec := newMemoryService(t)
		created, err := svc.CreateUser(ctx, "alice", "Secret123")
		require.NoError(t, err)
		before, err := repo.FindByID(ctx, created.ID)
		require.NoError(t, err)

		require.NoError(t, svc.UpdatePassword(ctx, created.ID, "N3wSecret!"))

		after, err := repo.FindByID(ctx, created.ID)
		require.NoError(t, err)
		assert.NotEqual(t, before.PasswordHash, after.PasswordHash)
		assert.True(t, codec.Verify(ctx, "N3wSecret!", after.PasswordHash))
		assert.False(t, codec.Verify(ctx, "Secret123", after.PasswordHash))
	})

	t.Run("Invalid", func(t *testing.T) {
		svc, _, _ := newMemoryService(t)
		created, err := svc.CreateUser(ctx, "alice", "Secret123")
		require.NoError(t, err)

		assert.ErrorIs(t, svc.UpdatePassword(ctx, created.ID, " "), types.ErrInvalidArgument)
		assert.ErrorIs(t, svc.UpdatePassword(ctx, created.ID, strings.Repeat("p", 513)), types.ErrInvalidArgument)
		assert.NoError(t, svc.UpdatePassword(ctx, created.ID, strings.Repeat("p", 512)))
	})

	t.Run("MissingUser", func(t *testing.T) {
		svc, _, _ := newMemoryService(t)
		assert.ErrorIs(t, svc.UpdatePassword(ctx, uuid.New(), "Secret123"), types.ErrNotFound)
	})
}

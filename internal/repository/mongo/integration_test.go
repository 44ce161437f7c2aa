//go:build integration

package mongo_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/dtroode/authkeeper-server/internal/model"
	repo "github.com/dtroode/authkeeper-server/internal/repository/mongo"
)

var uri string

func TestMain(m *testing.M) {
	ctx := context.Background()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForListeningPort("27017/tcp").WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		panic(err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		panic(err)
	}
	port, err := container.MappedPort(ctx, "27017")
	if err != nil {
		panic(err)
	}
	uri = fmt.Sprintf("mongodb://%s:%s", host, port.Port())

	code := m.Run()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func TestRepositories_CRUD(t *testing.T) {
	ctx := context.Background()
	conn, err := repo.NewConnection(ctx, uri, "authkeeper_test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(ctx) })
	require.NoError(t, conn.Ping(ctx))

	users, err := repo.NewUserRepository(ctx, conn.Database(), "users")
	require.NoError(t, err)
	sessions, err := repo.NewSessionRepository(ctx, conn.Database(), "sessions")
	require.NoError(t, err)

	now := time.Now()
	u := model.User{ID: uuid.New(), Name: "Alice", Email: "a@x.com", PasswordHash: "h", Role: model.RoleUser, CreatedAt: now, UpdatedAt: now}
	_, err = users.Create(ctx, u)
	require.NoError(t, err)

	dup := u
	dup.ID = uuid.New()
	_, err = users.Create(ctx, dup)
	require.ErrorIs(t, err, model.ErrAlreadyExists)

	got, err := users.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	_, err = users.GetByID(ctx, uuid.New())
	require.ErrorIs(t, err, model.ErrNotFound)

	first := model.Session{ID: uuid.New(), UserID: u.ID, TokenHash: []byte("h"), IssuedAt: now, ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, sessions.Create(ctx, first))

	second := model.Session{ID: uuid.New(), UserID: u.ID, TokenHash: []byte("h2"), IssuedAt: now, ExpiresAt: now.Add(time.Hour), RotatedFrom: &first.ID}
	require.NoError(t, sessions.Rotate(ctx, first.ID, second))
	require.ErrorIs(t, sessions.Rotate(ctx, first.ID, second), model.ErrTokenRevoked)
	require.ErrorIs(t, sessions.Rotate(ctx, uuid.New(), second), model.ErrNotFound)

	old, err := sessions.GetByID(ctx, first.ID)
	require.NoError(t, err)
	require.True(t, old.Revoked())

	require.NoError(t, sessions.RevokeAllByUser(ctx, u.ID))
	cur, err := sessions.GetByID(ctx, second.ID)
	require.NoError(t, err)
	require.True(t, cur.Revoked())
}

package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	created, err := s.Create(ctx, newTestIdentity("a@x.com"))
	require.NoError(t, err)

	created.EmailVerified = true
	got, err := s.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.False(t, got.EmailVerified)
}

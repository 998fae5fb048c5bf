//go:build unix

package sh

import (
	"context"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestContextInterrupt(t *testing.T) {
	s := &Shell{}
	ctx, stop := s.Context()
	defer stop()
	require.NoError(t, ctx.Err())

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGINT))
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("context not canceled by interrupt")
	}
	require.ErrorIs(t, ctx.Err(), context.Canceled)
}

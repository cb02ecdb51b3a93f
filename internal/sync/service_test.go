package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cds-ils/internal/dto"
	apperrors "cds-ils/pkg/errors"
)

// blockingSynchronizer records the calls and blocks UpdateUsers until released.
type blockingSynchronizer struct {
	calls   chan string
	release chan struct{}
}

func newBlockingSynchronizer() *blockingSynchronizer {
	return &blockingSynchronizer{calls: make(chan string, 4), release: make(chan struct{})}
}

func (b *blockingSynchronizer) UpdateUsers(ctx context.Context) (*dto.SyncResultDTO, error) {
	b.calls <- dto.SyncActionUpdate
	<-b.release
	return &dto.SyncResultDTO{RunID: "u", Action: dto.SyncActionUpdate}, nil
}

func (b *blockingSynchronizer) ImportUsers(ctx context.Context) (*dto.SyncResultDTO, error) {
	b.calls <- dto.SyncActionImport
	return &dto.SyncResultDTO{RunID: "i", Action: dto.SyncActionImport}, nil
}

func (b *blockingSynchronizer) DeleteUsers(ctx context.Context, dryRun bool) (*dto.SyncResultDTO, error) {
	b.calls <- dto.SyncActionDelete
	return &dto.SyncResultDTO{RunID: "d", Action: dto.SyncActionDelete, DryRun: dryRun}, nil
}

func TestService_StartRejectsOverlappingRuns(t *testing.T) {
	syncer := newBlockingSynchronizer()
	cache := newFakeCache()
	svc := NewService(syncer, NewLock(cache, time.Minute), false, zap.NewNop())

	require.NoError(t, svc.Start(context.Background(), dto.SyncActionUpdate, false))
	assert.Equal(t, dto.SyncActionUpdate, <-syncer.calls)

	err := svc.Start(context.Background(), dto.SyncActionImport, false)
	assert.ErrorIs(t, err, apperrors.ErrSyncInProgress)

	close(syncer.release)
	svc.Wait()

	result, err := svc.Run(context.Background(), dto.SyncActionImport, false)
	require.NoError(t, err)
	assert.Equal(t, "i", result.RunID)
	assert.Empty(t, cache.values)
}

func TestService_DeleteDisabled(t *testing.T) {
	svc := NewService(newBlockingSynchronizer(), NewLock(newFakeCache(), time.Minute), false, zap.NewNop())

	err := svc.Start(context.Background(), dto.SyncActionDelete, true)
	assert.ErrorIs(t, err, apperrors.ErrUserDeletionDisabled)

	_, err = svc.Run(context.Background(), "purge", false)
	assert.ErrorIs(t, err, apperrors.ErrBadRequest)
}

func TestService_RunDeletePassesDryRun(t *testing.T) {
	syncer := newBlockingSynchronizer()
	svc := NewService(syncer, NewLock(newFakeCache(), time.Minute), true, zap.NewNop())

	result, err := svc.Run(context.Background(), dto.SyncActionDelete, true)
	require.NoError(t, err)
	assert.True(t, result.DryRun)
	assert.Equal(t, dto.SyncActionDelete, <-syncer.calls)
}

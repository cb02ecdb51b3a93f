package sync

import (
	"context"
	"fmt"
	stdsync "sync"

	"go.uber.org/zap"

	"cds-ils/internal/dto"
	apperrors "cds-ils/pkg/errors"
)

type ServiceInterface interface {
	// Run holds the lock for the duration of one run.
	Run(ctx context.Context, action string, dryRun bool) (*dto.SyncResultDTO, error)
	// Start takes the lock and runs in the background. Lock and configuration
	// errors are returned before anything starts.
	Start(ctx context.Context, action string, dryRun bool) error
	// Wait blocks until every run started by Start has finished.
	Wait()
}

type Service struct {
	synchronizer  SynchronizerInterface
	lock          *Lock
	deleteEnabled bool
	running       stdsync.WaitGroup
	logger        *zap.Logger
}

func NewService(synchronizer SynchronizerInterface, lock *Lock, deleteEnabled bool, logger *zap.Logger) *Service {
	return &Service{
		synchronizer:  synchronizer,
		lock:          lock,
		deleteEnabled: deleteEnabled,
		logger:        logger.Named("sync_service"),
	}
}

func (s *Service) check(action string) error {
	switch action {
	case dto.SyncActionUpdate, dto.SyncActionImport:
		return nil
	case dto.SyncActionDelete:
		if !s.deleteEnabled {
			return apperrors.ErrUserDeletionDisabled
		}
		return nil
	default:
		return fmt.Errorf("unknown sync action %q: %w", action, apperrors.ErrBadRequest)
	}
}

func (s *Service) execute(ctx context.Context, action string, dryRun bool) (*dto.SyncResultDTO, error) {
	switch action {
	case dto.SyncActionUpdate:
		return s.synchronizer.UpdateUsers(ctx)
	case dto.SyncActionImport:
		return s.synchronizer.ImportUsers(ctx)
	default:
		return s.synchronizer.DeleteUsers(ctx, dryRun)
	}
}

func (s *Service) Run(ctx context.Context, action string, dryRun bool) (*dto.SyncResultDTO, error) {
	if err := s.check(action); err != nil {
		return nil, err
	}
	release, err := s.lock.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release(context.WithoutCancel(ctx))

	return s.execute(ctx, action, dryRun)
}

func (s *Service) Start(ctx context.Context, action string, dryRun bool) error {
	if err := s.check(action); err != nil {
		return err
	}
	release, err := s.lock.Acquire(ctx)
	if err != nil {
		return err
	}

	// the request context ends with the response
	bgCtx := context.WithoutCancel(ctx)
	s.running.Add(1)
	go func() {
		defer s.running.Done()
		defer release(bgCtx)

		result, err := s.execute(bgCtx, action, dryRun)
		if err != nil {
			s.logger.Error("background sync failed", zap.String("action", action), zap.Error(err))
			return
		}
		s.logger.Info("background sync finished",
			zap.String("action", action),
			zap.String("run_id", result.RunID),
			zap.Int("updated", result.Updated),
			zap.Int("added", result.Added),
			zap.Int("deleted", result.Deleted),
		)
	}()
	return nil
}

func (s *Service) Wait() {
	s.running.Wait()
}

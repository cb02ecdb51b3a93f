package services

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"cds-ils/internal/repositories"
	apperrors "cds-ils/pkg/errors"
)

type AnonymizationServiceInterface interface {
	AnonymizePatron(ctx context.Context, userID uint64) error
}

type AnonymizationService struct {
	txManager         repositories.TxManagerInterface
	userRepo          repositories.UserRepositoryInterface
	profileRepo       repositories.UserProfileRepositoryInterface
	identityRepo      repositories.UserIdentityRepositoryInterface
	remoteAccountRepo repositories.RemoteAccountRepositoryInterface
	loanRepo          repositories.LoanRepositoryInterface
	indexer           PatronIndexerInterface
	logger            *zap.Logger
}

func NewAnonymizationService(
	txManager repositories.TxManagerInterface,
	userRepo repositories.UserRepositoryInterface,
	profileRepo repositories.UserProfileRepositoryInterface,
	identityRepo repositories.UserIdentityRepositoryInterface,
	remoteAccountRepo repositories.RemoteAccountRepositoryInterface,
	loanRepo repositories.LoanRepositoryInterface,
	indexer PatronIndexerInterface,
	logger *zap.Logger,
) AnonymizationServiceInterface {
	return &AnonymizationService{
		txManager:         txManager,
		userRepo:          userRepo,
		profileRepo:       profileRepo,
		identityRepo:      identityRepo,
		remoteAccountRepo: remoteAccountRepo,
		loanRepo:          loanRepo,
		indexer:           indexer,
		logger:            logger.Named("anonymization"),
	}
}

// AnonymizePatron strips personal data from the user and unlinks it from SSO.
// It returns apperrors.ErrAnonymizationActiveLoans and changes nothing while
// the patron still has loans in progress.
func (s *AnonymizationService) AnonymizePatron(ctx context.Context, userID uint64) error {
	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		active, err := s.loanRepo.CountActiveByPatron(ctx, tx, strconv.FormatUint(userID, 10))
		if err != nil {
			return err
		}
		if active > 0 {
			return fmt.Errorf("user %d has %d active loans: %w", userID, active, apperrors.ErrAnonymizationActiveLoans)
		}

		if err := s.userRepo.Anonymize(ctx, tx, userID); err != nil {
			return err
		}
		if err := s.profileRepo.Anonymize(ctx, tx, userID); err != nil {
			return err
		}
		if err := s.identityRepo.DeleteByUserID(ctx, tx, userID); err != nil {
			return err
		}
		return s.remoteAccountRepo.DeleteByUserID(ctx, tx, userID)
	})
	if err != nil {
		return err
	}

	if err := s.indexer.Remove(ctx, userID); err != nil {
		return err
	}
	s.logger.Info("patron anonymized", zap.Uint64("user_id", userID))
	return nil
}

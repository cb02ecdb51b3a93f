package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"cds-ils/internal/entities"
	"cds-ils/internal/repositories"
	apperrors "cds-ils/pkg/errors"
)

const patronIndexPrefix = "patrons:"

func patronIndexKey(userID uint64) string {
	return patronIndexPrefix + strconv.FormatUint(userID, 10)
}

type PatronIndexerInterface interface {
	Index(ctx context.Context, userID uint64) error
	Remove(ctx context.Context, userID uint64) error
	ReindexAll(ctx context.Context) (int, error)
	Get(ctx context.Context, userID uint64) (*entities.PatronDocument, error)
}

// PatronIndexer keeps one JSON document per patron in Redis.
type PatronIndexer struct {
	userRepo          repositories.UserRepositoryInterface
	profileRepo       repositories.UserProfileRepositoryInterface
	remoteAccountRepo repositories.RemoteAccountRepositoryInterface
	cacheRepo         repositories.CacheRepositoryInterface
	clientID          string
	logger            *zap.Logger
}

func NewPatronIndexer(
	userRepo repositories.UserRepositoryInterface,
	profileRepo repositories.UserProfileRepositoryInterface,
	remoteAccountRepo repositories.RemoteAccountRepositoryInterface,
	cacheRepo repositories.CacheRepositoryInterface,
	clientID string,
	logger *zap.Logger,
) PatronIndexerInterface {
	return &PatronIndexer{
		userRepo:          userRepo,
		profileRepo:       profileRepo,
		remoteAccountRepo: remoteAccountRepo,
		cacheRepo:         cacheRepo,
		clientID:          clientID,
		logger:            logger.Named("patron_indexer"),
	}
}

func (s *PatronIndexer) buildDocument(ctx context.Context, userID uint64) (*entities.PatronDocument, error) {
	user, err := s.userRepo.FindUserByID(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("load user %d: %w", userID, err)
	}

	doc := &entities.PatronDocument{ID: user.ID, Email: user.Email}

	profile, err := s.profileRepo.FindByUserID(ctx, nil, userID)
	switch {
	case err == nil:
		doc.Name = profile.FullName
	case !errors.Is(err, apperrors.ErrNotFound):
		return nil, fmt.Errorf("load profile of user %d: %w", userID, err)
	}

	account, err := s.remoteAccountRepo.FindByUserID(ctx, nil, s.clientID, userID)
	switch {
	case err == nil:
		doc.PersonID = account.ExtraData.PersonID
		doc.Department = account.ExtraData.Department.String
	case !errors.Is(err, apperrors.ErrNotFound):
		return nil, fmt.Errorf("load remote account of user %d: %w", userID, err)
	}

	return doc, nil
}

func (s *PatronIndexer) Index(ctx context.Context, userID uint64) error {
	doc, err := s.buildDocument(ctx, userID)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode patron %d: %w", userID, err)
	}
	if err := s.cacheRepo.Set(ctx, patronIndexKey(userID), payload, 0); err != nil {
		return fmt.Errorf("index patron %d: %w", userID, err)
	}
	return nil
}

func (s *PatronIndexer) Remove(ctx context.Context, userID uint64) error {
	if err := s.cacheRepo.Del(ctx, patronIndexKey(userID)); err != nil {
		return fmt.Errorf("remove patron %d from index: %w", userID, err)
	}
	return nil
}

func (s *PatronIndexer) Get(ctx context.Context, userID uint64) (*entities.PatronDocument, error) {
	raw, err := s.cacheRepo.Get(ctx, patronIndexKey(userID))
	if err != nil {
		return nil, err
	}
	var doc entities.PatronDocument
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("decode patron %d: %w", userID, err)
	}
	return &doc, nil
}

// ReindexAll rebuilds the documents of every patron with a remote account and
// drops documents of users that no longer have one.
func (s *PatronIndexer) ReindexAll(ctx context.Context) (int, error) {
	accounts, err := s.remoteAccountRepo.ListByClientID(ctx, s.clientID)
	if err != nil {
		return 0, err
	}

	live := make(map[string]struct{}, len(accounts))
	for _, account := range accounts {
		if err := s.Index(ctx, account.UserID); err != nil {
			return 0, err
		}
		live[patronIndexKey(account.UserID)] = struct{}{}
	}

	keys, err := s.cacheRepo.Keys(ctx, patronIndexPrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("list indexed patrons: %w", err)
	}
	var stale []string
	for _, key := range keys {
		if _, ok := live[key]; !ok && strings.HasPrefix(key, patronIndexPrefix) {
			stale = append(stale, key)
		}
	}
	if len(stale) > 0 {
		if err := s.cacheRepo.Del(ctx, stale...); err != nil {
			return 0, fmt.Errorf("drop stale patrons: %w", err)
		}
	}

	s.logger.Info("patrons reindexed", zap.Int("indexed", len(accounts)), zap.Int("dropped", len(stale)))
	return len(accounts), nil
}

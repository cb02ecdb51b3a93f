package services

import (
	"context"
	"testing"
	"time"

	"github.com/aarondl/null/v8"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cds-ils/internal/entities"
	apperrors "cds-ils/pkg/errors"
)

type stubTx struct{}

func (stubTx) RunInTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error { return fn(nil) }

type stubPatrons struct {
	users      map[uint64]*entities.User
	profiles   map[uint64]*entities.UserProfile
	accounts   map[uint64]*entities.RemoteAccount
	identities map[uint64]bool
	loans      map[string]int
	cache      map[string]string
}

func newStubPatrons() *stubPatrons {
	return &stubPatrons{
		users: map[uint64]*entities.User{
			1: {ID: 1, Email: "ann@cern.ch", Active: true},
		},
		profiles: map[uint64]*entities.UserProfile{
			1: {UserID: 1, Username: entities.ProfileUsername(1), FullName: "Ann"},
		},
		accounts: map[uint64]*entities.RemoteAccount{
			1: {ID: 10, ClientID: "client", UserID: 1, ExtraData: entities.RemoteAccountExtraData{PersonID: "101", Department: null.StringFrom("IT")}},
		},
		identities: map[uint64]bool{1: true},
		loans:      map[string]int{},
		cache:      map[string]string{},
	}
}

func (s *stubPatrons) CreateUser(ctx context.Context, tx pgx.Tx, email string, active bool) (uint64, error) {
	return 0, nil
}

func (s *stubPatrons) FindUserByID(ctx context.Context, tx pgx.Tx, id uint64) (*entities.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *stubPatrons) CountByEmail(ctx context.Context, tx pgx.Tx, email string) (int, error) {
	return 0, nil
}

func (s *stubPatrons) UpdateEmail(ctx context.Context, tx pgx.Tx, id uint64, email string) error {
	return nil
}

func (s *stubPatrons) Anonymize(ctx context.Context, tx pgx.Tx, id uint64) error {
	s.users[id].Email = "anonymized"
	s.users[id].Active = false
	return nil
}

type stubProfiles struct{ s *stubPatrons }

func (p stubProfiles) CreateProfile(ctx context.Context, tx pgx.Tx, profile *entities.UserProfile) error {
	return nil
}

func (p stubProfiles) FindByUserID(ctx context.Context, tx pgx.Tx, userID uint64) (*entities.UserProfile, error) {
	profile, ok := p.s.profiles[userID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return profile, nil
}

func (p stubProfiles) UpdateFullName(ctx context.Context, tx pgx.Tx, userID uint64, fullName string) error {
	return nil
}

func (p stubProfiles) Anonymize(ctx context.Context, tx pgx.Tx, userID uint64) error {
	p.s.profiles[userID].FullName = ""
	return nil
}

type stubIdentities struct{ s *stubPatrons }

func (i stubIdentities) CreateIdentity(ctx context.Context, tx pgx.Tx, identity *entities.UserIdentity) error {
	return nil
}

func (i stubIdentities) ExistsByID(ctx context.Context, tx pgx.Tx, id, method string) (bool, error) {
	return false, nil
}

func (i stubIdentities) DeleteByUserID(ctx context.Context, tx pgx.Tx, userID uint64) error {
	delete(i.s.identities, userID)
	return nil
}

type stubAccounts struct{ s *stubPatrons }

func (a stubAccounts) ListByClientID(ctx context.Context, clientID string) ([]entities.RemoteAccount, error) {
	out := make([]entities.RemoteAccount, 0, len(a.s.accounts))
	for _, account := range a.s.accounts {
		out = append(out, *account)
	}
	return out, nil
}

func (a stubAccounts) FindByUserID(ctx context.Context, tx pgx.Tx, clientID string, userID uint64) (*entities.RemoteAccount, error) {
	account, ok := a.s.accounts[userID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return account, nil
}

func (a stubAccounts) CreateRemoteAccount(ctx context.Context, tx pgx.Tx, account *entities.RemoteAccount) (uint64, error) {
	return 0, nil
}

func (a stubAccounts) UpdateDepartment(ctx context.Context, tx pgx.Tx, id uint64, department string) error {
	return nil
}

func (a stubAccounts) DeleteByUserID(ctx context.Context, tx pgx.Tx, userID uint64) error {
	delete(a.s.accounts, userID)
	return nil
}

type stubLoans struct{ s *stubPatrons }

func (l stubLoans) CountActiveByPatron(ctx context.Context, tx pgx.Tx, patronPID string) (int, error) {
	return l.s.loans[patronPID], nil
}

type stubCache struct{ s *stubPatrons }

func (c stubCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	c.s.cache[key] = string(value.([]byte))
	return nil
}

func (c stubCache) Get(ctx context.Context, key string) (string, error) {
	v, ok := c.s.cache[key]
	if !ok {
		return "", apperrors.ErrNotFound
	}
	return v, nil
}

func (c stubCache) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(c.s.cache, key)
	}
	return nil
}

func (c stubCache) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	return true, nil
}

func (c stubCache) Keys(ctx context.Context, pattern string) ([]string, error) {
	keys := make([]string, 0, len(c.s.cache))
	for key := range c.s.cache {
		keys = append(keys, key)
	}
	return keys, nil
}

func newAnonymizer(s *stubPatrons) (AnonymizationServiceInterface, PatronIndexerInterface) {
	indexer := NewPatronIndexer(s, stubProfiles{s}, stubAccounts{s}, stubCache{s}, "client", zap.NewNop())
	anonymizer := NewAnonymizationService(stubTx{}, s, stubProfiles{s}, stubIdentities{s}, stubAccounts{s}, stubLoans{s}, indexer, zap.NewNop())
	return anonymizer, indexer
}

func TestPatronIndexer_IndexAndGet(t *testing.T) {
	s := newStubPatrons()
	_, indexer := newAnonymizer(s)
	ctx := context.Background()

	require.NoError(t, indexer.Index(ctx, 1))

	doc, err := indexer.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, entities.PatronDocument{ID: 1, Email: "ann@cern.ch", Name: "Ann", PersonID: "101", Department: "IT"}, *doc)

	_, err = indexer.Get(ctx, 2)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestAnonymizePatron(t *testing.T) {
	s := newStubPatrons()
	anonymizer, indexer := newAnonymizer(s)
	ctx := context.Background()
	require.NoError(t, indexer.Index(ctx, 1))

	require.NoError(t, anonymizer.AnonymizePatron(ctx, 1))

	assert.False(t, s.users[1].Active)
	assert.Empty(t, s.profiles[1].FullName)
	assert.NotContains(t, s.identities, uint64(1))
	assert.NotContains(t, s.accounts, uint64(1))
	_, err := indexer.Get(ctx, 1)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestAnonymizePatron_ActiveLoans(t *testing.T) {
	s := newStubPatrons()
	s.loans["1"] = 2
	anonymizer, _ := newAnonymizer(s)

	err := anonymizer.AnonymizePatron(context.Background(), 1)
	assert.ErrorIs(t, err, apperrors.ErrAnonymizationActiveLoans)
	assert.True(t, s.users[1].Active)
	assert.Contains(t, s.accounts, uint64(1))
}

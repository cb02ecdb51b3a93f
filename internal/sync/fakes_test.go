package sync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aarondl/null/v8"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"cds-ils/internal/entities"
	"cds-ils/internal/ldap"
	"cds-ils/internal/metrics"
	"cds-ils/internal/services"
	"cds-ils/pkg/eventbus"
	apperrors "cds-ils/pkg/errors"
)

const (
	testClientID  = "client-id"
	testRemoteApp = "cern_openid"
)

// memStore backs every fake repository of a test.
type memStore struct {
	nextID     uint64
	users      map[uint64]*entities.User
	profiles   map[uint64]*entities.UserProfile
	identities []entities.UserIdentity
	accounts   []*entities.RemoteAccount
	loans      map[string]int
	failOn     string
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[uint64]*entities.User{},
		profiles: map[uint64]*entities.UserProfile{},
		loans:    map[string]int{},
	}
}

func (s *memStore) id() uint64 {
	s.nextID++
	return s.nextID
}

// seedUser stores a fully imported user; an empty department stays null.
func (s *memStore) seedUser(personID, email, name, department, uid string) uint64 {
	id := s.id()
	s.users[id] = &entities.User{ID: id, Email: email, Active: true}
	s.profiles[id] = &entities.UserProfile{UserID: id, Username: entities.ProfileUsername(id), FullName: name}
	s.identities = append(s.identities, entities.UserIdentity{ID: uid, Method: testRemoteApp, UserID: id})
	extra := entities.RemoteAccountExtraData{PersonID: personID}
	if department != "" {
		extra.Department = null.StringFrom(department)
	}
	s.accounts = append(s.accounts, &entities.RemoteAccount{ID: s.id(), ClientID: testClientID, UserID: id, ExtraData: extra})
	return id
}

func (s *memStore) userByEmail(email string) *entities.User {
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u
		}
	}
	return nil
}

func (s *memStore) accountOf(userID uint64) *entities.RemoteAccount {
	for _, a := range s.accounts {
		if a.UserID == userID {
			return a
		}
	}
	return nil
}

type fakeTxManager struct{}

func (fakeTxManager) RunInTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return fn(nil)
}

// ---- users

type fakeUserRepo struct{ s *memStore }

func (r fakeUserRepo) CreateUser(ctx context.Context, tx pgx.Tx, email string, active bool) (uint64, error) {
	if r.s.failOn == "create_user" {
		return 0, fmt.Errorf("connection reset")
	}
	if r.s.userByEmail(email) != nil {
		return 0, fmt.Errorf("duplicate email %s", email)
	}
	id := r.s.id()
	r.s.users[id] = &entities.User{ID: id, Email: strings.ToLower(email), Active: active}
	return id, nil
}

func (r fakeUserRepo) FindUserByID(ctx context.Context, tx pgx.Tx, id uint64) (*entities.User, error) {
	u, ok := r.s.users[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r fakeUserRepo) CountByEmail(ctx context.Context, tx pgx.Tx, email string) (int, error) {
	if r.s.userByEmail(email) != nil {
		return 1, nil
	}
	return 0, nil
}

func (r fakeUserRepo) UpdateEmail(ctx context.Context, tx pgx.Tx, id uint64, email string) error {
	u, ok := r.s.users[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	u.Email = strings.ToLower(email)
	return nil
}

func (r fakeUserRepo) Anonymize(ctx context.Context, tx pgx.Tx, id uint64) error {
	u, ok := r.s.users[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	u.Email = fmt.Sprintf("anonymized_%d@anonymized.invalid", id)
	u.Active = false
	return nil
}

// ---- profiles

type fakeProfileRepo struct{ s *memStore }

func (r fakeProfileRepo) CreateProfile(ctx context.Context, tx pgx.Tx, profile *entities.UserProfile) error {
	cp := *profile
	r.s.profiles[profile.UserID] = &cp
	return nil
}

func (r fakeProfileRepo) FindByUserID(ctx context.Context, tx pgx.Tx, userID uint64) (*entities.UserProfile, error) {
	p, ok := r.s.profiles[userID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r fakeProfileRepo) UpdateFullName(ctx context.Context, tx pgx.Tx, userID uint64, fullName string) error {
	if r.s.failOn == "update_name" {
		return fmt.Errorf("connection reset")
	}
	p, ok := r.s.profiles[userID]
	if !ok {
		return apperrors.ErrNotFound
	}
	p.FullName = fullName
	return nil
}

func (r fakeProfileRepo) Anonymize(ctx context.Context, tx pgx.Tx, userID uint64) error {
	p, ok := r.s.profiles[userID]
	if !ok {
		return apperrors.ErrNotFound
	}
	p.FullName = "anonymous"
	return nil
}

// ---- identities

type fakeIdentityRepo struct{ s *memStore }

func (r fakeIdentityRepo) CreateIdentity(ctx context.Context, tx pgx.Tx, identity *entities.UserIdentity) error {
	r.s.identities = append(r.s.identities, *identity)
	return nil
}

func (r fakeIdentityRepo) ExistsByID(ctx context.Context, tx pgx.Tx, id, method string) (bool, error) {
	for _, identity := range r.s.identities {
		if identity.ID == id && identity.Method == method {
			return true, nil
		}
	}
	return false, nil
}

func (r fakeIdentityRepo) DeleteByUserID(ctx context.Context, tx pgx.Tx, userID uint64) error {
	kept := r.s.identities[:0]
	for _, identity := range r.s.identities {
		if identity.UserID != userID {
			kept = append(kept, identity)
		}
	}
	r.s.identities = kept
	return nil
}

// ---- remote accounts

type fakeRemoteAccountRepo struct{ s *memStore }

func (r fakeRemoteAccountRepo) ListByClientID(ctx context.Context, clientID string) ([]entities.RemoteAccount, error) {
	out := make([]entities.RemoteAccount, 0, len(r.s.accounts))
	for _, a := range r.s.accounts {
		if a.ClientID == clientID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r fakeRemoteAccountRepo) FindByUserID(ctx context.Context, tx pgx.Tx, clientID string, userID uint64) (*entities.RemoteAccount, error) {
	for _, a := range r.s.accounts {
		if a.ClientID == clientID && a.UserID == userID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r fakeRemoteAccountRepo) CreateRemoteAccount(ctx context.Context, tx pgx.Tx, account *entities.RemoteAccount) (uint64, error) {
	cp := *account
	cp.ID = r.s.id()
	r.s.accounts = append(r.s.accounts, &cp)
	return cp.ID, nil
}

func (r fakeRemoteAccountRepo) UpdateDepartment(ctx context.Context, tx pgx.Tx, id uint64, department string) error {
	for _, a := range r.s.accounts {
		if a.ID == id {
			a.ExtraData.Department = null.StringFrom(department)
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func (r fakeRemoteAccountRepo) DeleteByUserID(ctx context.Context, tx pgx.Tx, userID uint64) error {
	kept := r.s.accounts[:0]
	for _, a := range r.s.accounts {
		if a.UserID != userID {
			kept = append(kept, a)
		}
	}
	r.s.accounts = kept
	return nil
}

// ---- loans

type fakeLoanRepo struct{ s *memStore }

func (r fakeLoanRepo) CountActiveByPatron(ctx context.Context, tx pgx.Tx, patronPID string) (int, error) {
	return r.s.loans[patronPID], nil
}

// ---- cache

type fakeCache struct {
	values map[string]string
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: map[string]string{}}
}

func (c *fakeCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	switch v := value.(type) {
	case []byte:
		c.values[key] = string(v)
	case string:
		c.values[key] = v
	default:
		c.values[key] = fmt.Sprint(v)
	}
	return nil
}

func (c *fakeCache) Get(ctx context.Context, key string) (string, error) {
	v, ok := c.values[key]
	if !ok {
		return "", apperrors.ErrNotFound
	}
	return v, nil
}

func (c *fakeCache) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(c.values, key)
	}
	return nil
}

func (c *fakeCache) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	if _, ok := c.values[key]; ok {
		return false, nil
	}
	return true, c.Set(ctx, key, value, expiration)
}

func (c *fakeCache) Keys(ctx context.Context, pattern string) ([]string, error) {
	prefix := strings.TrimSuffix(pattern, "*")
	var keys []string
	for key := range c.values {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// ---- directory

type fakeSource struct {
	entries []ldap.Entry
	err     error
	calls   int
}

func (f *fakeSource) GetPrimaryAccounts(ctx context.Context) ([]ldap.Entry, error) {
	f.calls++
	return f.entries, f.err
}

func (f *fakeSource) dialer() ldap.Dialer {
	return func() (ldap.AccountSource, error) { return f, nil }
}

// ldapEntry builds a directory entry; empty values leave the attribute out.
func ldapEntry(personID, email, name, department, uid string) ldap.Entry {
	e := ldap.Entry{ldap.AttrAccountType: [][]byte{[]byte("Primary")}}
	set := func(attr, value string) {
		if value != "" {
			e[attr] = [][]byte{[]byte(value)}
		}
	}
	set(ldap.AttrEmployeeID, personID)
	set(ldap.AttrMail, email)
	set(ldap.AttrDisplayName, name)
	set(ldap.AttrDepartment, department)
	set(ldap.AttrUIDNumber, uid)
	return e
}

// withEmptyMail sets the mail attribute to a single empty value.
func withEmptyMail(e ldap.Entry) ldap.Entry {
	e[ldap.AttrMail] = [][]byte{{}}
	return e
}

// skipMetrics counts the skips reported to the real collector.
type skipMetrics struct {
	*metrics.Collector
	skipped map[string]int
}

func (m *skipMetrics) RecordSkipped(reason string) {
	m.skipped[reason]++
	m.Collector.RecordSkipped(reason)
}

type fakePublisher struct {
	events []eventbus.Event
}

func (p *fakePublisher) Publish(ctx context.Context, event eventbus.Event) {
	p.events = append(p.events, event)
}

type fixture struct {
	store     *memStore
	source    *fakeSource
	cache     *fakeCache
	publisher *fakePublisher
	indexer   services.PatronIndexerInterface
	metrics   *skipMetrics
	logs      *observer.ObservedLogs
	sync      *Synchronizer
}

func newFixture(deleteEnabled bool, entries ...ldap.Entry) *fixture {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)
	store := newMemStore()
	f := &fixture{
		store:     store,
		source:    &fakeSource{entries: entries},
		cache:     newFakeCache(),
		publisher: &fakePublisher{},
		metrics:   &skipMetrics{Collector: metrics.NewCollector(prometheus.NewRegistry()), skipped: map[string]int{}},
		logs:      logs,
	}

	userRepo := fakeUserRepo{store}
	profileRepo := fakeProfileRepo{store}
	identityRepo := fakeIdentityRepo{store}
	accountRepo := fakeRemoteAccountRepo{store}

	f.indexer = services.NewPatronIndexer(userRepo, profileRepo, accountRepo, f.cache, testClientID, logger)
	anonymizer := services.NewAnonymizationService(fakeTxManager{}, userRepo, profileRepo, identityRepo, accountRepo, fakeLoanRepo{store}, f.indexer, logger)

	f.sync = NewSynchronizer(
		f.source.dialer(),
		fakeTxManager{},
		userRepo,
		profileRepo,
		identityRepo,
		accountRepo,
		f.indexer,
		anonymizer,
		f.publisher,
		f.metrics,
		Options{ClientID: testClientID, RemoteAppName: testRemoteApp, DeleteEnabled: deleteEnabled},
		logger,
	)
	return f
}

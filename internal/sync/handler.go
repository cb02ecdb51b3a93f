// Package sync reconciles the local users with the CERN personnel directory.
package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"cds-ils/internal/dto"
	"cds-ils/internal/entities"
	"cds-ils/internal/events"
	"cds-ils/internal/ldap"
	"cds-ils/internal/metrics"
	"cds-ils/internal/repositories"
	"cds-ils/internal/services"
	"cds-ils/pkg/eventbus"
	apperrors "cds-ils/pkg/errors"
)

// Skip reasons, also used as the action of the matching log line.
const (
	SkipMissingEmail        = "ldap_user_skipped_missing_email"
	SkipNotCERNEmail        = "ldap_user_skipped_not_cern_email" // mail attribute present but empty
	SkipMissingPersonID     = "ldap_user_skipped_missing_person_id"
	SkipMissingUIDNumber    = "ldap_user_skipped_missing_uid_number"
	SkipEmailExists         = "ldap_user_skipped_email_exists_different_person_id"
	SkipIdentityExists      = "ldap_user_skipped_identity_exists_changed_email"
	SkipEmailTakenOnUpdate  = "invenio_user_skipped_email_taken"
	SkipAlreadyImported     = "ldap_user_skipped_already_imported"
	SkipActiveLoans         = "invenio_user_skipped_active_loans"
	changeKindUpdated       = "updated"
	changeKindAdded         = "added"
	changeKindDeleted       = "deleted"
	changeKindDeletedDryRun = "would_delete"
)

type SynchronizerInterface interface {
	UpdateUsers(ctx context.Context) (*dto.SyncResultDTO, error)
	ImportUsers(ctx context.Context) (*dto.SyncResultDTO, error)
	DeleteUsers(ctx context.Context, dryRun bool) (*dto.SyncResultDTO, error)
}

// EventPublisher is satisfied by *eventbus.Bus.
type EventPublisher interface {
	Publish(ctx context.Context, event eventbus.Event)
}

type Options struct {
	ClientID      string
	RemoteAppName string
	DeleteEnabled bool
}

type Synchronizer struct {
	dial              ldap.Dialer
	txManager         repositories.TxManagerInterface
	userRepo          repositories.UserRepositoryInterface
	profileRepo       repositories.UserProfileRepositoryInterface
	identityRepo      repositories.UserIdentityRepositoryInterface
	remoteAccountRepo repositories.RemoteAccountRepositoryInterface
	importer          UserImporterInterface
	indexer           services.PatronIndexerInterface
	anonymizer        services.AnonymizationServiceInterface
	publisher         EventPublisher
	metrics           metrics.SyncMetrics
	opts              Options
	logger            *zap.Logger
}

func NewSynchronizer(
	dial ldap.Dialer,
	txManager repositories.TxManagerInterface,
	userRepo repositories.UserRepositoryInterface,
	profileRepo repositories.UserProfileRepositoryInterface,
	identityRepo repositories.UserIdentityRepositoryInterface,
	remoteAccountRepo repositories.RemoteAccountRepositoryInterface,
	indexer services.PatronIndexerInterface,
	anonymizer services.AnonymizationServiceInterface,
	publisher EventPublisher,
	syncMetrics metrics.SyncMetrics,
	opts Options,
	logger *zap.Logger,
) *Synchronizer {
	return &Synchronizer{
		dial:              dial,
		txManager:         txManager,
		userRepo:          userRepo,
		profileRepo:       profileRepo,
		identityRepo:      identityRepo,
		remoteAccountRepo: remoteAccountRepo,
		importer:          NewUserImporter(userRepo, identityRepo, profileRepo, remoteAccountRepo, opts.ClientID, opts.RemoteAppName),
		indexer:           indexer,
		anonymizer:        anonymizer,
		publisher:         publisher,
		metrics:           syncMetrics,
		opts:              opts,
		logger:            logger.Named("ldap_sync"),
	}
}

// run carries the state shared by the phases of one invocation.
type run struct {
	result *dto.SyncResultDTO
	log    *runLogger
}

func (s *Synchronizer) newRun(action string, dryRun bool) *run {
	id := uuid.NewString()
	return &run{
		result: &dto.SyncResultDTO{
			RunID:     id,
			Action:    action,
			DryRun:    dryRun,
			StartedAt: time.Now(),
			Changes:   []dto.SyncChangeDTO{},
			Skipped:   []dto.SyncSkippedDTO{},
		},
		log: newRunLogger(s.logger, id),
	}
}

func (s *Synchronizer) skip(r *run, item dto.SyncSkippedDTO, fields ...zap.Field) {
	r.result.Skipped = append(r.result.Skipped, item)
	s.metrics.RecordSkipped(item.Reason)
	r.log.warn(item.Reason, fields...)
}

func (s *Synchronizer) finish(r *run, err error) (*dto.SyncResultDTO, error) {
	r.result.Duration = time.Since(r.result.StartedAt)
	s.metrics.RecordRun(r.result.Action, err == nil, r.result.Duration)
	if err != nil {
		r.log.error("task_failed", err)
		return r.result, err
	}
	s.metrics.RecordUsers(changeKindUpdated, r.result.Updated)
	s.metrics.RecordUsers(changeKindAdded, r.result.Added)
	if !r.result.DryRun {
		s.metrics.RecordUsers(changeKindDeleted, r.result.Deleted)
	}
	r.log.info("task_completed",
		zap.Duration("time", r.result.Duration),
		zap.Int("updated", r.result.Updated),
		zap.Int("added", r.result.Added),
		zap.Int("deleted", r.result.Deleted),
		zap.Int("skipped", len(r.result.Skipped)),
	)
	return r.result, nil
}

func (s *Synchronizer) fetchAccounts(ctx context.Context, r *run) ([]ldap.Entry, error) {
	source, err := s.dial()
	if err != nil {
		return nil, err
	}
	if closer, ok := source.(io.Closer); ok {
		defer closer.Close()
	}

	entries, err := source.GetPrimaryAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch ldap accounts: %w", err)
	}
	r.result.LDAPUsers = len(entries)
	r.log.info("ldap_users_fetched", zap.Int("users_fetched", len(entries)))
	return entries, nil
}

// ldapCache is the directory keyed by person id, in directory order.
type ldapCache struct {
	byPersonID map[string]ldap.Entry
	order      []string
}

func (c *ldapCache) pop(personID string) (ldap.Entry, bool) {
	entry, ok := c.byPersonID[personID]
	if ok {
		delete(c.byPersonID, personID)
	}
	return entry, ok
}

// remaining returns the entries nobody claimed, in directory order.
func (c *ldapCache) remaining() []ldap.Entry {
	out := make([]ldap.Entry, 0, len(c.byPersonID))
	for _, personID := range c.order {
		if entry, ok := c.byPersonID[personID]; ok {
			out = append(out, entry)
		}
	}
	return out
}

// cacheEntries drops unusable entries and keys the rest by person id. Only the
// first entry of an email is kept; a later entry with an already seen person
// id replaces the earlier one.
func (s *Synchronizer) cacheEntries(r *run, entries []ldap.Entry) *ldapCache {
	cache := &ldapCache{byPersonID: make(map[string]ldap.Entry, len(entries))}
	seenEmails := make(map[string]struct{}, len(entries))

	for _, entry := range entries {
		personID := entry.PersonID()
		if !entry.Has(ldap.AttrMail) {
			s.skip(r, dto.SyncSkippedDTO{Reason: SkipMissingEmail, PersonID: personID},
				zap.String("employee_id", personID))
			continue
		}
		email := entry.Email()
		if email == "" {
			s.skip(r, dto.SyncSkippedDTO{Reason: SkipNotCERNEmail, PersonID: personID},
				zap.String("employee_id", personID))
			continue
		}
		if personID == "" {
			s.skip(r, dto.SyncSkippedDTO{Reason: SkipMissingPersonID, Email: email},
				zap.String("email", email))
			continue
		}
		if _, dup := seenEmails[email]; dup {
			continue
		}
		seenEmails[email] = struct{}{}

		if _, known := cache.byPersonID[personID]; !known {
			cache.order = append(cache.order, personID)
		}
		cache.byPersonID[personID] = entry
	}

	r.log.info("ldap_users_cached", zap.Int("users_cached", len(cache.byPersonID)))
	return cache
}

func (s *Synchronizer) listLocalAccounts(ctx context.Context, r *run) ([]entities.RemoteAccount, error) {
	accounts, err := s.remoteAccountRepo.ListByClientID(ctx, s.opts.ClientID)
	if err != nil {
		return nil, err
	}
	r.log.info("invenio_users_fetched", zap.Int("users_fetched", len(accounts)))
	r.log.info("invenio_users_cached", zap.Int("users_cached", len(accounts)))
	return accounts, nil
}

func (s *Synchronizer) indexUsers(ctx context.Context, r *run, ids []uint64) {
	for _, id := range ids {
		if err := s.indexer.Index(ctx, id); err != nil {
			r.log.error("invenio_user_index_failed", err, zap.Uint64("user_id", id))
		}
	}
}

// UpdateUsers brings the local users in line with the directory: the display
// name, department and email of known person ids are refreshed and the person
// ids not known locally are imported.
func (s *Synchronizer) UpdateUsers(ctx context.Context) (*dto.SyncResultDTO, error) {
	r := s.newRun(dto.SyncActionUpdate, false)

	entries, err := s.fetchAccounts(ctx, r)
	if err != nil {
		return s.finish(r, err)
	}
	cache := s.cacheEntries(r, entries)
	if len(cache.byPersonID) == 0 {
		return s.finish(r, nil)
	}

	accounts, err := s.listLocalAccounts(ctx, r)
	if err != nil {
		return s.finish(r, err)
	}

	updated, err := s.updateExisting(ctx, r, accounts, cache)
	if err != nil {
		return s.finish(r, err)
	}
	s.indexUsers(ctx, r, updated)
	r.log.info("invenio_users_updated_from_ldap", zap.Int("count", len(updated)))

	added, err := s.importNew(ctx, r, cache.remaining())
	if err != nil {
		return s.finish(r, err)
	}
	s.indexUsers(ctx, r, added)
	r.log.info("import_new_users_done", zap.Int("count", len(added)))

	return s.finish(r, nil)
}

func (s *Synchronizer) updateExisting(ctx context.Context, r *run, accounts []entities.RemoteAccount, cache *ldapCache) ([]uint64, error) {
	var updated []uint64
	var changes []dto.SyncChangeDTO
	var skipped []dto.SyncSkippedDTO
	var departments []dto.SyncChangeDTO

	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		updated, changes, skipped, departments = nil, nil, nil, nil
		for _, account := range accounts {
			entry, ok := cache.pop(account.ExtraData.PersonID)
			if !ok {
				continue
			}
			change, skip, err := s.updateUser(ctx, tx, account, entry)
			if err != nil {
				return err
			}
			if skip != nil {
				skipped = append(skipped, *skip)
			}
			if change != nil {
				updated = append(updated, account.UserID)
				changes = append(changes, *change)
				if !change.PreviousDepartment.Valid || change.PreviousDepartment.String != change.NewDepartment {
					departments = append(departments, *change)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update users from ldap: %w", err)
	}

	for _, item := range skipped {
		s.skip(r, item, zap.Uint64("user_id", item.UserID), zap.String("email", item.Email))
	}
	for _, change := range departments {
		r.log.info("department_updated",
			zap.Uint64("user_id", change.UserID),
			zap.String("previous_department", change.PreviousDepartment.String),
			zap.String("new_department", change.NewDepartment),
		)
	}

	r.result.Updated = len(updated)
	r.result.Changes = append(r.result.Changes, changes...)
	return updated, nil
}

// updateUser writes the directory values of entry to the user behind account.
// The change is nil when nothing differs; the skip is set when the new email
// belongs to another user.
func (s *Synchronizer) updateUser(ctx context.Context, tx pgx.Tx, account entities.RemoteAccount, entry ldap.Entry) (*dto.SyncChangeDTO, *dto.SyncSkippedDTO, error) {
	user, err := s.userRepo.FindUserByID(ctx, tx, account.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("load user %d: %w", account.UserID, err)
	}
	profile, err := s.profileRepo.FindByUserID(ctx, tx, account.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("load profile of user %d: %w", account.UserID, err)
	}

	name, department, email := entry.DisplayName(), entry.Department(), entry.Email()
	departmentChanged := !account.ExtraData.Department.Valid || account.ExtraData.Department.String != department
	emailChanged := user.Email != email
	if profile.FullName == name && !departmentChanged && !emailChanged {
		return nil, nil, nil
	}

	if emailChanged {
		taken, err := s.userRepo.CountByEmail(ctx, tx, email)
		if err != nil {
			return nil, nil, err
		}
		if taken > 0 {
			return nil, &dto.SyncSkippedDTO{Reason: SkipEmailTakenOnUpdate, PersonID: account.ExtraData.PersonID, Email: email, UserID: account.UserID}, nil
		}
	}

	if profile.FullName != name {
		if err := s.profileRepo.UpdateFullName(ctx, tx, account.UserID, name); err != nil {
			return nil, nil, err
		}
	}
	if departmentChanged {
		if err := s.remoteAccountRepo.UpdateDepartment(ctx, tx, account.ID, department); err != nil {
			return nil, nil, err
		}
	}
	if emailChanged {
		if err := s.userRepo.UpdateEmail(ctx, tx, account.UserID, email); err != nil {
			return nil, nil, err
		}
	}

	return &dto.SyncChangeDTO{
		Kind:               changeKindUpdated,
		UserID:             account.UserID,
		PersonID:           account.ExtraData.PersonID,
		PreviousName:       profile.FullName,
		NewName:            name,
		PreviousDepartment: account.ExtraData.Department,
		NewDepartment:      department,
		PreviousEmail:      user.Email,
		NewEmail:           email,
	}, nil, nil
}

// importNew imports directory entries without a local account, unless their
// email or their SSO identity is already used by another user.
func (s *Synchronizer) importNew(ctx context.Context, r *run, entries []ldap.Entry) ([]uint64, error) {
	var added []uint64
	var changes []dto.SyncChangeDTO
	var skipped []dto.SyncSkippedDTO

	err := s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		added, changes, skipped = nil, nil, nil
		for _, entry := range entries {
			email, personID := entry.Email(), entry.PersonID()

			taken, err := s.userRepo.CountByEmail(ctx, tx, email)
			if err != nil {
				return err
			}
			if taken > 0 {
				skipped = append(skipped, dto.SyncSkippedDTO{Reason: SkipEmailExists, PersonID: personID, Email: email})
				continue
			}

			if !entry.Has(ldap.AttrUIDNumber) {
				skipped = append(skipped, dto.SyncSkippedDTO{Reason: SkipMissingUIDNumber, PersonID: personID, Email: email})
				continue
			}
			exists, err := s.identityRepo.ExistsByID(ctx, tx, entry.UIDNumber(), s.opts.RemoteAppName)
			if err != nil {
				return err
			}
			if exists {
				skipped = append(skipped, dto.SyncSkippedDTO{Reason: SkipIdentityExists, PersonID: personID, Email: email})
				continue
			}

			userID, err := s.importer.ImportUser(ctx, tx, entry)
			if err != nil {
				return err
			}
			added = append(added, userID)
			changes = append(changes, dto.SyncChangeDTO{
				Kind:          changeKindAdded,
				UserID:        userID,
				PersonID:      personID,
				NewName:       entry.DisplayName(),
				NewDepartment: entry.Department(),
				NewEmail:      email,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("import new users: %w", err)
	}

	// logged once the transaction is settled so a retried body does not log twice
	for _, item := range skipped {
		s.skip(r, item, zap.String("email", item.Email), zap.String("employee_id", item.PersonID))
	}
	for _, change := range changes {
		r.log.info("invenio_user_added",
			zap.Uint64("user_id", change.UserID),
			zap.String("email", change.NewEmail),
			zap.String("employee_id", change.PersonID),
		)
	}
	r.result.Added += len(added)
	r.result.Changes = append(r.result.Changes, changes...)
	return added, nil
}

// ImportUsers imports every directory account whose email is not used locally
// yet and rebuilds the patron index.
func (s *Synchronizer) ImportUsers(ctx context.Context) (*dto.SyncResultDTO, error) {
	r := s.newRun(dto.SyncActionImport, false)

	entries, err := s.fetchAccounts(ctx, r)
	if err != nil {
		return s.finish(r, err)
	}

	var fresh []ldap.Entry
	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		personID := entry.PersonID()
		if !entry.Has(ldap.AttrMail) {
			s.skip(r, dto.SyncSkippedDTO{Reason: SkipMissingEmail, PersonID: personID},
				zap.String("employee_id", personID))
			continue
		}
		if entry.Email() == "" {
			s.skip(r, dto.SyncSkippedDTO{Reason: SkipNotCERNEmail, PersonID: personID},
				zap.String("employee_id", personID))
			continue
		}
		if personID == "" {
			s.skip(r, dto.SyncSkippedDTO{Reason: SkipMissingPersonID, Email: entry.Email()},
				zap.String("email", entry.Email()))
			continue
		}
		if _, dup := seen[entry.Email()]; dup {
			continue
		}
		seen[entry.Email()] = struct{}{}

		count, err := s.userRepo.CountByEmail(ctx, nil, entry.Email())
		if err != nil {
			return s.finish(r, err)
		}
		if count > 0 {
			s.skip(r, dto.SyncSkippedDTO{Reason: SkipAlreadyImported, PersonID: personID, Email: entry.Email()},
				zap.String("email", entry.Email()), zap.String("employee_id", personID))
			continue
		}
		fresh = append(fresh, entry)
	}

	if _, err := s.importNew(ctx, r, fresh); err != nil {
		return s.finish(r, err)
	}

	indexed, err := s.indexer.ReindexAll(ctx)
	if err != nil {
		return s.finish(r, fmt.Errorf("reindex patrons: %w", err))
	}
	r.log.info("patrons_reindexed", zap.Int("count", indexed))

	return s.finish(r, nil)
}

// DeleteUsers anonymizes local users whose person id left the directory.
// With dryRun it only reports who would go. An empty directory listing deletes
// nobody, since it is far more likely to be a broken fetch than an empty CERN.
func (s *Synchronizer) DeleteUsers(ctx context.Context, dryRun bool) (*dto.SyncResultDTO, error) {
	if !s.opts.DeleteEnabled {
		return nil, apperrors.ErrUserDeletionDisabled
	}
	r := s.newRun(dto.SyncActionDelete, dryRun)

	entries, err := s.fetchAccounts(ctx, r)
	if err != nil {
		return s.finish(r, err)
	}
	if len(entries) == 0 {
		r.log.warn("ldap_users_empty_nothing_deleted")
		return s.finish(r, nil)
	}

	inDirectory := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if personID := entry.PersonID(); personID != "" {
			inDirectory[personID] = struct{}{}
		}
	}

	accounts, err := s.listLocalAccounts(ctx, r)
	if err != nil {
		return s.finish(r, err)
	}

	for _, account := range accounts {
		if _, ok := inDirectory[account.ExtraData.PersonID]; ok {
			continue
		}
		user, err := s.userRepo.FindUserByID(ctx, nil, account.UserID)
		if err != nil {
			return s.finish(r, fmt.Errorf("load user %d: %w", account.UserID, err))
		}

		kind := changeKindDeletedDryRun
		if !dryRun {
			err := s.anonymizer.AnonymizePatron(ctx, account.UserID)
			if errors.Is(err, apperrors.ErrAnonymizationActiveLoans) {
				s.publisher.Publish(ctx, events.PatronActiveLoansEvent{UserID: account.UserID, Email: user.Email})
				s.skip(r, dto.SyncSkippedDTO{Reason: SkipActiveLoans, PersonID: account.ExtraData.PersonID, Email: user.Email, UserID: account.UserID},
					zap.Uint64("user_id", account.UserID), zap.String("email", user.Email))
				continue
			}
			if err != nil {
				return s.finish(r, err)
			}
			kind = changeKindDeleted
		}

		r.result.Deleted++
		r.result.Changes = append(r.result.Changes, dto.SyncChangeDTO{
			Kind:          kind,
			UserID:        account.UserID,
			PersonID:      account.ExtraData.PersonID,
			PreviousEmail: user.Email,
		})
		r.log.info("invenio_user_deleted",
			zap.Uint64("user_id", account.UserID),
			zap.String("email", user.Email),
			zap.Bool("dry_run", dryRun),
		)
	}

	if !dryRun {
		if _, err := s.indexer.ReindexAll(ctx); err != nil {
			return s.finish(r, fmt.Errorf("reindex patrons: %w", err))
		}
	}
	return s.finish(r, nil)
}

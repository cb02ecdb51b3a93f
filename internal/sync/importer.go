package sync

import (
	"context"
	"fmt"

	"github.com/aarondl/null/v8"
	"github.com/jackc/pgx/v5"

	"cds-ils/internal/entities"
	"cds-ils/internal/ldap"
	"cds-ils/internal/repositories"
)

type UserImporterInterface interface {
	ImportUser(ctx context.Context, tx pgx.Tx, entry ldap.Entry) (uint64, error)
}

// UserImporter creates the local records of an SSO user: the user itself, its
// identity, its profile and the remote account holding the person id.
type UserImporter struct {
	userRepo          repositories.UserRepositoryInterface
	identityRepo      repositories.UserIdentityRepositoryInterface
	profileRepo       repositories.UserProfileRepositoryInterface
	remoteAccountRepo repositories.RemoteAccountRepositoryInterface
	clientID          string
	remoteAppName     string
}

func NewUserImporter(
	userRepo repositories.UserRepositoryInterface,
	identityRepo repositories.UserIdentityRepositoryInterface,
	profileRepo repositories.UserProfileRepositoryInterface,
	remoteAccountRepo repositories.RemoteAccountRepositoryInterface,
	clientID string,
	remoteAppName string,
) UserImporterInterface {
	return &UserImporter{
		userRepo:          userRepo,
		identityRepo:      identityRepo,
		profileRepo:       profileRepo,
		remoteAccountRepo: remoteAccountRepo,
		clientID:          clientID,
		remoteAppName:     remoteAppName,
	}
}

func (i *UserImporter) ImportUser(ctx context.Context, tx pgx.Tx, entry ldap.Entry) (uint64, error) {
	userID, err := i.userRepo.CreateUser(ctx, tx, entry.Email(), true)
	if err != nil {
		return 0, fmt.Errorf("create user %s: %w", entry.Email(), err)
	}

	identity := &entities.UserIdentity{
		ID:     entry.UIDNumber(),
		Method: i.remoteAppName,
		UserID: userID,
	}
	if err := i.identityRepo.CreateIdentity(ctx, tx, identity); err != nil {
		return 0, fmt.Errorf("create identity of user %d: %w", userID, err)
	}

	profile := &entities.UserProfile{
		UserID:   userID,
		Username: entities.ProfileUsername(userID),
		FullName: entry.DisplayName(),
	}
	if err := i.profileRepo.CreateProfile(ctx, tx, profile); err != nil {
		return 0, fmt.Errorf("create profile of user %d: %w", userID, err)
	}

	account := &entities.RemoteAccount{
		ClientID: i.clientID,
		UserID:   userID,
		ExtraData: entities.RemoteAccountExtraData{
			PersonID:   entry.PersonID(),
			Department: null.StringFrom(entry.Department()),
		},
	}
	if _, err := i.remoteAccountRepo.CreateRemoteAccount(ctx, tx, account); err != nil {
		return 0, fmt.Errorf("create remote account of user %d: %w", userID, err)
	}

	return userID, nil
}

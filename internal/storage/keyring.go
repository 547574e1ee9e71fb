package storage

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	service = "quickcourt-cli"
)

// KeyringStore persists the record in the OS keychain/credential manager
type KeyringStore struct {
	profile string
}

func NewKeyringStore(profile string) *KeyringStore {
	return &KeyringStore{profile: profile}
}

// key returns a unique keyring entry name per profile
func (k *KeyringStore) key(name string) string {
	return fmt.Sprintf("%s-%s", name, k.profile)
}

func (k *KeyringStore) get(name string) (string, bool, error) {
	value, err := keyring.Get(service, k.key(name))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return value, true, nil
}

func (k *KeyringStore) delete(name string) error {
	if err := keyring.Delete(service, k.key(name)); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete %s: %w", name, err)
	}
	return nil
}

// Load retrieves the record from the keychain
func (k *KeyringStore) Load() (Record, error) {
	tok, ok, err := k.get(KeyAuthToken)
	if err != nil {
		return Record{}, err
	}
	if !ok {
		return Record{}, ErrNotFound
	}

	user, _, err := k.get(KeyAuthUser)
	if err != nil {
		return Record{}, err
	}

	return Record{AuthToken: tok, AuthUser: user}, nil
}

// Save writes token then user. The keychain has no transactions, so a failed
// user write restores the previous token before returning.
func (k *KeyringStore) Save(rec Record) error {
	prevToken, hadToken, err := k.get(KeyAuthToken)
	if err != nil {
		return err
	}

	if err := keyring.Set(service, k.key(KeyAuthToken), rec.AuthToken); err != nil {
		return fmt.Errorf("failed to save %s: %w", KeyAuthToken, err)
	}

	var userErr error
	if rec.AuthUser == "" {
		userErr = k.delete(KeyAuthUser)
	} else if err := keyring.Set(service, k.key(KeyAuthUser), rec.AuthUser); err != nil {
		userErr = fmt.Errorf("failed to save %s: %w", KeyAuthUser, err)
	}
	if userErr == nil {
		return nil
	}

	var rollbackErr error
	if hadToken {
		rollbackErr = keyring.Set(service, k.key(KeyAuthToken), prevToken)
	} else {
		rollbackErr = k.delete(KeyAuthToken)
	}
	return errors.Join(userErr, rollbackErr)
}

// Clear removes every key of the profile, including the legacy marker
func (k *KeyringStore) Clear() error {
	return errors.Join(
		k.delete(KeyAuthToken),
		k.delete(KeyAuthUser),
		k.delete(KeyLegacyLoggedIn),
	)
}

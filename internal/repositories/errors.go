package repositories

import (
	"errors"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateKey is returned when a unique constraint is violated.
	// Callers racing on get-or-create paths may retry on it.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrNoAssociation is returned by override-flag operations when the user
	// has no association with the federated provider.
	ErrNoAssociation = errors.New("no sso association for user")
)

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}

func IsDuplicateKeyError(err error) bool {
	return errors.Is(err, ErrDuplicateKey) || errors.Is(err, gorm.ErrDuplicatedKey)
}

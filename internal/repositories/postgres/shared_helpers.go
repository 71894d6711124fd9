package postgres

import (
	"errors"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/evaluation-service/internal/repositories"
)

// translateError maps gorm errors onto the repository sentinel errors so
// service code never imports gorm error values. Requires TranslateError to
// be enabled on the gorm config (see pkg.InitDatabase).
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repositories.ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return repositories.ErrDuplicateKey
	}
	return err
}

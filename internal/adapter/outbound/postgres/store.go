// Package postgres provides GORM-backed session and transaction stores.
// Updates are conditional on the stored version column.
package postgres

import (
	"context"
	"fmt"

	apperrors "github.com/uniedit/checkout/internal/utils/errors"
	"gorm.io/gorm"
)

// AutoMigrate creates or updates the store tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&SessionEntity{}, &TransactionEntity{}, &RefundEntity{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// versionedUpdate writes every column of ent where id and version match.
// With no row affected it tells a missing row from a stale version.
func versionedUpdate(ctx context.Context, db *gorm.DB, model any, ent any, id any, expected int64, notFound error) error {
	res := db.WithContext(ctx).
		Model(model).
		Where("id = ? AND version = ?", id, expected).
		Select("*").
		Updates(ent)
	if res.Error != nil {
		return fmt.Errorf("update %T: %w", model, res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var n int64
	if err := db.WithContext(ctx).Model(model).Where("id = ?", id).Count(&n).Error; err != nil {
		return fmt.Errorf("count %T: %w", model, err)
	}
	if n == 0 {
		return notFound
	}
	return apperrors.ErrVersionConflict
}

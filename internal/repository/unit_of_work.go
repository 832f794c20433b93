package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"gamestore/internal/domain"
	"gamestore/internal/tracking"
)

// UnitOfWork persists everything registered on a tracker in one transaction
type UnitOfWork interface {
	SaveChanges(ctx context.Context, t *tracking.Tracker) error
}

type unitOfWork struct {
	db *sql.DB
}

// NewUnitOfWork creates a new instance of UnitOfWork
func NewUnitOfWork(db *sql.DB) UnitOfWork {
	return &unitOfWork{db: db}
}

// SaveChanges stamps and cascades the tracked changes, then writes them.
// Nothing is written when the cascade fails.
func (u *unitOfWork) SaveChanges(ctx context.Context, t *tracking.Tracker) error {
	if err := t.DetectChanges(); err != nil {
		return err
	}
	if !t.HasChanges() {
		return nil
	}

	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, entry := range writeOrder(t.Entries()) {
		if err := writeEntry(ctx, tx, entry); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	t.AcceptChanges()
	return nil
}

// writeOrder sorts entries so foreign keys and the primary image index hold
// at every statement: deletes first, then parents before children, then
// updates with demoted images ahead of promoted ones, then touches.
func writeOrder(entries []*tracking.Entry) []*tracking.Entry {
	pending := make([]*tracking.Entry, 0, len(entries))
	for _, entry := range entries {
		if entry.State != tracking.Unchanged {
			pending = append(pending, entry)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return writeRank(pending[i]) < writeRank(pending[j])
	})
	return pending
}

func writeRank(entry *tracking.Entry) int {
	_, owned := entry.Entity.(domain.ProductOwned)
	switch entry.State {
	case tracking.Deleted:
		if owned {
			return 0
		}
		return 1
	case tracking.Added:
		if owned {
			return 3
		}
		return 2
	case tracking.Modified:
		if entry.Stub {
			return 6
		}
		if img, ok := entry.Entity.(*domain.ProductImage); ok && img.IsPrimary {
			return 5
		}
		return 4
	}
	return 7
}

func writeEntry(ctx context.Context, q DBTX, entry *tracking.Entry) error {
	switch e := entry.Entity.(type) {
	case *domain.Product:
		switch {
		case entry.State == tracking.Added:
			return insertProduct(ctx, q, e)
		case entry.State == tracking.Deleted:
			return deleteProduct(ctx, q, e.ID)
		case entry.Stub:
			return touchProduct(ctx, q, e)
		default:
			return updateProduct(ctx, q, e)
		}
	case *domain.ProductDetail:
		return writeByState(ctx, q, entry.State, e, insertDetail, updateDetail, deleteDetail)
	case *domain.ProductImage:
		return writeByState(ctx, q, entry.State, e, insertImage, updateImage, deleteImage)
	case *domain.ProductCategory:
		return writeByState(ctx, q, entry.State, e, insertProductCategory, updateProductCategory, deleteProductCategory)
	case *domain.ProductReview:
		return writeByState(ctx, q, entry.State, e, insertReview, updateReview, deleteReview)
	case *domain.Category:
		return writeByState(ctx, q, entry.State, e, insertCategory, updateCategory, deleteCategory)
	default:
		return fmt.Errorf("unit of work cannot persist %T", entry.Entity)
	}
}

type writeFunc[T any] func(ctx context.Context, q DBTX, e T) error

func writeByState[T any](ctx context.Context, q DBTX, state tracking.State, e T, insert, update, remove writeFunc[T]) error {
	switch state {
	case tracking.Added:
		return insert(ctx, q, e)
	case tracking.Modified:
		return update(ctx, q, e)
	case tracking.Deleted:
		return remove(ctx, q, e)
	}
	return nil
}

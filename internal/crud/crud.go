// Package crud is a thin generic helper over GORM for paginated
// get/create/update/delete/count on one table.
package crud

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	apperrors "crudadmin/internal/errors"
	"crudadmin/internal/pagination"
)

// ListParams are the query parameters accepted by list views.
type ListParams struct {
	pagination.PageRequest
	Sort  string `form:"sort"`
	Order string `form:"order" binding:"omitempty,oneof=asc desc"`
}

// CRUD runs table operations for model T.
type CRUD[T any] struct {
	db       *gorm.DB
	table    string
	pk       string
	sortable map[string]struct{}
}

var schemaCache sync.Map

// New parses T's schema against db and returns a CRUD for it.
func New[T any](db *gorm.DB) (*CRUD[T], error) {
	s, err := schema.Parse(new(T), &schemaCache, db.NamingStrategy)
	if err != nil {
		return nil, fmt.Errorf("parse model schema: %w", err)
	}
	if s.PrioritizedPrimaryField == nil {
		return nil, fmt.Errorf("model %s has no primary key", s.Name)
	}

	sortable := make(map[string]struct{}, len(s.DBNames))
	for _, name := range s.DBNames {
		sortable[name] = struct{}{}
	}
	return &CRUD[T]{
		db:       db,
		table:    s.Table,
		pk:       s.PrioritizedPrimaryField.DBName,
		sortable: sortable,
	}, nil
}

// Table returns the table name of T.
func (r *CRUD[T]) Table() string { return r.table }

// PrimaryKey returns the primary key column of T.
func (r *CRUD[T]) PrimaryKey() string { return r.pk }

// GetMulti returns one page of rows sorted by params.Sort (primary key by default).
func (r *CRUD[T]) GetMulti(ctx context.Context, params ListParams) (pagination.PageResponse[T], error) {
	params.Defaults()

	sort := r.pk
	if params.Sort != "" {
		if _, ok := r.sortable[params.Sort]; !ok {
			return pagination.PageResponse[T]{}, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid sort column: "+params.Sort)
		}
		sort = params.Sort
	}
	order := "ASC"
	if strings.EqualFold(params.Order, "desc") {
		order = "DESC"
	}

	db := r.db.WithContext(ctx).Model(new(T))

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return pagination.PageResponse[T]{}, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var rows []T
	if err := db.Order(fmt.Sprintf("%s %s", sort, order)).
		Scopes(pagination.Paginate(params.PageRequest)).
		Find(&rows).Error; err != nil {
		return pagination.PageResponse[T]{}, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return pagination.NewPageResponse(rows, params.Page, params.PageSize, total), nil
}

// Get returns the row with the given primary key or ErrNotFound.
func (r *CRUD[T]) Get(ctx context.Context, id string) (*T, error) {
	var row T
	err := r.db.WithContext(ctx).Where(r.pk+" = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &row, nil
}

// GetMany returns the rows whose primary key is in ids, in primary key order.
func (r *CRUD[T]) GetMany(ctx context.Context, ids []string) ([]T, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []T
	if err := r.db.WithContext(ctx).Where(r.pk+" IN ?", ids).Order(r.pk).Find(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return rows, nil
}

// Transaction runs fn with a CRUD bound to a single database transaction.
// The transaction is rolled back when fn returns an error.
func (r *CRUD[T]) Transaction(ctx context.Context, fn func(tx *CRUD[T]) error) error {
	return r.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		tx := *r
		tx.db = db
		return fn(&tx)
	})
}

// Create inserts row. A unique constraint violation returns ErrConflict.
func (r *CRUD[T]) Create(ctx context.Context, row *T) error {
	return writeError(r.db.WithContext(ctx).Create(row).Error)
}

// Update saves every column of row. A unique constraint violation returns ErrConflict.
func (r *CRUD[T]) Update(ctx context.Context, row *T) error {
	return writeError(r.db.WithContext(ctx).Save(row).Error)
}

func writeError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperrors.Wrap(apperrors.ErrConflict, err)
	default:
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
}

// Delete removes the row with the given primary key or returns ErrNotFound.
func (r *CRUD[T]) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where(r.pk+" = ?", id).Delete(new(T))
	if res.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// DeleteMany removes every row whose primary key is in ids and returns the count.
func (r *CRUD[T]) DeleteMany(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Where(r.pk+" IN ?", ids).Delete(new(T))
	if res.Error != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
	}
	return res.RowsAffected, nil
}

// Count returns the number of rows.
func (r *CRUD[T]) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(new(T)).Count(&n).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return n, nil
}

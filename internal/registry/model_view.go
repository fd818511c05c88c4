package registry

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"crudadmin/internal/crud"
	apperrors "crudadmin/internal/errors"
	"crudadmin/internal/pagination"
	"crudadmin/internal/validator"
)

// ViewConfig describes how a model T is created from schema C and updated
// from schema U.
type ViewConfig[T, C, U any] struct {
	Name    string
	Project func(*T) map[string]any
	// Build turns a validated create payload into a new row. Nil disables create.
	Build func(ctx context.Context, in *C) (*T, error)
	// Apply copies a validated update payload onto the row. Nil disables update.
	Apply       func(ctx context.Context, row *T, in *U) error
	AllowDelete bool
}

// ModelView is a View over a GORM model.
type ModelView[T, C, U any] struct {
	cfg  ViewConfig[T, C, U]
	crud *crud.CRUD[T]
}

// NewModelView builds a ModelView for T on db.
func NewModelView[T, C, U any](db *gorm.DB, cfg ViewConfig[T, C, U]) (*ModelView[T, C, U], error) {
	if cfg.Project == nil {
		return nil, fmt.Errorf("view %q: projection is required", cfg.Name)
	}
	c, err := crud.New[T](db)
	if err != nil {
		return nil, fmt.Errorf("view %q: %w", cfg.Name, err)
	}
	if cfg.Name == "" {
		cfg.Name = c.Table()
	}
	return &ModelView[T, C, U]{cfg: cfg, crud: c}, nil
}

func (v *ModelView[T, C, U]) Name() string { return v.cfg.Name }

func (v *ModelView[T, C, U]) Permissions() Permissions {
	return Permissions{
		Create: v.cfg.Build != nil,
		Update: v.cfg.Apply != nil,
		Delete: v.cfg.AllowDelete,
	}
}

func (v *ModelView[T, C, U]) Count(ctx context.Context) (int64, error) {
	return v.crud.Count(ctx)
}

func (v *ModelView[T, C, U]) List(ctx context.Context, params crud.ListParams) (pagination.PageResponse[map[string]any], error) {
	page, err := v.crud.GetMulti(ctx, params)
	if err != nil {
		return pagination.PageResponse[map[string]any]{}, err
	}
	items := make([]map[string]any, 0, len(page.Data))
	for i := range page.Data {
		items = append(items, v.cfg.Project(&page.Data[i]))
	}
	return pagination.NewPageResponse(items, page.Page, page.PageSize, page.TotalItems), nil
}

func (v *ModelView[T, C, U]) Get(ctx context.Context, id string) (map[string]any, error) {
	row, err := v.crud.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return v.cfg.Project(row), nil
}

func (v *ModelView[T, C, U]) Create(ctx context.Context, bind BindFunc) (string, map[string]any, error) {
	if v.cfg.Build == nil {
		return "", nil, apperrors.WithMessage(apperrors.ErrForbidden, "Create is not allowed for "+v.cfg.Name)
	}

	in := new(C)
	if err := bind(in); err != nil {
		return "", nil, validator.AsValidationError(err)
	}
	row, err := v.cfg.Build(ctx, in)
	if err != nil {
		return "", nil, err
	}
	if err := v.crud.Create(ctx, row); err != nil {
		return "", nil, err
	}

	state := v.cfg.Project(row)
	return fmt.Sprint(state["id"]), state, nil
}

func (v *ModelView[T, C, U]) Update(ctx context.Context, id string, bind BindFunc) (map[string]any, error) {
	if v.cfg.Apply == nil {
		return nil, apperrors.WithMessage(apperrors.ErrForbidden, "Update is not allowed for "+v.cfg.Name)
	}

	row, err := v.crud.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	in := new(U)
	if err := bind(in); err != nil {
		return nil, validator.AsValidationError(err)
	}
	if err := v.cfg.Apply(ctx, row, in); err != nil {
		return nil, err
	}
	if err := v.crud.Update(ctx, row); err != nil {
		return nil, err
	}
	return v.cfg.Project(row), nil
}

func (v *ModelView[T, C, U]) Delete(ctx context.Context, id string) error {
	if !v.cfg.AllowDelete {
		return apperrors.WithMessage(apperrors.ErrForbidden, "Delete is not allowed for "+v.cfg.Name)
	}
	return v.crud.Delete(ctx, id)
}

func (v *ModelView[T, C, U]) BulkDelete(ctx context.Context, ids []string) (BulkDeleteResult, error) {
	if !v.cfg.AllowDelete {
		return BulkDeleteResult{}, apperrors.WithMessage(apperrors.ErrForbidden, "Delete is not allowed for "+v.cfg.Name)
	}

	var result BulkDeleteResult
	err := v.crud.Transaction(ctx, func(tx *crud.CRUD[T]) error {
		rows, err := tx.GetMany(ctx, ids)
		if err != nil {
			return err
		}
		states := make(map[string]map[string]any, len(rows))
		for i := range rows {
			state := v.cfg.Project(&rows[i])
			states[fmt.Sprint(state["id"])] = state
		}

		seen := make(map[string]struct{}, len(ids))
		found := make([]string, 0, len(states))
		result = BulkDeleteResult{Deleted: []DeletedRow{}, Missing: []string{}}
		for _, id := range ids {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			state, ok := states[id]
			if !ok {
				result.Missing = append(result.Missing, id)
				continue
			}
			found = append(found, id)
			result.Deleted = append(result.Deleted, DeletedRow{ID: id, State: state})
		}

		n, err := tx.DeleteMany(ctx, found)
		if err != nil {
			return err
		}
		if n != int64(len(found)) {
			return apperrors.Wrap(apperrors.ErrInternalServer,
				fmt.Errorf("bulk delete removed %d of %d rows", n, len(found)))
		}
		return nil
	})
	if err != nil {
		return BulkDeleteResult{}, err
	}
	return result, nil
}

// Package registry holds the table of models exposed by the admin interface.
package registry

import (
	"context"
	"fmt"
	"sort"

	"crudadmin/internal/crud"
	apperrors "crudadmin/internal/errors"
	"crudadmin/internal/pagination"
)

// BindFunc decodes and validates a request payload into the given schema.
type BindFunc func(obj any) error

// Permissions lists which mutations a view allows.
type Permissions struct {
	Create bool `json:"create"`
	Update bool `json:"update"`
	Delete bool `json:"delete"`
}

// View is one registered model as seen by the admin handlers. Every state is
// an explicit projection of the row.
type View interface {
	Name() string
	Permissions() Permissions
	Count(ctx context.Context) (int64, error)
	List(ctx context.Context, params crud.ListParams) (pagination.PageResponse[map[string]any], error)
	Get(ctx context.Context, id string) (map[string]any, error)
	// Create binds the create schema, inserts the row and returns its id and state.
	Create(ctx context.Context, bind BindFunc) (string, map[string]any, error)
	// Update binds the update schema onto the existing row and returns the new state.
	Update(ctx context.Context, id string, bind BindFunc) (map[string]any, error)
	Delete(ctx context.Context, id string) error
	// BulkDelete removes every existing row in ids in one transaction. Ids
	// that match no row are reported as missing. On error nothing is deleted.
	BulkDelete(ctx context.Context, ids []string) (BulkDeleteResult, error)
}

// DeletedRow is the id and last state of a row removed by BulkDelete.
type DeletedRow struct {
	ID    string
	State map[string]any
}

// BulkDeleteResult reports the outcome of a bulk delete in request order.
type BulkDeleteResult struct {
	Deleted []DeletedRow
	Missing []string
}

// Registry maps model names to views. It is built once at startup and
// passed to the router.
type Registry struct {
	views map[string]View
	order []string
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{views: make(map[string]View)}
}

// Register adds v. Names must be unique.
func (r *Registry) Register(v View) error {
	name := v.Name()
	if name == "" {
		return fmt.Errorf("view name is required")
	}
	if _, ok := r.views[name]; ok {
		return fmt.Errorf("model %q is already registered", name)
	}
	r.views[name] = v
	r.order = append(r.order, name)
	return nil
}

// MustRegister is Register that panics on error, for static wiring.
func (r *Registry) MustRegister(views ...View) *Registry {
	for _, v := range views {
		if err := r.Register(v); err != nil {
			panic(err)
		}
	}
	return r
}

// Get returns the view named name or ErrModelNotRegistered.
func (r *Registry) Get(name string) (View, error) {
	v, ok := r.views[name]
	if !ok {
		return nil, apperrors.WithMessage(apperrors.ErrModelNotRegistered, fmt.Sprintf("Model %q is not registered", name))
	}
	return v, nil
}

// Views returns all views in registration order.
func (r *Registry) Views() []View {
	out := make([]View, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.views[name])
	}
	return out
}

// Names returns the registered model names sorted alphabetically.
func (r *Registry) Names() []string {
	names := append([]string(nil), r.order...)
	sort.Strings(names)
	return names
}

// Package repository declares the storage contracts the service layer
// depends on. The sqlite package provides the only production
// implementation; tests may substitute their own.
package repository

import (
	"context"

	"github.com/sakif/permission-journal/internal/model"
)

// UnitOfWork is the single shared read/write context of the journal.
//
// Put and Delete calls only stage changes. Nothing reaches disk until Save,
// which writes every staged change in one all-or-nothing transaction.
type UnitOfWork interface {
	IsReady() bool
	HasChanges() bool
	Save(ctx context.Context) error
	Rollback()
}

type PermissionRepository interface {
	PutPermission(p model.Permission)
	DeletePermission(id string)
	Permissions(ctx context.Context) ([]model.Permission, error)
	PermissionByID(ctx context.Context, id string) (*model.Permission, error)
	FindPermissions(ctx context.Context, filter model.PermissionFilter) ([]model.Permission, error)
}

type CategoryRepository interface {
	PutCategory(c model.Category)
	DeleteCategory(id string)
	Categories(ctx context.Context) ([]model.Category, error)
	CategoryByID(ctx context.Context, id string) (*model.Category, error)
	CountCategories(ctx context.Context) (int, error)
}

type TagRepository interface {
	PutTag(t model.Tag)
	DeleteTag(id string)
	Tags(ctx context.Context) ([]model.Tag, error)
	TagByID(ctx context.Context, id string) (*model.Tag, error)
}

// Store is everything the journal service needs from persistence.
type Store interface {
	UnitOfWork
	PermissionRepository
	CategoryRepository
	TagRepository

	// DeleteAll removes every record of every type in one transaction.
	DeleteAll(ctx context.Context) error
}

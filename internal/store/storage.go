package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"souq/internal/catalog"
)

var (
	ErrNotFound          = errors.New("resource not found")
	ErrConflict          = errors.New("resource already exists")
	ErrDuplicateSlug     = errors.New("a category with that slug already exists")
	QueryTimeoutDuration = time.Second * 5
)

type Storage struct {
	Products interface {
		ListProducts(context.Context) ([]catalog.Product, error)
		GetByID(context.Context, string) (*catalog.Product, error)
		Create(context.Context, *catalog.Product) error
		Update(context.Context, string, map[string]interface{}) error
		Delete(context.Context, string) error
		SetCategories(ctx context.Context, productID string, categoryIDs []string) error
	}
	Categories interface {
		List(context.Context) ([]catalog.Category, error)
		GetByID(context.Context, string) (*catalog.Category, error)
		Create(context.Context, *catalog.Category) error
		Update(context.Context, string, map[string]interface{}) error
		// Delete removes the category and returns its image URL so the
		// caller can cascade the stored object's removal.
		Delete(context.Context, string) (string, error)
	}
	Users interface {
		Create(context.Context, *User) error
		GetByID(context.Context, string) (*User, error)
		GetByEmail(context.Context, string) (*User, error)
		UpdateProfile(context.Context, string, map[string]interface{}) error
		SetRole(ctx context.Context, userID, role string, isAdmin bool) error
		SetRefreshToken(ctx context.Context, userID, hashedToken string) error
	}
	PushTokens interface {
		AddOrUpdate(ctx context.Context, userID, token string, deviceInfo json.RawMessage) error
		Remove(ctx context.Context, userID, token string) error
		RemoveByTokenList(ctx context.Context, tokens []string) error
		AllTokens(context.Context) ([]string, error)
	}
	Procedures interface {
		EnsureSchema(context.Context) error
		CurrentProfile(ctx context.Context, userID string) (*User, error)
	}
}

func NewStorage(db *pgxpool.Pool) Storage {
	return Storage{
		Products:   &ProductsStore{db},
		Categories: &CategoriesStore{db},
		Users:      &UsersStore{db},
		PushTokens: &PushTokensStore{db},
		Procedures: &ProceduresStore{db},
	}
}

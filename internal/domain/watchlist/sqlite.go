package watchlist

import (
	"context"
	"slices"

	"gorm.io/gorm"

	"wpguard/internal/platform/errors"
	"wpguard/internal/platform/storage"
)

// sqliteStore keeps the list as one JSON option record and updates it in a
// single transaction.
type sqliteStore struct {
	options *storage.OptionRepository
	key     string
}

// NewSQLite constructs a database-backed store on a migrated handle.
func NewSQLite(db *gorm.DB, key string) Store {
	if key == "" {
		key = DefaultKey
	}
	return &sqliteStore{options: storage.NewOptionRepository(db), key: key}
}

func (s *sqliteStore) List(ctx context.Context) ([]string, error) {
	var list []string
	if _, err := s.options.Get(ctx, s.key, &list); err != nil {
		return nil, errors.Wrap(errors.KindWatchlist, "watchlist.list", "failed to read watch list", err)
	}
	return dedupe(list), nil
}

func (s *sqliteStore) Contains(ctx context.Context, id string) (bool, error) {
	list, err := s.List(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(list, id), nil
}

func (s *sqliteStore) Toggle(ctx context.Context, id string) (bool, error) {
	var (
		list     []string
		watching bool
	)
	err := s.options.Update(ctx, s.key, &list, func(bool) error {
		list, watching = toggle(dedupe(list), id)
		return nil
	})
	if err != nil {
		return false, errors.Wrap(errors.KindWatchlist, "watchlist.toggle", "failed to update watch list", err)
	}
	return watching, nil
}

func (s *sqliteStore) Close(context.Context) error {
	return nil
}

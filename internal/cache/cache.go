package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Cache memoizes JSON encodable values with a TTL. A nil *Cache, or one opened with an empty path,
// never stores anything and always calls through.
type Cache struct {
	db *badger.DB
}

// Open opens the badger database at path. An empty path returns a disabled cache.
func Open(path string, logger *slog.Logger) (*Cache, error) {
	if path == "" {
		return &Cache{}, nil
	}

	db, err := badger.Open(
		badger.DefaultOptions(path).
			WithNumVersionsToKeep(0).
			WithValueLogFileSize(1024 * 1024 * 100).
			WithLogger(&l{logger: logger}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to badger.Open: %w", err)
	}

	return &Cache{db: db}, nil
}

// OpenInMemory opens a cache that lives only for the process lifetime.
func OpenInMemory(logger *slog.Logger) (*Cache, error) {
	db, err := badger.Open(
		badger.DefaultOptions("").
			WithInMemory(true).
			WithLogger(&l{logger: logger}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to badger.Open: %w", err)
	}

	return &Cache{db: db}, nil
}

// Enabled reports whether values are actually stored.
func (c *Cache) Enabled() bool {
	return c != nil && c.db != nil
}

// Memoize retrieves a cached value for the specified cacheKey.
// If the value is present and decodes into V, it is returned with hit set. Otherwise, fn is called
// to compute the value, which is then stored in the cache with the specified expiration and returned.
// If fn returns an error, Memoize returns it unchanged and nothing is stored.
func Memoize[V any](c *Cache, cacheKey string, ttl time.Duration, fn func() (*V, error)) (value *V, hit bool, err error) {

	if !c.Enabled() {
		value, err = fn()
		return value, false, err
	}

	value = new(V)

	err = c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(cacheKey))
		if err != nil {
			return err
		}

		err = item.Value(func(val []byte) error {
			return json.Unmarshal(val, value)
		})
		if err != nil {
			return fmt.Errorf("failed to json.Unmarshal: %w", err)
		}

		return nil
	})
	if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, fmt.Errorf("failed to get from cache: %w", err)
	} else if err == nil {
		return value, true, nil
	}

	value, err = fn()
	if err != nil {
		return nil, false, err
	}

	err = c.db.Update(func(txn *badger.Txn) error {
		valueJSONBytes, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to json.Marshal: %w", err)
		}
		entry := badger.NewEntry([]byte(cacheKey), valueJSONBytes).WithTTL(ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to store on cache: %w", err)
	}

	return value, false, nil
}

// Close closes the cache DB. It's crucial to call it to ensure all the pending updates make their way to disk.
func (c *Cache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.db.Close()
}

// l adapts badger's printf style logger to slog.
type l struct {
	logger *slog.Logger
}

func (l *l) log(level slog.Level, s string, i ...interface{}) {
	if l.logger == nil {
		return
	}
	l.logger.Log(context.Background(), level, fmt.Sprintf(s, i...), "component", "badger")
}

func (l *l) Errorf(s string, i ...interface{}) {
	l.log(slog.LevelError, s, i...)
}

func (l *l) Warningf(s string, i ...interface{}) {
	l.log(slog.LevelWarn, s, i...)
}

func (l *l) Infof(s string, i ...interface{}) {
	l.log(slog.LevelDebug, s, i...)
}

func (l *l) Debugf(s string, i ...interface{}) {
	l.log(slog.LevelDebug, s, i...)
}

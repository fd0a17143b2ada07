// Package store persists tagged commands in a bbolt database.
// Keys are raw tag bytes, so iteration and prefix scans are in lexicographic
// tag order.
package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"github.com/pbrown/stoac/internal/models"
)

const commandBucket = "commands"

// lockTimeout bounds how long Open waits for another process holding the db.
const lockTimeout = time.Second

// ErrNotFound is returned when no command is stored under a tag.
var ErrNotFound = errors.New("command not found")

// Store provides a bbolt-backed command store.
type Store struct {
	db *bbolt.DB
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("database path is required")
	}

	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: lockTimeout})
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cleanPath, err)
	}

	s := &Store{db: db}
	if err := s.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Put stores a command, replacing any command already under its tag.
func (s *Store) Put(ctx context.Context, cmd models.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("store is not open")
	}
	if err := cmd.Validate(); err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := commands(tx)
		if err != nil {
			return err
		}
		return bucket.Put(cmd.Key(), []byte(cmd.Text))
	})
}

// Get fetches the command stored under tag.
func (s *Store) Get(ctx context.Context, tag string) (models.Command, error) {
	if err := ctx.Err(); err != nil {
		return models.Command{}, err
	}
	if s == nil || s.db == nil {
		return models.Command{}, fmt.Errorf("store is not open")
	}
	if err := models.ValidateTag(tag); err != nil {
		return models.Command{}, err
	}

	var cmd models.Command
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket, err := commands(tx)
		if err != nil {
			return err
		}
		value := bucket.Get([]byte(tag))
		if value == nil {
			return ErrNotFound
		}
		// value is only valid for the life of the transaction
		cmd = models.Command{Tag: tag, Text: string(value)}
		return nil
	})
	if err != nil {
		return models.Command{}, err
	}
	return cmd, nil
}

// Delete removes the command under tag. It reports whether one existed.
func (s *Store) Delete(ctx context.Context, tag string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s == nil || s.db == nil {
		return false, fmt.Errorf("store is not open")
	}
	if err := models.ValidateTag(tag); err != nil {
		return false, err
	}

	existed := false
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := commands(tx)
		if err != nil {
			return err
		}
		key := []byte(tag)
		if bucket.Get(key) == nil {
			return nil
		}
		existed = true
		return bucket.Delete(key)
	})
	if err != nil {
		return false, err
	}
	return existed, nil
}

// Prefix returns, in order, the tags in [prefix, PrefixEnd(prefix)).
func (s *Store) Prefix(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store is not open")
	}

	start := []byte(prefix)
	end := models.PrefixEnd(start)

	var tags []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket, err := commands(tx)
		if err != nil {
			return err
		}
		c := bucket.Cursor()
		for k, _ := c.Seek(start); k != nil; k, _ = c.Next() {
			if end != nil && bytes.Compare(k, end) >= 0 {
				break
			}
			tags = append(tags, string(k))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tags, nil
}

// List returns every stored command in tag order.
func (s *Store) List(ctx context.Context) ([]models.Command, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store is not open")
	}

	var all []models.Command
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket, err := commands(tx)
		if err != nil {
			return err
		}
		return bucket.ForEach(func(k, v []byte) error {
			all = append(all, models.Command{Tag: string(k), Text: string(v)})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return all, nil
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(commandBucket)); err != nil {
			return fmt.Errorf("create %s bucket: %w", commandBucket, err)
		}
		return nil
	})
}

func commands(tx *bbolt.Tx) (*bbolt.Bucket, error) {
	bucket := tx.Bucket([]byte(commandBucket))
	if bucket == nil {
		return nil, fmt.Errorf("%s bucket is missing", commandBucket)
	}
	return bucket, nil
}

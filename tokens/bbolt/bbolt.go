// Package bbolt provides a persistent token store backed by a bbolt file, so
// version tokens survive client restarts.
package bbolt

import (
	"bytes"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/driftbase/driftbase/codec"
	"github.com/driftbase/driftbase/log"
	"github.com/driftbase/driftbase/ref"
	"github.com/driftbase/driftbase/tokens"
)

var bucketName = []byte{0}

// BBolt is a file-backed token store.
type BBolt struct {
	db *bbolt.DB
}

func init() {
	_ = tokens.Register("bbolt", NewBBolt)
}

// NewBBolt opens or creates a token store file in the given directory.
func NewBBolt(location string) (tokens.Store, error) {
	db, err := bbolt.Open(filepath.Join(location, "tokens.bbolt"), 0o600, nil)
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &BBolt{db: db}, nil
}

// Get returns the version token stored for r. Backend failures are reported
// as misses, which only ever degrades requests to unconditional ones.
func (b *BBolt) Get(r ref.Ref) (string, bool) {
	key, ok := tokens.Key(r)
	if !ok {
		return "", false
	}

	var entry tokens.Entry
	found := false
	err := b.db.View(func(tx *bbolt.Tx) error {
		value := tx.Bucket(bucketName).Get([]byte(key))
		if value == nil {
			return nil
		}
		if _, err := codec.Load(value, &entry); err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		log.Warningf("tokens: failed to read token for %s: %s", key, err)
		return "", false
	}
	return entry.Token, found
}

// Set stores the version token for r.
func (b *BBolt) Set(r ref.Ref, token string) {
	key, ok := tokens.Key(r)
	if !ok {
		return
	}

	value, err := codec.Dump(&tokens.Entry{
		Token:   token,
		Updated: time.Now().Unix(),
	}, codec.AUTO)
	if err != nil {
		log.Warningf("tokens: failed to serialize token for %s: %s", key, err)
		return
	}

	err = b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), value)
	})
	if err != nil {
		log.Warningf("tokens: failed to store token for %s: %s", key, err)
	}
}

// Clear removes the token stored for r.
func (b *BBolt) Clear(r ref.Ref) {
	key, ok := tokens.Key(r)
	if !ok {
		return
	}

	err := b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Delete([]byte(key))
	})
	if err != nil {
		log.Warningf("tokens: failed to clear token for %s: %s", key, err)
	}
}

// ClearTree removes the tokens of r and of every resource below it.
func (b *BBolt) ClearTree(r ref.Ref) {
	if r.IsRoot() {
		err := b.db.Update(func(tx *bbolt.Tx) error {
			if err := tx.DeleteBucket(bucketName); err != nil {
				return err
			}
			_, err := tx.CreateBucket(bucketName)
			return err
		})
		if err != nil {
			log.Warningf("tokens: failed to clear store: %s", err)
		}
		return
	}

	key, ok := tokens.Key(r)
	if !ok {
		return
	}
	prefix := []byte(tokens.TreePrefix(key))

	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		if err := bucket.Delete([]byte(key)); err != nil {
			return err
		}

		// Collect matching keys first, a cursor delete shifts the
		// position and Next would skip the following key.
		var doomed [][]byte
		c := bucket.Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			doomed = append(doomed, append([]byte(nil), k...))
		}

		for _, k := range doomed {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Warningf("tokens: failed to clear token tree for %s: %s", key, err)
	}
}

// Snapshot returns a copy of all stored tokens keyed by resource path.
func (b *BBolt) Snapshot() map[string]string {
	all := make(map[string]string)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).ForEach(func(k, v []byte) error {
			var entry tokens.Entry
			if _, err := codec.Load(v, &entry); err != nil {
				return err
			}
			all[string(k)] = entry.Token
			return nil
		})
	})
	if err != nil {
		log.Warningf("tokens: failed to snapshot store: %s", err)
	}
	return all
}

// Shutdown closes the store file.
func (b *BBolt) Shutdown() error {
	return b.db.Close()
}

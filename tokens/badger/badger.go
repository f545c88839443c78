// Package badger provides a persistent token store backed by a badger
// database, suited for very large token sets.
package badger

import (
	"time"

	"github.com/dgraph-io/badger"

	"github.com/driftbase/driftbase/codec"
	"github.com/driftbase/driftbase/log"
	"github.com/driftbase/driftbase/ref"
	"github.com/driftbase/driftbase/tokens"
)

// Badger is a badger-backed token store.
type Badger struct {
	db *badger.DB
}

func init() {
	_ = tokens.Register("badger", NewBadger)
}

// NewBadger opens or creates a token store database in the given directory.
func NewBadger(location string) (tokens.Store, error) {
	opts := badger.DefaultOptions(location)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &Badger{db: db}, nil
}

// Get returns the version token stored for r. Backend failures are reported
// as misses, which only ever degrades requests to unconditional ones.
func (b *Badger) Get(r ref.Ref) (string, bool) {
	key, ok := tokens.Key(r)
	if !ok {
		return "", false
	}

	var entry tokens.Entry
	found := false
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil
			}
			return err
		}
		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
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
func (b *Badger) Set(r ref.Ref, token string) {
	key, ok := tokens.Key(r)
	if !ok {
		return
	}

	value, err := codec.Dump(&tokens.Entry{
		Token:   token,
		Updated: time.Now().Unix(),
	}, codec.CBOR)
	if err != nil {
		log.Warningf("tokens: failed to serialize token for %s: %s", key, err)
		return
	}

	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		log.Warningf("tokens: failed to store token for %s: %s", key, err)
	}
}

// Clear removes the token stored for r.
func (b *Badger) Clear(r ref.Ref) {
	key, ok := tokens.Key(r)
	if !ok {
		return
	}

	err := b.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(key))
		if err != nil && err != badger.ErrKeyNotFound {
			return err
		}
		return nil
	})
	if err != nil {
		log.Warningf("tokens: failed to clear token for %s: %s", key, err)
	}
}

// ClearTree removes the tokens of r and of every resource below it.
func (b *Badger) ClearTree(r ref.Ref) {
	if r.IsRoot() {
		if err := b.db.DropAll(); err != nil {
			log.Warningf("tokens: failed to clear store: %s", err)
		}
		return
	}

	key, ok := tokens.Key(r)
	if !ok {
		return
	}
	prefix := []byte(tokens.TreePrefix(key))

	err := b.db.Update(func(txn *badger.Txn) error {
		// Collect matching keys first, deleting while iterating is not
		// supported.
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.PrefetchValues = false
		it := txn.NewIterator(iterOpts)
		doomed := [][]byte{[]byte(key)}
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			doomed = append(doomed, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, k := range doomed {
			if err := txn.Delete(k); err != nil && err != badger.ErrKeyNotFound {
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
func (b *Badger) Snapshot() map[string]string {
	all := make(map[string]string)
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			var entry tokens.Entry
			if _, err := codec.Load(value, &entry); err != nil {
				return err
			}
			all[string(item.KeyCopy(nil))] = entry.Token
		}
		return nil
	})
	if err != nil {
		log.Warningf("tokens: failed to snapshot store: %s", err)
	}
	return all
}

// Shutdown closes the database, flushing pending writes.
func (b *Badger) Shutdown() error {
	return b.db.Close()
}

package kvstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDB is a persistent on-disk Store. Write sets are committed as a single
// synced leveldb batch.
type LevelDB struct {
	db *leveldb.DB
}

// OpenLevelDB creates or opens a database at path.
func OpenLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}
	return &LevelDB{db: db}, nil
}

func (l *LevelDB) Get(_ context.Context, key []byte) ([]byte, bool, error) {
	v, err := l.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("leveldb get: %w", err)
	}
	return v, true, nil
}

func (l *LevelDB) Scan(_ context.Context, prefix []byte, fn func(key, value []byte) error) error {
	it := l.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer it.Release()
	for it.Next() {
		// Iterator buffers are reused between steps.
		k := append([]byte(nil), it.Key()...)
		v := append([]byte(nil), it.Value()...)
		if err := fn(k, v); err != nil {
			return err
		}
	}
	if err := it.Error(); err != nil {
		return fmt.Errorf("leveldb iterate: %w", err)
	}
	return nil
}

func (l *LevelDB) Apply(_ context.Context, ops []Op) error {
	batch := new(leveldb.Batch)
	for _, op := range ops {
		if op.Delete {
			batch.Delete(op.Key)
		} else {
			batch.Put(op.Key, op.Value)
		}
	}
	if err := l.db.Write(batch, &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("leveldb write: %w", err)
	}
	return nil
}

func (l *LevelDB) Close() error { return l.db.Close() }

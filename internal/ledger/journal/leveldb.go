package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strconv"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Key layout:
//
//	entry:<seq, 20 digits>              -> JSON Entry
//	license:<license>:<seq, 20 digits>  -> seq
//	meta:head                           -> seq of the latest entry
const (
	entryPrefix   = "entry:"
	licensePrefix = "license:"
	headKey       = "meta:head"
)

// LevelDBBackend persists entries in a LevelDB directory. Each append writes the
// entry, its license index key and the new head pointer in one batch.
type LevelDBBackend struct {
	db *leveldb.DB
}

func OpenLevelDB(path string) (*LevelDBBackend, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}
	return &LevelDBBackend{db: db}, nil
}

func entryKey(seq uint64) []byte {
	return fmt.Appendf(nil, "%s%020d", entryPrefix, seq)
}

func licenseKey(license string, seq uint64) []byte {
	return fmt.Appendf(nil, "%s%s:%020d", licensePrefix, license, seq)
}

func (l *LevelDBBackend) Head(_ context.Context) (Entry, bool, error) {
	raw, err := l.db.Get([]byte(headKey), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	seq, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return Entry{}, false, fmt.Errorf("corrupt head pointer: %w", err)
	}
	e, err := l.get(seq)
	if err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

func (l *LevelDBBackend) get(seq uint64) (Entry, error) {
	raw, err := l.db.Get(entryKey(seq), nil)
	if err != nil {
		return Entry{}, fmt.Errorf("get entry %d: %w", seq, err)
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, fmt.Errorf("decode entry %d: %w", seq, err)
	}
	return e, nil
}

func (l *LevelDBBackend) Append(_ context.Context, e Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	seq := []byte(strconv.FormatUint(e.Seq, 10))
	batch := new(leveldb.Batch)
	batch.Put(entryKey(e.Seq), raw)
	batch.Put(licenseKey(e.License, e.Seq), seq)
	batch.Put([]byte(headKey), seq)
	return l.db.Write(batch, nil)
}

func (l *LevelDBBackend) ForLicense(_ context.Context, license string) ([]Entry, error) {
	prefix := []byte(licensePrefix + license + ":")
	it := l.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer it.Release()

	var out []Entry
	for it.Next() {
		seq, err := strconv.ParseUint(string(it.Value()), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt license index: %w", err)
		}
		e, err := l.get(seq)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, it.Error()
}

func (l *LevelDBBackend) All(_ context.Context) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		it := l.db.NewIterator(util.BytesPrefix([]byte(entryPrefix)), nil)
		defer it.Release()
		for it.Next() {
			var e Entry
			if err := json.Unmarshal(it.Value(), &e); err != nil {
				yield(Entry{}, fmt.Errorf("decode entry: %w", err))
				return
			}
			if !yield(e, nil) {
				return
			}
		}
		if err := it.Error(); err != nil {
			yield(Entry{}, err)
		}
	}
}

func (l *LevelDBBackend) Close() error {
	return l.db.Close()
}

package vectorstore

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

const (
	keyPrefix       = "tickets/emb/v1/"
	maxTxnConflicts = 5
)

// BadgerOptions configures a BadgerBackend. An empty Path with InMemory false is invalid.
type BadgerOptions struct {
	Path           string
	InMemory       bool
	MaxRecordBytes int
	Logger         *slog.Logger
}

// BadgerBackend persists gob-encoded records in BadgerDB.
type BadgerBackend struct {
	db             *badger.DB
	maxRecordBytes int
	logger         *slog.Logger
}

// OpenBadger opens or creates the database.
func OpenBadger(opts BadgerOptions) (*BadgerBackend, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	var bopts badger.Options
	switch {
	case opts.InMemory:
		bopts = badger.DefaultOptions("").WithInMemory(true)
	case opts.Path != "":
		bopts = badger.DefaultOptions(opts.Path)
	default:
		return nil, fmt.Errorf("badger path is required")
	}
	db, err := badger.Open(bopts.WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	opts.Logger.Debug("vector store opened",
		slog.String("path", opts.Path),
		slog.Bool("in_memory", opts.InMemory),
	)
	return &BadgerBackend{db: db, maxRecordBytes: opts.MaxRecordBytes, logger: opts.Logger}, nil
}

// Put implements Backend. Transaction conflicts are retried; a transaction that is too
// large or a record over the quota reports ErrCapacity.
func (b *BadgerBackend) Put(ctx context.Context, rec Record) error {
	raw, err := gobEncode(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if b.maxRecordBytes > 0 && len(raw) > b.maxRecordBytes {
		return ErrCapacity
	}

	key := recordKey(rec.Key)
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err = b.db.Update(func(txn *badger.Txn) error {
			return txn.Set(key, raw)
		})
		if errors.Is(err, badger.ErrConflict) && attempt < maxTxnConflicts {
			b.logger.Debug("vector store conflict, retrying", slog.String("key", rec.Key), slog.Int("attempt", attempt))
			continue
		}
		break
	}
	if errors.Is(err, badger.ErrTxnTooBig) {
		return ErrCapacity
	}
	return err
}

// Get implements Backend.
func (b *BadgerBackend) Get(_ context.Context, key string) (Record, bool, error) {
	var raw []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(key))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("get record: %w", err)
	}
	rec, err := gobDecode(raw)
	if err != nil {
		return Record{}, false, fmt.Errorf("decode record: %w", err)
	}
	return rec, true, nil
}

// Scan implements Backend.
func (b *BadgerBackend) Scan(ctx context.Context, fn func(Record) bool) error {
	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			raw, err := it.Item().ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("copy value: %w", err)
			}
			rec, err := gobDecode(raw)
			if err != nil {
				b.logger.Warn("skipping undecodable record",
					slog.String("key", string(it.Item().Key())),
					slog.String("error", err.Error()),
				)
				continue
			}
			if !fn(rec) {
				return nil
			}
		}
		return nil
	})
}

// Close implements Backend.
func (b *BadgerBackend) Close() error {
	return b.db.Close()
}

func recordKey(key string) []byte {
	return []byte(keyPrefix + key)
}

func gobEncode(rec Record) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gobDecode(raw []byte) (Record, error) {
	var rec Record
	err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&rec)
	return rec, err
}

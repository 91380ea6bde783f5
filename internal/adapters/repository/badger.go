package repository

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/okian/tempoguard/internal/domain/model"
)

// Snapshot keys sort by participant, then time: v/<hex participant>/<nanos, zero padded>/<check>.
// Participant ids are hex encoded so no id can be a key prefix of another.
const snapshotKeyPrefix = "v/"

// BadgerStore keeps snapshots in BadgerDB.
type BadgerStore struct {
	db *badger.DB
}

var _ Store = (*BadgerStore)(nil)

// OpenBadger opens (or creates) a database at path. An empty path opens an in-memory database.
func OpenBadger(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", path, err)
	}
	return NewBadgerStore(db), nil
}

// NewBadgerStore wraps an open database. Close closes it.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

func participantPrefix(participantID string) []byte {
	return []byte(snapshotKeyPrefix + hex.EncodeToString([]byte(participantID)) + "/")
}

func snapshotKey(s model.ViolationSnapshot) []byte {
	return fmt.Appendf(participantPrefix(s.ParticipantID), "%020d/%s", s.RecordedAt.UnixNano(), s.CheckID)
}

func (s *BadgerStore) Record(_ context.Context, snap model.ViolationSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(snapshotKey(snap), data)
	})
	if errors.Is(err, badger.ErrDBClosed) {
		return ErrClosed
	}
	if err != nil {
		return fmt.Errorf("set snapshot: %w", err)
	}
	return nil
}

func (s *BadgerStore) History(_ context.Context, participantID string, limit int) ([]model.ViolationSnapshot, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	prefix := participantPrefix(participantID)
	out := make([]model.ViolationSnapshot, 0, limit)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		// In reverse mode Seek lands on the last key not greater than the seek key.
		seek := append(append([]byte(nil), prefix...), 0xff)
		for it.Seek(seek); it.ValidForPrefix(prefix) && len(out) < limit; it.Next() {
			var snap model.ViolationSnapshot
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &snap)
			}); err != nil {
				return fmt.Errorf("decode snapshot: %w", err)
			}
			out = append(out, snap)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

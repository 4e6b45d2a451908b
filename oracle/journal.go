package oracle

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketSubmissions = []byte("submissions")
	bucketCheckpoints = []byte("checkpoints")

	// ErrJournalNotFound is returned when no entry exists for a code.
	ErrJournalNotFound = errors.New("oracle journal: entry not found")
)

// Journal persists the last accepted submission per collateral code so the
// poller survives restarts without re-announcing stale prices.
type Journal struct {
	db *bolt.DB
}

// JournalEntry is the durable record of an accepted submission.
type JournalEntry struct {
	Code        string    `json:"code"`
	Price       *big.Int  `json:"price"`
	SubmittedAt time.Time `json:"submittedAt"`
	ProofID     string    `json:"proofId"`
	Source      string    `json:"source"`
}

// OpenJournal initialises the bolt-backed journal at the given path.
func OpenJournal(path string) (*Journal, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketSubmissions, bucketCheckpoints} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Journal{db: db}, nil
}

// Close releases the underlying database handle.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Record stores the accepted submission for its collateral code,
// overwriting any previous entry.
func (j *Journal) Record(entry JournalEntry) error {
	if j == nil || j.db == nil {
		return fmt.Errorf("oracle journal not configured")
	}
	code := normalizeSymbol(entry.Code)
	if code == "" {
		return fmt.Errorf("oracle journal: collateral code required")
	}
	entry.Code = code
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode journal entry: %w", err)
	}
	return j.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSubmissions).Put([]byte(code), raw)
	})
}

// Last returns the most recent accepted submission for the code.
func (j *Journal) Last(code string) (*JournalEntry, error) {
	if j == nil || j.db == nil {
		return nil, fmt.Errorf("oracle journal not configured")
	}
	symbol := normalizeSymbol(code)
	var entry *JournalEntry
	err := j.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketSubmissions).Get([]byte(symbol))
		if raw == nil {
			return ErrJournalNotFound
		}
		decoded := &JournalEntry{}
		if err := json.Unmarshal(raw, decoded); err != nil {
			return fmt.Errorf("decode journal entry: %w", err)
		}
		entry = decoded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Checkpoint stores an opaque cursor under the given name. The poller uses
// it to remember the last completed sweep.
func (j *Journal) Checkpoint(name string, at time.Time) error {
	if j == nil || j.db == nil {
		return fmt.Errorf("oracle journal not configured")
	}
	raw, err := at.UTC().MarshalText()
	if err != nil {
		return err
	}
	return j.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCheckpoints).Put([]byte(name), raw)
	})
}

// LastCheckpoint returns the stored cursor, or the zero time when absent.
func (j *Journal) LastCheckpoint(name string) (time.Time, error) {
	if j == nil || j.db == nil {
		return time.Time{}, fmt.Errorf("oracle journal not configured")
	}
	var at time.Time
	err := j.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketCheckpoints).Get([]byte(name))
		if raw == nil {
			return nil
		}
		return at.UnmarshalText(raw)
	})
	return at, err
}

// Package storage provides persistent data storage for the venue router.
// It uses BoltDB as the underlying storage engine to store venue execution
// records (the training data for the per-venue models) and routing decisions
// (an audit trail of what the router chose).
//
// The package provides thread-safe operations for storing and retrieving
// time-series data with efficient range queries and automatic bucket management.
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

const (
	executionsBucket = "executions" // Venue execution records used for training
	decisionsBucket  = "decisions"  // Routing decisions for audit
)

// ExecutionRecord is one filled order on one venue: the feature row that
// described the order plus the realized price improvement the venue gave.
type ExecutionRecord struct {
	Venue       string    `json:"venue"`
	Symbol      string    `json:"symbol"`
	Timestamp   time.Time `json:"timestamp"`
	Features    []float64 `json:"features"`
	Improvement float64   `json:"improvement"`
}

// DecisionRecord is a single routing decision made by the service.
type DecisionRecord struct {
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"`
	Quantity   int64     `json:"quantity"`
	Venue      string    `json:"venue"`
	Prediction float64   `json:"prediction"`
	Timestamp  time.Time `json:"timestamp"`
}

// Store provides persistent storage using BoltDB.
type Store struct {
	db *bbolt.DB
}

// New creates a new storage instance with the specified data path.
// It initializes the BoltDB database and creates necessary buckets.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, "venue-router.db")

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(executionsBucket)); err != nil {
			return fmt.Errorf("create executions bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(decisionsBucket)); err != nil {
			return fmt.Errorf("create decisions bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection gracefully.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// StoreExecution stores a venue execution record. Records are keyed
// "venue_timestamp" so the trainer can range-scan per venue.
func (s *Store) StoreExecution(rec ExecutionRecord) error {
	if rec.Venue == "" {
		return fmt.Errorf("execution record requires a venue")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(executionsBucket))

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal execution record: %w", err)
		}

		key := fmt.Sprintf("%s_%d", rec.Venue, rec.Timestamp.UnixNano())
		return b.Put([]byte(key), data)
	})
}

// StoreDecision stores a routing decision keyed "symbol_timestamp".
func (s *Store) StoreDecision(rec DecisionRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(decisionsBucket))

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal decision record: %w", err)
		}

		key := fmt.Sprintf("%s_%d", rec.Symbol, rec.Timestamp.UnixNano())
		return b.Put([]byte(key), data)
	})
}

// GetExecutions retrieves execution records for a venue within a time range.
// The range is inclusive of both ends.
func (s *Store) GetExecutions(venue string, start, end time.Time) ([]ExecutionRecord, error) {
	var records []ExecutionRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(executionsBucket))
		c := b.Cursor()

		prefix := []byte(venue + "_")
		startKey := []byte(fmt.Sprintf("%s_%d", venue, start.UnixNano()))
		endKey := []byte(fmt.Sprintf("%s_%d", venue, end.UnixNano()))

		for k, v := c.Seek(startKey); k != nil && bytes.Compare(k, endKey) <= 0; k, v = c.Next() {
			if !bytes.HasPrefix(k, prefix) {
				continue
			}

			var rec ExecutionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				continue // Skip malformed records
			}
			records = append(records, rec)
		}

		return nil
	})

	return records, err
}

// GetDecisions retrieves routing decisions for a symbol within a time range.
func (s *Store) GetDecisions(symbol string, start, end time.Time) ([]DecisionRecord, error) {
	var records []DecisionRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(decisionsBucket))
		c := b.Cursor()

		prefix := []byte(symbol + "_")
		startKey := []byte(fmt.Sprintf("%s_%d", symbol, start.UnixNano()))
		endKey := []byte(fmt.Sprintf("%s_%d", symbol, end.UnixNano()))

		for k, v := c.Seek(startKey); k != nil && bytes.Compare(k, endKey) <= 0; k, v = c.Next() {
			if !bytes.HasPrefix(k, prefix) {
				continue
			}

			var rec DecisionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				continue
			}
			records = append(records, rec)
		}

		return nil
	})

	return records, err
}

// Venues returns the distinct venue identifiers present in the executions
// bucket, sorted. Venue ids must not contain underscores; the key scheme
// reserves them as separators.
func (s *Store) Venues() ([]string, error) {
	seen := make(map[string]bool)

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(executionsBucket))
		return b.ForEach(func(k, _ []byte) error {
			if i := strings.IndexByte(string(k), '_'); i > 0 {
				seen[string(k[:i])] = true
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	venues := make([]string, 0, len(seen))
	for v := range seen {
		venues = append(venues, v)
	}
	sort.Strings(venues)
	return venues, nil
}

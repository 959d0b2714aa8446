// Package store keeps a local ledger of evaluation runs in BoltDB.
package store

import (
	"encoding/binary"
	"errors"
	"time"

	"github.com/boltdb/bolt"
)

var (
	bucketRuns     = []byte("runs")
	bucketRankings = []byte("rankings")
	bucketMeta     = []byte("meta")
	keyEpoch       = []byte("epoch")
)

var ErrRunNotFound = errors.New("run not found")

// QueryRecord holds the metrics of one evaluated query.
type QueryRecord struct {
	QueryID          string  `cbor:"1,keyasint"`
	Precision        float64 `cbor:"2,keyasint"`
	Recall           float64 `cbor:"3,keyasint"`
	AveragePrecision float64 `cbor:"4,keyasint"`
	ReciprocalRank   float64 `cbor:"5,keyasint"`
	PrecisionAt5     float64 `cbor:"6,keyasint"`
	PrecisionAt20    float64 `cbor:"7,keyasint"`
	Undefined        bool    `cbor:"8,keyasint"`
}

// RunRecord describes one batch run.
type RunRecord struct {
	ID          uint64        `cbor:"1,keyasint"`
	StartedAt   time.Time     `cbor:"2,keyasint"`
	Duration    time.Duration `cbor:"3,keyasint"`
	IndexDigest string        `cbor:"4,keyasint"`
	K1          float64       `cbor:"5,keyasint"`
	K2          float64       `cbor:"6,keyasint"`
	B           float64       `cbor:"7,keyasint"`
	Limit       int           `cbor:"8,keyasint"`
	Feedback    bool          `cbor:"9,keyasint"`
	Queries     int           `cbor:"10,keyasint"`
	MAP         float64       `cbor:"11,keyasint"`
	MRR         float64       `cbor:"12,keyasint"`
	Flagged     []string      `cbor:"13,keyasint,omitempty"`
	Stats       []QueryRecord `cbor:"14,keyasint,omitempty"`
	System      string        `cbor:"15,keyasint,omitempty"`
}

// RankedDoc is one stored ranking row.
type RankedDoc struct {
	DocID string  `cbor:"1,keyasint"`
	Score float64 `cbor:"2,keyasint"`
}

// Ledger provides persistent storage for run history using BoltDB.
type Ledger struct {
	db *bolt.DB
}

// Open opens or creates a ledger file.
func Open(path string) (*Ledger, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	// Initialize buckets
	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketRuns, bucketRankings, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

// GetEpoch returns the ID of the last recorded run.
func (l *Ledger) GetEpoch() (uint64, error) {
	var epoch uint64
	err := l.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketMeta).Get(keyEpoch)
		if data != nil {
			epoch = binary.BigEndian.Uint64(data)
		}
		return nil
	})
	return epoch, err
}

// Record stores run and its rankings under a fresh run ID, which is also
// written back into run.ID.
func (l *Ledger) Record(run *RunRecord, rankings map[string][]RankedDoc) (uint64, error) {
	err := l.Update(func(tx *Tx) error {
		id, err := tx.IncrementEpoch()
		if err != nil {
			return err
		}
		run.ID = id
		if err := tx.PutRun(run); err != nil {
			return err
		}
		for queryID, docs := range rankings {
			if err := tx.PutRanking(id, queryID, docs); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		run.ID = 0
		return 0, err
	}
	return run.ID, nil
}

// Runs returns every recorded run, oldest first.
func (l *Ledger) Runs() ([]RunRecord, error) {
	var runs []RunRecord
	err := l.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRuns).ForEach(func(_, v []byte) error {
			var run RunRecord
			if err := unmarshal(v, &run); err != nil {
				return err
			}
			runs = append(runs, run)
			return nil
		})
	})
	return runs, err
}

// Run returns a single run.
func (l *Ledger) Run(id uint64) (*RunRecord, error) {
	var run *RunRecord
	err := l.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketRuns).Get(runKey(id))
		if data == nil {
			return ErrRunNotFound
		}
		run = &RunRecord{}
		return unmarshal(data, run)
	})
	return run, err
}

// Ranking returns the stored ranking of a query in a run.
func (l *Ledger) Ranking(id uint64, queryID string) ([]RankedDoc, bool, error) {
	var docs []RankedDoc
	found := false
	err := l.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketRankings).Get(rankingKey(id, queryID))
		if data == nil {
			return nil
		}
		found = true
		return unmarshalCompressed(data, &docs)
	})
	return docs, found, err
}

// Update runs fn within a write transaction.
func (l *Ledger) Update(fn func(*Tx) error) error {
	return l.db.Update(func(tx *bolt.Tx) error {
		return fn(&Tx{tx: tx})
	})
}

// Tx provides write operations within a transaction.
type Tx struct {
	tx *bolt.Tx
}

// PutRun stores a run under run.ID.
func (t *Tx) PutRun(run *RunRecord) error {
	data, err := marshal(run)
	if err != nil {
		return err
	}
	return t.tx.Bucket(bucketRuns).Put(runKey(run.ID), data)
}

// PutRanking stores the compressed ranking of a query.
func (t *Tx) PutRanking(id uint64, queryID string, docs []RankedDoc) error {
	data, err := marshalCompressed(docs)
	if err != nil {
		return err
	}
	return t.tx.Bucket(bucketRankings).Put(rankingKey(id, queryID), data)
}

// IncrementEpoch increments and returns the epoch.
func (t *Tx) IncrementEpoch() (uint64, error) {
	b := t.tx.Bucket(bucketMeta)
	var epoch uint64
	data := b.Get(keyEpoch)
	if data != nil {
		epoch = binary.BigEndian.Uint64(data)
	}
	epoch++
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, epoch)
	return epoch, b.Put(keyEpoch, buf)
}

// runKey is big-endian so bolt iterates runs in ID order.
func runKey(id uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, id)
	return buf
}

func rankingKey(id uint64, queryID string) []byte {
	return append(runKey(id), queryID...)
}

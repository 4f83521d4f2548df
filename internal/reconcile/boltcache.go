package reconcile

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/lancehub/lancehub/internal/domain/bid"
)

var (
	bucketSnapshots = []byte("snapshots")
	bucketSeen      = []byte("seen")
)

// BoltCache is a bbolt-backed durable cache. Snapshots live in a nested
// bucket per (projectID, actorID) scope; seen markers are flat keys of
// bidID plus big-endian version.
type BoltCache struct {
	db *bolt.DB
}

// OpenBoltCache opens (or creates) the cache file.
func OpenBoltCache(path string) (*BoltCache, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketSnapshots); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketSeen)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init cache buckets: %w", err)
	}
	return &BoltCache{db: db}, nil
}

// Close releases the underlying file.
func (c *BoltCache) Close() error {
	return c.db.Close()
}

func scopeKey(projectID, actorID uuid.UUID) []byte {
	key := make([]byte, 0, 32)
	key = append(key, projectID[:]...)
	key = append(key, actorID[:]...)
	return key
}

func seenKey(bidID uuid.UUID, version int64) []byte {
	key := make([]byte, 24)
	copy(key, bidID[:])
	binary.BigEndian.PutUint64(key[16:], uint64(version))
	return key
}

func (c *BoltCache) PutSnapshot(projectID, actorID uuid.UUID, b *bid.Bid) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		scope, err := tx.Bucket(bucketSnapshots).CreateBucketIfNotExists(scopeKey(projectID, actorID))
		if err != nil {
			return err
		}
		// Only ever move forward: a concurrent writer may have stored a
		// newer confirmed snapshot already.
		if prev := scope.Get(b.BidID[:]); prev != nil {
			var old bid.Bid
			if err := json.Unmarshal(prev, &old); err == nil && old.Version > b.Version {
				return nil
			}
		}
		return scope.Put(b.BidID[:], data)
	})
}

func (c *BoltCache) GetSnapshots(projectID, actorID uuid.UUID) ([]*bid.Bid, error) {
	var out []*bid.Bid
	err := c.db.View(func(tx *bolt.Tx) error {
		scope := tx.Bucket(bucketSnapshots).Bucket(scopeKey(projectID, actorID))
		if scope == nil {
			return nil
		}
		return scope.ForEach(func(_, v []byte) error {
			var b bid.Bid
			if err := json.Unmarshal(v, &b); err != nil {
				return fmt.Errorf("unmarshal snapshot: %w", err)
			}
			out = append(out, &b)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *BoltCache) MarkSeen(bidID uuid.UUID, version int64) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSeen).Put(seenKey(bidID, version), []byte{1})
	})
}

func (c *BoltCache) Seen(bidID uuid.UUID, version int64) (bool, error) {
	var seen bool
	err := c.db.View(func(tx *bolt.Tx) error {
		seen = tx.Bucket(bucketSeen).Get(seenKey(bidID, version)) != nil
		return nil
	})
	return seen, err
}

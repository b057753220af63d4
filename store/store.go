// Package store implements the persisted state layout: the fields of each
// channel's (ChannelSetup, EnforcementState) tuple that record.go encodes
// are written atomically as a single TLV-encoded record keyed by its
// ChannelId, backed by the kvdb backend
// abstraction. Grounded on channeldb/db.go's top-level-bucket-per-record
// layout, generalized from a direct boltdb dependency to kvdb so the
// backend (bolt, etcd, postgres) is a deployment choice rather than a
// compile-time one.
package store

import (
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/kvdb"
	"github.com/lightningnetwork/remotesigner/chanid"
	"github.com/lightningnetwork/remotesigner/chansetup"
	"github.com/lightningnetwork/remotesigner/enforcement"
	"github.com/lightningnetwork/remotesigner/policy"
)

var channelBucketKey = []byte("remotesigner-channels")

// Store is the persistence collaborator for channel records. It writes only
// when Put is called: the channel container (channel.Manager) holds no
// Store, so a state transition it accepts is not persisted by itself.
type Store struct {
	db    kvdb.Backend
	clock clock.Clock
}

// New wraps an already-open kvdb backend.
func New(db kvdb.Backend, clk clock.Clock) *Store {
	return &Store{db: db, clock: clk}
}

// Put atomically (re)writes the record for id, overwriting any prior value
// in full — there is no partial-field update, matching the channel
// container's own all-or-nothing state transitions.
func (s *Store) Put(id chanid.ChannelId, setup *chansetup.ChannelSetup, state *enforcement.EnforcementState) error {
	data, err := encodeRecord(setup, state)
	if err != nil {
		return policy.Internalf("store_put", err, "encode record for %s", id)
	}

	err = kvdb.Update(s.db, func(tx kvdb.RwTx) error {
		bucket, err := tx.CreateTopLevelBucket(channelBucketKey)
		if err != nil {
			return err
		}
		return bucket.Put(id[:], data)
	}, func() {})
	if err != nil {
		return policy.Internalf("store_put", err, "write record for %s", id)
	}
	log.Debugf("persisted record for channel %s", id)
	return nil
}

// Get loads the record for id, returning an error if none exists.
func (s *Store) Get(id chanid.ChannelId) (*chansetup.ChannelSetup, *enforcement.EnforcementState, error) {
	var data []byte

	err := kvdb.View(s.db, func(tx kvdb.RTx) error {
		bucket := tx.ReadBucket(channelBucketKey)
		if bucket == nil {
			return errNoSuchChannel(id)
		}
		raw := bucket.Get(id[:])
		if raw == nil {
			return errNoSuchChannel(id)
		}
		data = make([]byte, len(raw))
		copy(data, raw)
		return nil
	}, func() {})
	if err != nil {
		return nil, nil, err
	}

	setup, state, err := decodeRecord(data)
	if err != nil {
		return nil, nil, policy.Internalf("store_get", err, "decode record for %s", id)
	}
	return setup, state, nil
}

// Delete removes the record for id, e.g. once a channel has closed and its
// closing transaction has reached the configured confirmation depth.
func (s *Store) Delete(id chanid.ChannelId) error {
	err := kvdb.Update(s.db, func(tx kvdb.RwTx) error {
		bucket, err := tx.CreateTopLevelBucket(channelBucketKey)
		if err != nil {
			return err
		}
		return bucket.Delete(id[:])
	}, func() {})
	if err != nil {
		return policy.Internalf("store_delete", err, "delete record for %s", id)
	}
	return nil
}

// Healthy runs an empty read transaction against the backend and returns
// its error, if any. The staleness argument is not consulted.
func (s *Store) Healthy(staleness time.Duration) error {
	return kvdb.View(s.db, func(tx kvdb.RTx) error {
		return nil
	}, func() {})
}

type errNoSuchChannel chanid.ChannelId

func (e errNoSuchChannel) Error() string {
	return "no stored record for channel " + chanid.ChannelId(e).String()
}

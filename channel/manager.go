// Package channel implements the Channel Container (C7): the bundle of
// setup, enforcement state, signing keys and the policy validator behind a
// single per-channel lock, and the top-level Manager that looks channels up
// by id.
package channel

import (
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/remotesigner/chanid"
	"github.com/lightningnetwork/remotesigner/chansetup"
	"github.com/lightningnetwork/remotesigner/enforcement"
	"github.com/lightningnetwork/remotesigner/policy"
	"github.com/lightningnetwork/remotesigner/validator"
)

// NotFoundError is returned by Manager.WithChannel when id names no open
// channel, or one that has already been closed.
type NotFoundError struct {
	ID chanid.ChannelId
}

func (e *NotFoundError) Error() string {
	return "channel not found: " + e.ID.String()
}

// Channel bundles everything the validator needs to check a signing request
// against a single channel, guarded by its own lock so that concurrent
// requests against different channels never contend. It holds a reference
// to its own id rather than a pointer back into the Manager (§9 "Cyclic
// ownership"), matching the original implementation's Node/Channel split
// where a channel never holds a strong reference to its owning node.
type Channel struct {
	mu sync.Mutex

	ID     chanid.ChannelId
	Setup  *chansetup.ChannelSetup
	State  *enforcement.EnforcementState
	Policy validator.Validator
	Signer Signer

	closed      bool
	lastTouched int64
}

// withLock runs fn with the channel's lock held, failing fast if the
// channel has already been closed.
func (c *Channel) withLock(fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return &NotFoundError{ID: c.ID}
	}
	return fn()
}

// Manager owns the set of open channels, keyed by ChannelId. Grounded on the
// teacher's htlcswitch.Switch link table (htlcswitch/switch.go): an
// RWMutex-guarded map from channel id to channel object, looked up far more
// often than it is mutated.
type Manager struct {
	mu        sync.RWMutex
	channels  map[chanid.ChannelId]*Channel
	outpoints map[wire.OutPoint]chanid.ChannelId
	clock     clock.Clock
}

// NewManager creates an empty channel manager. clk is used to timestamp
// channel activity for store/audit bookkeeping; pass clock.NewDefaultClock()
// in production.
func NewManager(clk clock.Clock) *Manager {
	return &Manager{
		channels:  make(map[chanid.ChannelId]*Channel),
		outpoints: make(map[wire.OutPoint]chanid.ChannelId),
		clock:     clk,
	}
}

// Open registers a new channel under id, failing if id is already in use or
// if setup's funding outpoint is already claimed by another tracked
// channel, open or closed (no funded channel's output may be
// double-counted).
func (m *Manager) Open(
	id chanid.ChannelId, setup *chansetup.ChannelSetup,
	pol validator.Validator, initialHolderValueSat uint64) error {

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.channels[id]; exists {
		return policy.Internalf("open_channel", nil, "channel %s already open", id)
	}
	if setup.FundingOutpoint != (wire.OutPoint{Hash: chainhash.Hash{}}) {
		if owner, exists := m.outpoints[setup.FundingOutpoint]; exists {
			return policy.Internalf("open_channel", nil,
				"funding outpoint %s already claimed by channel %s",
				setup.FundingOutpoint, owner)
		}
		m.outpoints[setup.FundingOutpoint] = id
	}
	m.channels[id] = &Channel{
		ID:     id,
		Setup:  setup,
		State:  enforcement.New(initialHolderValueSat),
		Policy: pol,
	}
	log.Infof("opened channel %s", id)
	return nil
}

// Close marks id as closed. A closed channel remains in the index, and keeps
// its funding outpoint claim, so that a stray retry of its last message gets
// NotFoundError rather than silently recreating state; Manager has no
// operation that removes it.
func (m *Manager) Close(id chanid.ChannelId) error {
	m.mu.RLock()
	ch, ok := m.channels[id]
	m.mu.RUnlock()
	if !ok {
		return &NotFoundError{ID: id}
	}
	err := ch.withLock(func() error {
		ch.closed = true
		return nil
	})
	if err == nil {
		log.Infof("closed channel %s", id)
	}
	return err
}

// Count returns the number of channels currently tracked, open or closed.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.channels)
}

// WithChannel runs fn with id's channel locked for exclusive access,
// touching lastTouched on successful return. fn sees a live *Channel: it may
// read Setup/Policy freely and must go through State's own methods (never
// replace State wholesale) to keep §4's side-effect-free-on-failure
// guarantee intact.
func (m *Manager) WithChannel(id chanid.ChannelId, fn func(*Channel) error) error {
	m.mu.RLock()
	ch, ok := m.channels[id]
	m.mu.RUnlock()
	if !ok {
		return &NotFoundError{ID: id}
	}
	return ch.withLock(func() error {
		if err := fn(ch); err != nil {
			return err
		}
		ch.lastTouched = m.clock.Now().Unix()
		return nil
	})
}

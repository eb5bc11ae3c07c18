// Package memstore is an in-memory implementation of every repository
// interface, for service tests. Conditional updates follow the same guards
// as the SQL versions, under one mutex. Transactions are not modelled: a
// failed operation keeps the writes it made before failing.
package memstore

import (
	"errors"
	"sync"
	"time"

	disputedb "github.com/Black-And-White-Club/tourney-settlement/app/modules/dispute/infrastructure/repositories"
	ledgerdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/ledger/infrastructure/repositories"
	registrationdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/registration/infrastructure/repositories"
	settlementdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/settlement/infrastructure/repositories"
	tournamentdb "github.com/Black-And-White-Club/tourney-settlement/app/modules/tournament/infrastructure/repositories"
	"github.com/google/uuid"
)

// Store holds every table.
type Store struct {
	mu  sync.Mutex
	seq int64

	tournaments   map[uuid.UUID]*tournamentdb.Tournament
	registrations map[uuid.UUID]*registrationRow
	entries       []ledgerdb.EscrowEntry
	refunds       map[uuid.UUID]*ledgerdb.Refund
	audit         []ledgerdb.AuditEvent
	matches       map[uuid.UUID]*settlementdb.Match
	results       map[uuid.UUID]*settlementdb.MatchResult
	payouts       map[uuid.UUID]*payoutRow
	disputes      map[uuid.UUID]*disputedb.Dispute
}

type registrationRow struct {
	reg registrationdb.Registration
	seq int64
}

type payoutRow struct {
	payout settlementdb.Payout
	seq    int64
}

func New() *Store {
	return &Store{
		tournaments:   make(map[uuid.UUID]*tournamentdb.Tournament),
		registrations: make(map[uuid.UUID]*registrationRow),
		refunds:       make(map[uuid.UUID]*ledgerdb.Refund),
		matches:       make(map[uuid.UUID]*settlementdb.Match),
		results:       make(map[uuid.UUID]*settlementdb.MatchResult),
		payouts:       make(map[uuid.UUID]*payoutRow),
		disputes:      make(map[uuid.UUID]*disputedb.Dispute),
	}
}

func (s *Store) Tournaments() tournamentdb.Repository     { return &tournamentRepo{s} }
func (s *Store) Registrations() registrationdb.Repository { return &registrationRepo{s} }
func (s *Store) Slots() registrationdb.SlotAllocator      { return &slotAllocator{s} }
func (s *Store) Ledger() ledgerdb.Repository              { return &ledgerRepo{s} }
func (s *Store) Settlement() settlementdb.Repository      { return &settlementRepo{s} }
func (s *Store) Disputes() disputedb.Repository           { return &disputeRepo{s} }

func (s *Store) next() int64 {
	s.seq++
	return s.seq
}

func now() time.Time { return time.Now().UTC() }

func ptr[T any](v T) *T { return &v }

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

func contains[T comparable](set []T, v T) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

var errDuplicateSlot = errors.New("duplicate key value violates unique constraint \"registrations_tournament_slot_key\"")

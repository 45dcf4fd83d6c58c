// Package match pairs searching sessions first-come-first-served. Only
// users that asked for a match are candidates; being registered is not
// enough. There is no ranking or preference matching: the first waiting
// candidate in registration order wins.
package match

import (
	"errors"
	"sync"

	"github.com/pairline/pairline/internal/protocol"
	"github.com/pairline/pairline/internal/registry"
)

var (
	ErrNotRegistered = errors.New("session is not registered")
	ErrAlreadyPaired = errors.New("session is already paired")
)

// Result is the outcome of a findMatch request. Matched is false when no
// candidate was waiting; the requester is then flagged as searching so a
// later request from someone else can claim it.
type Result struct {
	Matched     bool
	PeerID      string
	PeerProfile protocol.Profile
}

// Service finds counterparts for match requests. FindMatch's candidate
// scan and pairing flip form one critical section, so two concurrent
// requests can never claim the same candidate or observe a half-paired
// state.
type Service struct {
	mu    sync.Mutex
	users *registry.Users
}

// NewService creates a matching service over the shared user registry.
func NewService(users *registry.Users) *Service {
	return &Service{users: users}
}

// FindMatch pairs the requester with the first waiting candidate, or
// flags the requester as searching when none is. Unregistered or
// already-paired requesters are rejected; rejection is reported to the
// requester only and never retried by the server.
func (s *Service) FindMatch(requesterID string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users.Profile(requesterID); !ok {
		return Result{}, ErrNotRegistered
	}
	if s.users.IsPaired(requesterID) {
		return Result{}, ErrAlreadyPaired
	}

	for {
		peerID, peerProfile, ok := s.users.FirstSearching(requesterID)
		if !ok {
			s.users.SetSearching(requesterID, true)
			return Result{}, nil
		}
		if err := s.users.MarkPaired(requesterID, peerID); err != nil {
			if errors.Is(err, registry.ErrUnknownUser) || errors.Is(err, registry.ErrAlreadyPaired) {
				// The candidate vanished or got claimed between scan and
				// flip. Rescan.
				if s.users.IsPaired(requesterID) {
					return Result{}, ErrAlreadyPaired
				}
				continue
			}
			return Result{}, err
		}
		return Result{Matched: true, PeerID: peerID, PeerProfile: peerProfile}, nil
	}
}

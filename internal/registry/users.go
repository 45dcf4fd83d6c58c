package registry

import (
	"errors"
	"sync"

	"github.com/pairline/pairline/internal/protocol"
)

var (
	ErrUnknownUser   = errors.New("unknown user")
	ErrAlreadyPaired = errors.New("user already paired")
	ErrSelfPair      = errors.New("cannot pair a session with itself")
)

type user struct {
	profile   protocol.Profile
	paired    bool
	peerID    string
	searching bool
}

// Users maps sessions to their profiles, pairing state and searching
// flag. Pairing is symmetric: a paired user always references a peer
// that references it back. Only users that asked for a match are
// candidates; candidate scans walk them in registration order.
type Users struct {
	mu    sync.RWMutex
	users map[string]*user
	order []string
}

// NewUsers creates an empty user registry.
func NewUsers() *Users {
	return &Users{users: make(map[string]*user)}
}

// UpsertProfile stores or overwrites the profile for a session. A new
// user starts unpaired; re-registration keeps existing pairing state.
// Reports whether the user was newly created.
func (u *Users) UpsertProfile(id string, p protocol.Profile) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if existing, ok := u.users[id]; ok {
		existing.profile = p
		return false
	}
	u.users[id] = &user{profile: p}
	u.order = append(u.order, id)
	return true
}

// Profile returns the stored profile for a session.
func (u *Users) Profile(id string) (protocol.Profile, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	usr, ok := u.users[id]
	if !ok {
		return protocol.Profile{}, false
	}
	return usr.profile, true
}

// IsPaired reports whether the session is currently paired.
func (u *Users) IsPaired(id string) bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	usr, ok := u.users[id]
	return ok && usr.paired
}

// Peer returns the session's current peer id, if paired.
func (u *Users) Peer(id string) (string, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	usr, ok := u.users[id]
	if !ok || !usr.paired {
		return "", false
	}
	return usr.peerID, true
}

// SetSearching flips the waiting-for-a-match flag. Reports whether the
// user exists. Registered users that never asked for a match are not
// candidates.
func (u *Users) SetSearching(id string, on bool) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	usr, ok := u.users[id]
	if !ok {
		return false
	}
	usr.searching = on
	return true
}

// IsSearching reports whether the session is waiting for a match.
func (u *Users) IsSearching(id string) bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	usr, ok := u.users[id]
	return ok && usr.searching
}

// FirstSearching returns the first unpaired user waiting for a match
// other than exclude, in registration order.
func (u *Users) FirstSearching(exclude string) (string, protocol.Profile, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	for _, id := range u.order {
		if id == exclude {
			continue
		}
		usr, ok := u.users[id]
		if ok && usr.searching && !usr.paired {
			return id, usr.profile, true
		}
	}
	return "", protocol.Profile{}, false
}

// MarkPaired links two sessions symmetrically. Both must exist and be
// unpaired; the flip of both flags is atomic so no caller ever observes
// a half-paired state.
func (u *Users) MarkPaired(a, b string) error {
	if a == b {
		return ErrSelfPair
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	ua, ok := u.users[a]
	if !ok {
		return ErrUnknownUser
	}
	ub, ok := u.users[b]
	if !ok {
		return ErrUnknownUser
	}
	if ua.paired || ub.paired {
		return ErrAlreadyPaired
	}
	ua.paired, ua.peerID, ua.searching = true, b, false
	ub.paired, ub.peerID, ub.searching = true, a, false
	return nil
}

// Unpair clears the pairing on both sides. Returns the former peer id.
// Neither side goes back to searching; a new match takes a new request.
func (u *Users) Unpair(id string) (string, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.unpairLocked(id)
}

func (u *Users) unpairLocked(id string) (string, bool) {
	usr, ok := u.users[id]
	if !ok || !usr.paired {
		return "", false
	}
	peerID := usr.peerID
	usr.paired, usr.peerID, usr.searching = false, "", false
	if peer, ok := u.users[peerID]; ok {
		peer.paired, peer.peerID, peer.searching = false, "", false
	}
	return peerID, true
}

// Remove deletes the user. If it was paired, the peer's flag is cleared
// and its id returned so the caller can notify it.
func (u *Users) Remove(id string) (string, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	peerID, wasPaired := u.unpairLocked(id)
	if _, ok := u.users[id]; ok {
		delete(u.users, id)
		for i, oid := range u.order {
			if oid == id {
				u.order = append(u.order[:i], u.order[i+1:]...)
				break
			}
		}
	}
	return peerID, wasPaired
}

// Count returns the number of registered users.
func (u *Users) Count() int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return len(u.users)
}

package match

import (
	"errors"
	"sync"
	"testing"

	"github.com/pairline/pairline/internal/protocol"
	"github.com/pairline/pairline/internal/registry"
)

func setup(ids ...string) (*registry.Users, *Service) {
	users := registry.NewUsers()
	for _, id := range ids {
		users.UpsertProfile(id, protocol.Profile{FullName: "user " + id, Age: "25", Gender: "other"})
	}
	return users, NewService(users)
}

func TestFindMatchUnregistered(t *testing.T) {
	_, svc := setup("a")

	if _, err := svc.FindMatch("ghost"); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}
}

func TestFindMatchWaitsWhenAlone(t *testing.T) {
	users, svc := setup("a")

	res, err := svc.FindMatch("a")
	if err != nil {
		t.Fatalf("findMatch failed: %v", err)
	}
	if res.Matched {
		t.Fatalf("expected waiting result, got match with %s", res.PeerID)
	}
	if !users.IsSearching("a") {
		t.Fatalf("waiting requester should be flagged as searching")
	}
}

func TestFindMatchIgnoresIdleUsers(t *testing.T) {
	users, svc := setup("a", "b")

	// b is registered but never asked for a match, so a must wait.
	res, err := svc.FindMatch("a")
	if err != nil {
		t.Fatalf("findMatch failed: %v", err)
	}
	if res.Matched {
		t.Fatalf("idle user was claimed: %+v", res)
	}
	if users.IsPaired("b") {
		t.Fatalf("idle user b must not be paired")
	}
}

func TestFindMatchPairsWithWaitingRequester(t *testing.T) {
	users, svc := setup("a", "b", "c")

	// a searches first and waits.
	if res, err := svc.FindMatch("a"); err != nil || res.Matched {
		t.Fatalf("expected waiting result, got %+v %v", res, err)
	}

	// b's request claims the waiting a; c never searched and is skipped.
	res, err := svc.FindMatch("b")
	if err != nil {
		t.Fatalf("findMatch failed: %v", err)
	}
	if !res.Matched || res.PeerID != "a" {
		t.Fatalf("expected match with a, got %+v", res)
	}
	if res.PeerProfile.FullName != "user a" {
		t.Fatalf("wrong peer profile: %+v", res.PeerProfile)
	}

	// Symmetry after pairing.
	peerOfA, _ := users.Peer("a")
	peerOfB, _ := users.Peer("b")
	if peerOfA != "b" || peerOfB != "a" {
		t.Fatalf("pairing not symmetric: %s %s", peerOfA, peerOfB)
	}
	if users.IsPaired("c") {
		t.Fatalf("idle user c must not be claimed")
	}

	// A paired requester is rejected, never re-matched.
	if _, err := svc.FindMatch("a"); !errors.Is(err, ErrAlreadyPaired) {
		t.Fatalf("expected ErrAlreadyPaired, got %v", err)
	}
}

func TestFindMatchNeverSelf(t *testing.T) {
	_, svc := setup("solo")

	// Repeated requests must not pair the searcher with itself.
	for i := 0; i < 2; i++ {
		res, err := svc.FindMatch("solo")
		if err != nil {
			t.Fatalf("findMatch failed: %v", err)
		}
		if res.Matched {
			t.Fatalf("session matched with itself: %+v", res)
		}
	}
}

func TestFindMatchAfterPeerDisconnect(t *testing.T) {
	users, svc := setup("a", "b", "c")

	if res, err := svc.FindMatch("a"); err != nil || res.Matched {
		t.Fatalf("expected a to wait, got %+v %v", res, err)
	}
	if res, err := svc.FindMatch("b"); err != nil || !res.Matched {
		t.Fatalf("initial pairing failed: %+v %v", res, err)
	}

	// a disconnects; b must ask again before it can be matched.
	if peerID, wasPaired := users.Remove("a"); !wasPaired || peerID != "b" {
		t.Fatalf("removal did not report peer: %q %v", peerID, wasPaired)
	}

	if res, err := svc.FindMatch("b"); err != nil || res.Matched {
		t.Fatalf("expected b to wait after peer loss, got %+v %v", res, err)
	}

	res, err := svc.FindMatch("c")
	if err != nil {
		t.Fatalf("re-match failed: %v", err)
	}
	if !res.Matched || res.PeerID != "b" {
		t.Fatalf("expected re-match with b, got %+v", res)
	}
}

func TestConcurrentFindMatchNoDoubleClaim(t *testing.T) {
	searchers := []string{"a", "b", "c", "d"}
	users, svc := setup("a", "b", "c", "d", "e")

	var wg sync.WaitGroup
	results := make([]Result, len(searchers))
	errs := make([]error, len(searchers))
	for i, id := range searchers {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			results[i], errs[i] = svc.FindMatch(id)
		}(i, id)
	}
	wg.Wait()

	claimed := make(map[string]int)
	for i := range results {
		if errs[i] != nil {
			t.Fatalf("findMatch %s failed: %v", searchers[i], errs[i])
		}
		if results[i].Matched {
			claimed[results[i].PeerID]++
		}
	}
	for id, n := range claimed {
		if n > 1 {
			t.Fatalf("session %s claimed %d times", id, n)
		}
	}

	// Four searchers pair off two at a time, whatever the interleaving,
	// and pairing stays symmetric. The idle bystander is never touched.
	for _, id := range searchers {
		peer, ok := users.Peer(id)
		if !ok {
			t.Fatalf("%s should be paired", id)
		}
		back, _ := users.Peer(peer)
		if back != id {
			t.Fatalf("asymmetric pairing: peer(%s)=%s but peer(%s)=%s", id, peer, peer, back)
		}
	}
	if users.IsPaired("e") || users.IsSearching("e") {
		t.Fatalf("idle user e must not be touched")
	}
}

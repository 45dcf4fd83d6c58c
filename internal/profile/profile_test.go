package profile

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/pairline/pairline/internal/protocol"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		profile protocol.Profile
		wantErr bool
	}{
		{"valid", protocol.Profile{FullName: "Ada Lovelace", Age: "28", Gender: "female"}, false},
		{"empty name", protocol.Profile{Age: "28", Gender: "female"}, true},
		{"non-numeric age", protocol.Profile{FullName: "Ada", Age: "old", Gender: "female"}, true},
		{"too young", protocol.Profile{FullName: "Ada", Age: "7", Gender: "female"}, true},
		{"empty gender", protocol.Profile{FullName: "Ada", Age: "28"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.profile)
			if tc.wantErr && err == nil {
				t.Fatalf("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestStoreRoundTrip(t *testing.T) {
	store := NewStoreAt(filepath.Join(t.TempDir(), "nested", "profile.json"))

	if _, err := store.Load(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound before save, got %v", err)
	}

	saved := protocol.Profile{FullName: "Ada Lovelace", Age: "28", Gender: "female"}
	if err := store.Save(saved); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded != saved {
		t.Fatalf("round trip mismatch: %+v != %+v", loaded, saved)
	}
}

func TestStoreRejectsInvalidProfile(t *testing.T) {
	store := NewStoreAt(filepath.Join(t.TempDir(), "profile.json"))
	if err := store.Save(protocol.Profile{FullName: "", Age: "28", Gender: "x"}); err == nil {
		t.Fatalf("expected invalid profile to be rejected")
	}
}

package registry

import (
	"errors"
	"testing"
)

func TestRegisterAndLookup(t *testing.T) {
	r := New()
	if err := r.Register(300, "Bob", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	info, ok := r.Lookup(300)
	if !ok {
		t.Fatal("expected id 300 to be registered")
	}
	if info.Name != "Bob" || info.Team != 1 || info.ID != 300 {
		t.Errorf("unexpected info: %+v", info)
	}

	if _, ok := r.Lookup(301); ok {
		t.Error("expected id 301 to be unknown")
	}
}

func TestRegister_Immutable(t *testing.T) {
	r := New()
	_ = r.Register(7, "Ann", 0)

	if err := r.Register(7, "Ann", 0); err != nil {
		t.Errorf("identical re-register should succeed, got %v", err)
	}

	err := r.Register(7, "Eve", 1)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	info, _ := r.Lookup(7)
	if info.Name != "Ann" {
		t.Errorf("entry was overwritten: %+v", info)
	}
}

func TestFromEntries(t *testing.T) {
	r, err := FromEntries([]EntityInfo{
		{ID: 1, Name: "A", Team: 0},
		{ID: 2, Name: "B", Team: 1},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", r.Len())
	}

	_, err = FromEntries([]EntityInfo{
		{ID: 1, Name: "A", Team: 0},
		{ID: 1, Name: "B", Team: 0},
	})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict for duplicate roster ids, got %v", err)
	}
}

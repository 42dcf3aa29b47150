package store

import "testing"

func TestSetGet(t *testing.T) {
	s := New()
	s.Set("foo", []byte("bar"), 0)

	v, ok := s.Get("foo", 1000)
	if !ok {
		t.Fatal("expected foo to be present")
	}
	if string(v) != "bar" {
		t.Fatalf("value = %q, want %q", v, "bar")
	}
}

func TestGetMissing(t *testing.T) {
	s := New()
	if _, ok := s.Get("nope", 1000); ok {
		t.Fatal("expected nope to be absent")
	}
}

func TestExpiry(t *testing.T) {
	s := New()
	s.Set("k", []byte("v"), 1000)

	if _, ok := s.Get("k", 999); !ok {
		t.Fatal("expected k to be present before its deadline")
	}
	if _, ok := s.Get("k", 1000); ok {
		t.Fatal("expected k to be expired at its deadline")
	}
	if _, ok := s.Get("k", 2000); ok {
		t.Fatal("expected k to be expired after its deadline")
	}
}

func TestSetOverwritesExpiry(t *testing.T) {
	s := New()
	s.Set("k", []byte("v1"), 1000)
	s.Set("k", []byte("v2"), 0)

	v, ok := s.Get("k", 5000)
	if !ok {
		t.Fatal("expected k to survive its old deadline after being reset")
	}
	if string(v) != "v2" {
		t.Fatalf("value = %q, want %q", v, "v2")
	}
}

func TestKeysFiltersExpired(t *testing.T) {
	s := New()
	s.Set("live", []byte("1"), 0)
	s.Set("dead", []byte("2"), 100)

	keys := s.Keys("*", 200)
	if len(keys) != 1 || keys[0] != "live" {
		t.Fatalf("Keys = %v, want [live]", keys)
	}
}

package opaquedemo

import (
	"strings"
	"testing"

	"github.com/asteria-lang/asteria/internal/value"
)

func openMemStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutAndRecordInspect(t *testing.T) {
	s := openMemStore(t)
	if err := s.Put("greeting", value.Str("hello")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	rec := s.Record("greeting")
	if rec.TypeName() != "opaquedemo.Record" {
		t.Fatalf("TypeName = %q", rec.TypeName())
	}
	if got := rec.Inspect(); !strings.Contains(got, "hello") {
		t.Fatalf("Inspect() = %q, want it to contain the stored value", got)
	}
}

func TestPutOverwritesExistingCell(t *testing.T) {
	s := openMemStore(t)
	if err := s.Put("counter", value.Int(1)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put("counter", value.Int(2)); err != nil {
		t.Fatalf("Put (overwrite): %v", err)
	}
	got := s.Record("counter").Inspect()
	if !strings.Contains(got, "2") || strings.Contains(got, ": 1)") {
		t.Fatalf("Inspect() = %q, want the overwritten value", got)
	}
}

func TestRecordOfAbsentKey(t *testing.T) {
	s := openMemStore(t)
	got := s.Record("missing").Inspect()
	if !strings.Contains(got, "absent") {
		t.Fatalf("Inspect() = %q, want an absent marker", got)
	}
}

func TestPutRejectsNonScalar(t *testing.T) {
	s := openMemStore(t)
	arr := value.Arr(nil)
	if err := s.Put("bad", arr); err == nil {
		t.Fatal("expected an error persisting an array cell")
	}
}

func TestEnumerateChildrenIsEmpty(t *testing.T) {
	s := openMemStore(t)
	s.Put("x", value.Nil())
	rec := s.Record("x")
	called := false
	rec.EnumerateChildren(func(v any) bool { called = true; return true })
	if called {
		t.Fatal("EnumerateChildren should never call fn")
	}
}

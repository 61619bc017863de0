package idgen

import (
	"strings"
	"testing"
)

func TestNanoID_Length(t *testing.T) {
	for _, length := range []int{8, 12, 16, 24} {
		gen := NanoID(length)
		id := gen()
		if len(id) != length {
			t.Fatalf("NanoID(%d): got length %d", length, len(id))
		}
	}
}

func TestNanoID_Alphabet(t *testing.T) {
	gen := NanoID(100)
	id := gen()
	for _, c := range id {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'z')) {
			t.Fatalf("NanoID: unexpected character %q in %q", c, id)
		}
	}
}

func TestNanoID_Uniqueness(t *testing.T) {
	gen := NanoID(12)
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id := gen()
		if _, ok := seen[id]; ok {
			t.Fatalf("NanoID: duplicate at iteration %d: %q", i, id)
		}
		seen[id] = struct{}{}
	}
}

func TestUUIDv7_Format(t *testing.T) {
	id := UUIDv7()()
	if len(id) != 36 || len(strings.Split(id, "-")) != 5 {
		t.Fatalf("UUIDv7: bad format %q", id)
	}
	if v := Version(id); v != 7 {
		t.Fatalf("UUIDv7: version %d", v)
	}
}

func TestUUIDv7_Sortable(t *testing.T) {
	gen := UUIDv7()
	prev := gen()
	for i := 0; i < 100; i++ {
		id := gen()
		if id <= prev {
			t.Fatalf("UUIDv7: %q not after %q", id, prev)
		}
		prev = id
	}
}

func TestPrefixed(t *testing.T) {
	id := Prefixed("req_", NanoID(8))()
	if !strings.HasPrefix(id, "req_") || len(id) != 12 {
		t.Fatalf("Prefixed: got %q", id)
	}
}

func TestRun(t *testing.T) {
	id := Run()
	if !strings.HasPrefix(id, "run_") {
		t.Fatalf("Run: got %q", id)
	}
	if v := Version(id); v != 7 {
		t.Fatalf("Run: version %d in %q", v, id)
	}
}

func TestRequest(t *testing.T) {
	id := Request()
	if !strings.HasPrefix(id, "req_") || len(id) != 16 {
		t.Fatalf("Request: got %q", id)
	}
	if Version(id) != 0 {
		t.Fatalf("Request: NanoID must not parse as UUID: %q", id)
	}
}

func TestDefault_IsUUIDv7(t *testing.T) {
	if v := Version(New()); v != 7 {
		t.Fatalf("New: version %d", v)
	}
}

package sockaddr

import (
	"context"
	"testing"
	"time"
)

func TestParseNumericRoundTrip(t *testing.T) {
	cases := []string{
		"127.0.0.1:8080",
		"[::1]:443",
		"0.0.0.0:0",
	}
	for _, s := range cases {
		a, err := ParseNumeric(s)
		if err != nil {
			t.Fatalf("parse %q: %v", s, err)
		}
		got := a.ToString(true)
		b, err := ParseNumeric(got)
		if err != nil {
			t.Fatalf("re-parse %q: %v", got, err)
		}
		if !a.Equal(b) {
			t.Fatalf("round trip mismatch: %q -> %q -> not equal", s, got)
		}
	}
}

func TestParseNumericInvalid(t *testing.T) {
	cases := []string{"not-an-address", "256.0.0.1:80", "127.0.0.1"}
	for _, s := range cases {
		if _, err := ParseNumeric(s); err == nil {
			t.Fatalf("expected error parsing %q", s)
		}
	}
}

func TestCloneIndependence(t *testing.T) {
	a, err := ParseNumeric("10.0.0.1:9000")
	if err != nil {
		t.Fatal(err)
	}
	clone := a.Clone()
	clone = clone.SetPort(1234)
	if a.Port() == clone.Port() {
		t.Fatal("mutating clone affected original")
	}
	if !a.Equal(a.Clone()) {
		t.Fatal("clone not equal to original before mutation")
	}
}

func TestEqualConsidersFamilyAndPort(t *testing.T) {
	a, _ := ParseNumeric("127.0.0.1:1000")
	b, _ := ParseNumeric("127.0.0.1:1001")
	if a.Equal(b) {
		t.Fatal("different ports should not be equal")
	}
	c, _ := ParseNumeric("[::1]:1000")
	if a.Equal(c) {
		t.Fatal("different families should not be equal")
	}
}

func TestLocalInterfacesReturnsSomething(t *testing.T) {
	addrs, err := LocalInterfaces()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// A loopback interface is virtually always present in CI and dev sandboxes.
	if len(addrs) == 0 {
		t.Skip("no interfaces reported in this sandbox")
	}
}

func TestResolveLoopback(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	addrs, err := Resolve(ctx, "localhost", "80")
	if err != nil {
		t.Fatalf("resolve localhost: %v", err)
	}
	if len(addrs) == 0 {
		t.Fatal("expected at least one address for localhost")
	}
	for _, a := range addrs {
		if a.Port() != 80 {
			t.Fatalf("expected port 80, got %d", a.Port())
		}
	}
}

func TestResolveFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := Resolve(ctx, "this-host-does-not-exist.invalid", "80"); err == nil {
		t.Fatal("expected resolve failure for an invalid TLD")
	}
}

package proxypool

import (
	"errors"
	"testing"

	"github.com/cobaltgrove/hakodl/internal/ferr"
)

func mustPool(t *testing.T, raw []string) *Pool {
	t.Helper()
	p, err := New(raw)
	if err != nil {
		t.Fatalf("New(%v) error: %v", raw, err)
	}
	return p
}

func TestNewEmptyFails(t *testing.T) {
	_, err := New(nil)
	var fe *ferr.Error
	if !errors.As(err, &fe) || fe.Kind != ferr.KindEmptyPool {
		t.Fatalf("New(nil) error = %v, want KindEmptyPool", err)
	}
}

func TestNewInvalidEntryFails(t *testing.T) {
	_, err := New([]string{"http://good:8080", "not-a-proxy"})
	if err == nil {
		t.Fatal("New with invalid entry: want error, got nil")
	}
}

func TestNextDistributionIsFixedAndEven(t *testing.T) {
	raw := []string{"http://a:80", "http://b:80", "http://c:80"}
	p := mustPool(t, raw)

	const k = 4
	counts := map[string]int{}
	var sequence []string
	for i := 0; i < len(raw)*k; i++ {
		d, err := p.Next()
		if err != nil {
			t.Fatalf("Next() error: %v", err)
		}
		counts[d.Host]++
		sequence = append(sequence, d.Host)
	}
	for _, host := range []string{"a", "b", "c"} {
		if counts[host] != k {
			t.Errorf("host %s returned %d times, want %d", host, counts[host], k)
		}
	}
	wantCycle := []string{"a", "b", "c"}
	for i, host := range sequence {
		if host != wantCycle[i%3] {
			t.Fatalf("sequence[%d] = %s, want %s (fixed order)", i, host, wantCycle[i%3])
		}
	}
}

func TestAlternativeWraps(t *testing.T) {
	p := mustPool(t, []string{"http://a:80", "http://b:80", "http://c:80"})
	d, ok := p.Alternative(2)
	if !ok {
		t.Fatalf("Alternative(2) ok = false, want true")
	}
	if d.Host != "a" {
		t.Errorf("Alternative(2) = %s, want a (wraps to index 0)", d.Host)
	}
}

func TestAlternativeSingleEntryReturnsNothing(t *testing.T) {
	p := mustPool(t, []string{"http://only:80"})
	if _, ok := p.Alternative(0); ok {
		t.Fatal("Alternative(0) on single-entry pool: want ok=false")
	}
}

func TestResetRestartsRotation(t *testing.T) {
	p := mustPool(t, []string{"http://a:80", "http://b:80"})
	first, _ := p.Next()
	_, _ = p.Next()
	p.Reset()
	again, _ := p.Next()
	if again.Host != first.Host {
		t.Errorf("after Reset, Next() = %s, want %s", again.Host, first.Host)
	}
}

func TestSizeGetAtAll(t *testing.T) {
	raw := []string{"http://a:80", "http://b:80"}
	p := mustPool(t, raw)
	if p.Size() != 2 {
		t.Fatalf("Size() = %d, want 2", p.Size())
	}
	d, ok := p.GetAt(1)
	if !ok || d.Host != "b" {
		t.Fatalf("GetAt(1) = %+v, %v, want host b, true", d, ok)
	}
	if _, ok := p.GetAt(5); ok {
		t.Fatal("GetAt(5) out of range: want ok=false")
	}
	all := p.All()
	if len(all) != 2 || all[0].Host != "a" || all[1].Host != "b" {
		t.Fatalf("All() = %+v, want [a b]", all)
	}
}

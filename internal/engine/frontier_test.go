package engine

import (
	"slices"
	"testing"
)

func TestFrontierFIFO(t *testing.T) {
	f := NewFrontier()
	for _, title := range []string{"A", "B", "C"} {
		if !f.Push(title) {
			t.Fatalf("expected %q to be accepted", title)
		}
	}
	if f.Len() != 3 {
		t.Fatalf("expected 3 items, got %d", f.Len())
	}

	for _, want := range []string{"A", "B", "C"} {
		got, ok := f.Pop()
		if !ok {
			t.Fatalf("unexpected empty frontier, wanted %q", want)
		}
		if got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	}
	if f.Len() != 0 {
		t.Errorf("expected empty frontier, got %d", f.Len())
	}
}

func TestFrontierPopEmpty(t *testing.T) {
	f := NewFrontier()
	if got, ok := f.Pop(); ok {
		t.Errorf("expected nothing from empty frontier, got %q", got)
	}
}

func TestFrontierRejectsTitlesSeenBefore(t *testing.T) {
	f := NewFrontier()
	f.Push("A")
	if f.Push("A") {
		t.Error("expected duplicate push to be rejected while queued")
	}

	f.Pop()
	if f.Push("A") {
		t.Error("expected push to be rejected after the title was dequeued")
	}
	if f.Claim("A") {
		t.Error("expected A to be remembered as seen")
	}
	if f.Len() != 0 {
		t.Error("expected A to no longer be queued")
	}
}

func TestFrontierClaim(t *testing.T) {
	f := NewFrontier()
	if !f.Claim("A") {
		t.Fatal("expected first claim to succeed")
	}
	if f.Len() != 0 {
		t.Errorf("claim must not queue, got len %d", f.Len())
	}
	if f.Push("A") {
		t.Error("expected push of a claimed title to be rejected")
	}
	f.Push("B")
	if f.Claim("B") {
		t.Error("expected claim of a queued title to fail")
	}
}

func TestFrontierPeek(t *testing.T) {
	f := NewFrontier()
	for _, title := range []string{"A", "B", "C"} {
		f.Push(title)
	}

	if got := f.Peek(2); !slices.Equal(got, []string{"A", "B"}) {
		t.Errorf("expected [A B], got %v", got)
	}
	if got := f.Peek(10); !slices.Equal(got, []string{"A", "B", "C"}) {
		t.Errorf("expected [A B C], got %v", got)
	}
	if f.Len() != 3 {
		t.Errorf("peek must not remove items, got len %d", f.Len())
	}
	if got := f.Snapshot(); !slices.Equal(got, []string{"A", "B", "C"}) {
		t.Errorf("expected snapshot [A B C], got %v", got)
	}
}

func BenchmarkFrontierPushPop(b *testing.B) {
	f := NewFrontier()
	titles := make([]string, 1024)
	for i := range titles {
		titles[i] = "Article " + string(rune('A'+i%26)) + string(rune('a'+i/26%26))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f.Push(titles[i%len(titles)])
		f.Pop()
	}
}

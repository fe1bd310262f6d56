package globaltime

import (
	"testing"
	"time"
)

func TestFreezeAndRestore(t *testing.T) {
	pinned := time.Date(2026, time.March, 14, 9, 26, 53, 0, time.UTC)

	Freeze(pinned)
	defer Restore()

	if got := Now(); !got.Equal(pinned) {
		t.Fatalf("Now() while frozen = %v, want %v", got, pinned)
	}
	if got := Now(); !got.Equal(pinned) {
		t.Fatalf("Now() second read = %v, want %v", got, pinned)
	}

	Restore()
	if got := Now(); got.Equal(pinned) {
		t.Fatalf("Now() after Restore still returns the pinned instant %v", got)
	}
}

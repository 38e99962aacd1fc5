package cache

import (
	"testing"
	"time"
)

func TestEntry_IsExpired(t *testing.T) {
	storedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entry := NewEntry("value", storedAt, 5*time.Minute)

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{
			name: "just written",
			now:  storedAt,
			want: false,
		},
		{
			name: "halfway",
			now:  storedAt.Add(150 * time.Second),
			want: false,
		},
		{
			name: "exactly at ttl",
			now:  storedAt.Add(5 * time.Minute),
			want: false,
		},
		{
			name: "one millisecond past ttl",
			now:  storedAt.Add(5*time.Minute + time.Millisecond),
			want: true,
		},
		{
			name: "long expired",
			now:  storedAt.Add(6 * time.Minute),
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := entry.IsExpired(tt.now); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEntry_Remaining(t *testing.T) {
	storedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entry := NewEntry(42, storedAt, time.Hour)

	tests := []struct {
		name string
		now  time.Time
		want time.Duration
	}{
		{
			name: "full lifetime",
			now:  storedAt,
			want: time.Hour,
		},
		{
			name: "five minutes remaining",
			now:  storedAt.Add(55 * time.Minute),
			want: 5 * time.Minute,
		},
		{
			name: "already expired",
			now:  storedAt.Add(2 * time.Hour),
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := entry.Remaining(tt.now); got != tt.want {
				t.Errorf("Remaining() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewEntry_Milliseconds(t *testing.T) {
	storedAt := time.UnixMilli(1767225600123)
	entry := NewEntry([]string{"a"}, storedAt, 1500*time.Millisecond)

	if entry.StoredAt != 1767225600123 {
		t.Errorf("StoredAt = %d, want 1767225600123", entry.StoredAt)
	}
	if entry.TTLMs != 1500 {
		t.Errorf("TTLMs = %d, want 1500", entry.TTLMs)
	}
	if !entry.StoredTime().Equal(storedAt) {
		t.Errorf("StoredTime() = %v, want %v", entry.StoredTime(), storedAt)
	}
}

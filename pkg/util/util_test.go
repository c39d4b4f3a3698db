package util

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestFormatDate(t *testing.T) {
	ts := time.Date(2023, 11, 10, 7, 5, 9, 0, time.UTC)
	tests := []struct {
		tpl  string
		want string
	}{
		{"YYYY.MM.DD", "2023.11.10"},
		{"DD/MM/YY", "10/11/23"},
		{"YYYY-MM-DD hh:mm:ss", "2023-11-10 07:05:09"},
	}
	for _, tt := range tests {
		if got := FormatDate(ts, tt.tpl); got != tt.want {
			t.Errorf("FormatDate(%q) = %q, want %q", tt.tpl, got, tt.want)
		}
	}
	if got := FormatDate(time.Time{}, "YYYY"); got != "" {
		t.Errorf("FormatDate(zero) = %q, want empty", got)
	}
}

func TestParallel(t *testing.T) {
	var sum atomic.Int64
	err := Parallel(context.Background(), []int{1, 2, 3, 4, 5}, 2, func(ctx context.Context, n int) error {
		sum.Add(int64(n))
		return nil
	})
	if err != nil {
		t.Fatalf("Parallel() error = %v", err)
	}
	if sum.Load() != 15 {
		t.Errorf("sum = %d, want 15", sum.Load())
	}

	boom := errors.New("boom")
	err = Parallel(context.Background(), []int{1, 2, 3}, 3, func(ctx context.Context, n int) error {
		if n == 2 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Errorf("Parallel() error = %v, want boom", err)
	}
}

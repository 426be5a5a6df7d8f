package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fastOptions() Options {
	return Options{MaxRetries: 3, Delay: time.Millisecond}
}

func TestDo_FirstAttemptSucceeds(t *testing.T) {
	calls := 0
	got := Do(context.Background(), fastOptions(), func(ctx context.Context) ([]string, error) {
		calls++
		return []string{"a"}, nil
	})
	assert.Equal(t, []string{"a"}, got)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesOnNilAndError(t *testing.T) {
	calls := 0
	got := Do(context.Background(), fastOptions(), func(ctx context.Context) ([]int, error) {
		calls++
		switch calls {
		case 1:
			return nil, nil
		case 2:
			return nil, errors.New("server busy")
		default:
			return []int{42}, nil
		}
	})
	assert.Equal(t, []int{42}, got)
	assert.Equal(t, 3, calls)
}

func TestDo_EmptySliceIsDefinitive(t *testing.T) {
	calls := 0
	got := Do(context.Background(), fastOptions(), func(ctx context.Context) ([]int, error) {
		calls++
		return []int{}, nil
	})
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustsRetries(t *testing.T) {
	calls := 0
	got := Do(context.Background(), fastOptions(), func(ctx context.Context) ([]int, error) {
		calls++
		return nil, errors.New("always fails")
	})
	assert.Nil(t, got)
	assert.Equal(t, 3, calls)
}

func TestDo_DefaultsApplied(t *testing.T) {
	calls := 0
	got := Do(context.Background(), Options{Delay: time.Millisecond}, func(ctx context.Context) ([]int, error) {
		calls++
		return nil, nil
	})
	assert.Nil(t, got)
	assert.Equal(t, DefaultMaxRetries, calls)
}

func TestDo_StopsWaitingOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	start := time.Now()
	got := Do(ctx, Options{MaxRetries: 5, Delay: time.Hour}, func(ctx context.Context) ([]int, error) {
		calls++
		cancel()
		return nil, nil
	})
	assert.Nil(t, got)
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), time.Minute)
}

func TestDo_NoDelayAfterLastAttempt(t *testing.T) {
	calls := 0
	start := time.Now()
	got := Do(context.Background(), Options{MaxRetries: 1, Delay: time.Hour}, func(ctx context.Context) ([]int, error) {
		calls++
		return nil, nil
	})
	assert.Nil(t, got)
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), time.Minute)
}

package channel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Контракт политики: попытка N выполняется с задержкой base*N,
// после maxAttempts попыток переподключения прекращаются.
func TestNextDelay_LinearSequence(t *testing.T) {
	t.Parallel()

	base := time.Second
	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		3 * time.Second,
		4 * time.Second,
		5 * time.Second,
	}

	for attempts, expected := range want {
		delay, ok := nextDelay(attempts, 5, base)
		require.True(t, ok, "attempts=%d", attempts)
		require.Equal(t, expected, delay, "attempts=%d", attempts)
	}
}

func TestNextDelay_BudgetExhausted(t *testing.T) {
	t.Parallel()

	_, ok := nextDelay(5, 5, time.Second)
	require.False(t, ok)

	_, ok = nextDelay(6, 5, time.Second)
	require.False(t, ok)
}

func TestNextDelay_ZeroBudget(t *testing.T) {
	t.Parallel()

	_, ok := nextDelay(0, 0, time.Second)
	require.False(t, ok)
}

package channel

import "time"

// nextDelay — чистая функция политики переподключения.
//
// attempts — число уже запланированных попыток после последнего успешного
// открытия. Пока attempts < maxAttempts, попытка N выполняется с задержкой
// base*N (линейный backoff: base, 2*base, ..., maxAttempts*base); после —
// переподключения прекращаются навсегда.
func nextDelay(attempts, maxAttempts int, base time.Duration) (time.Duration, bool) {
	if attempts >= maxAttempts {
		return 0, false
	}

	return base * time.Duration(attempts+1), true
}

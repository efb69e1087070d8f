package source

import (
	"context"
	"errors"
	"time"
)

const maxBackoff = 10 * time.Second

// retryPolicy 只对 Transient 的 UpstreamError 重试，退避时间按 2 倍递增。
type retryPolicy struct {
	maxRetries     int
	initialBackoff time.Duration
	sleep          func(ctx context.Context, d time.Duration) error
	onRetry        func(attempt int, wait time.Duration, err error)
}

func newRetryPolicy(maxRetries int, initial time.Duration) retryPolicy {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if initial <= 0 {
		initial = 500 * time.Millisecond
	}
	return retryPolicy{
		maxRetries:     maxRetries,
		initialBackoff: initial,
		sleep:          sleepContext,
	}
}

func (p retryPolicy) do(ctx context.Context, fn func(ctx context.Context) error) error {
	wait := p.initialBackoff
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= p.maxRetries || !isTransient(err) || ctx.Err() != nil {
			return err
		}
		if p.onRetry != nil {
			p.onRetry(attempt+1, wait, err)
		}
		if sleepErr := p.sleep(ctx, wait); sleepErr != nil {
			return contextError(sleepErr, err)
		}
		wait *= 2
		if wait > maxBackoff {
			wait = maxBackoff
		}
	}
}

func isTransient(err error) bool {
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return upstream.Transient()
	}
	return false
}

// contextError 在退避期间 ctx 结束时，把超时归类为 UpstreamError(timeout)，
// 主动取消则原样返回 ctx 错误。
func contextError(ctxErr error, last error) error {
	if errors.Is(ctxErr, context.DeadlineExceeded) {
		upstream := &UpstreamError{Timeout: true, Err: ctxErr}
		var prev *UpstreamError
		if errors.As(last, &prev) {
			upstream.URL = prev.URL
		}
		return upstream
	}
	return ctxErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

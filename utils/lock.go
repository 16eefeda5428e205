package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/shifts_backend/config"
)

var ErrWorkerBusy = errors.New("another change for this worker is in progress")

// WorkerLock serializes check-then-write sequences for one worker across
// instances. The returned release func is always safe to call.
//
// Without Redis the lock is skipped and the caller relies on the row lock
// taken inside its transaction.
func WorkerLock(ctx context.Context, companyId string, workerId int) (func(), error) {
	logger := config.GetLogger()
	locker := config.GetRedisLock()
	if locker == nil {
		logger.WithField("worker_id", workerId).Debug("redis lock not initialized, relying on row lock")
		return func() {}, nil
	}

	lockKey := fmt.Sprintf("workerLock:%s:%d", companyId, workerId)
	ttl := config.WorkerLockTTL()
	lock, err := locker.Obtain(ctx, lockKey, ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.ExponentialBackoff(16*time.Millisecond, 256*time.Millisecond), 8),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		config.LogError(logger, "Utils", "WorkerLock", "could not obtain worker lock", lockKey, err)
		return func() {}, ErrWorkerBusy
	} else if err != nil {
		config.LogError(logger, "Utils", "WorkerLock", "error obtaining worker lock", lockKey, err)
		return func() {}, err
	}

	return func() {
		_ = lock.Release(context.WithoutCancel(ctx))
	}, nil
}

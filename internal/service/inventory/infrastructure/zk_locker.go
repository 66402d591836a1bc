package infrastructure

import (
	"context"

	"github.com/pkg/errors"

	"orderflow/internal/pkg/logger"
	"orderflow/internal/pkg/zklock"
)

// ZkKeyLocker 用 ZooKeeper 分布式锁实现 application.KeyLocker。
type ZkKeyLocker struct {
	client *zklock.Client
}

func NewZkKeyLocker(client *zklock.Client) *ZkKeyLocker {
	return &ZkKeyLocker{client: client}
}

func (z *ZkKeyLocker) WithLock(key string, fn func() error) error {
	lock, err := z.client.NewLock(key)
	if err != nil {
		return errors.Wrap(err, "create lock")
	}
	if err := lock.Lock(); err != nil {
		return errors.Wrap(err, "acquire lock")
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Ctx(context.Background()).Warn().Err(err).Str("key", key).Msg("Failed to release lock")
		}
	}()
	return fn()
}

// internal/pkg/idempotency/store.go
package idempotency

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// ErrDuplicateKey 表示业务键已经被记录过。
// 记录是 write-once 的：并发重复投递下两个处理器同时通过了
// 前置检查时，唯一约束让第二个写入者在这里失败 ——
// 这是"至多一次业务效果"的最终防线。
var ErrDuplicateKey = errors.New("idempotency: key already recorded")

// Record 是一条已处理业务键的持久记录。
// 它的存在即意味着对应的业务效果已经执行过。
type Record struct {
	Key       string
	Outcome   string
	CreatedAt time.Time
}

// Store 是幂等存储的端口。实现必须提供持久的、
// 单键读写即时一致的语义，跨进程重启依然成立。
type Store interface {
	// Seen 查询业务键是否已处理过。
	Seen(ctx context.Context, key string) (Record, bool, error)

	// Record 写入一条处理记录。键已存在时返回 ErrDuplicateKey。
	Record(ctx context.Context, key, outcome string) error
}

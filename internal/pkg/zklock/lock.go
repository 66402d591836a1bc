// internal/pkg/zklock/lock.go
package zklock

import (
	"sort"
	"strings"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/pkg/errors"
)

const (
	lockRoot    = "/orderflow/locks"
	lockTimeout = 30 * time.Second
)

// Client 封装 ZooKeeper 连接，按业务键派发分布式锁。
// 幂等检查 (读存储 -> 执行 -> 写存储) 与领域写入不是一个事务，
// 同一业务键的并发重复投递存在双重执行窗口；按键加锁把同键
// 处理串行化，唯一约束仍然是最后的防线。
type Client struct {
	conn *zk.Conn
}

func Connect(servers []string) (*Client, error) {
	conn, _, err := zk.Connect(servers, 10*time.Second)
	if err != nil {
		return nil, errors.Wrap(err, "zookeeper connect")
	}
	if err := ensurePath(conn, lockRoot); err != nil {
		conn.Close()
		return nil, err
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() {
	c.conn.Close()
}

// Lock 是某个业务键上的一把分布式锁。
type Lock struct {
	conn     *zk.Conn
	path     string
	lockNode string
}

// NewLock 为一个业务键创建锁实例。
func (c *Client) NewLock(businessKey string) (*Lock, error) {
	path := lockRoot + "/" + businessKey
	if err := ensurePath(c.conn, path); err != nil {
		return nil, err
	}
	return &Lock{conn: c.conn, path: path}, nil
}

// Lock 获取锁，拿不到则阻塞等待，最长 lockTimeout。
// 实现是经典的临时顺序节点 + 监听前驱方案。
func (l *Lock) Lock() error {
	nodePath, err := l.conn.CreateProtectedEphemeralSequential(l.path+"/lock-", []byte{}, zk.WorldACL(zk.PermAll))
	if err != nil {
		return errors.Wrap(err, "create sequential node")
	}
	l.lockNode = nodePath

	for {
		children, _, err := l.conn.Children(l.path)
		if err != nil {
			return errors.Wrap(err, "list lock children")
		}
		sort.Strings(children)

		myNode := strings.TrimPrefix(l.lockNode, l.path+"/")
		if myNode == children[0] {
			return nil
		}

		prevIndex := -1
		for i, child := range children {
			if child == myNode {
				prevIndex = i - 1
				break
			}
		}
		if prevIndex < 0 {
			return errors.New("own lock node missing from children")
		}

		exists, _, eventCh, err := l.conn.ExistsW(l.path + "/" + children[prevIndex])
		if err != nil {
			return errors.Wrap(err, "watch previous node")
		}
		if !exists {
			// 前驱在检查瞬间刚好释放，重新竞争
			continue
		}

		select {
		case event := <-eventCh:
			if event.Type == zk.EventNodeDeleted {
				continue
			}
		case <-time.After(lockTimeout):
			l.Unlock()
			return errors.New("timeout waiting for lock")
		}
	}
}

// Unlock 释放锁。
func (l *Lock) Unlock() error {
	if l.lockNode == "" {
		return errors.New("no lock to unlock")
	}
	err := l.conn.Delete(l.lockNode, -1)
	if err != nil && err != zk.ErrNoNode {
		return errors.Wrap(err, "delete lock node")
	}
	l.lockNode = ""
	return nil
}

func ensurePath(conn *zk.Conn, path string) error {
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	current := ""
	for _, part := range parts {
		current += "/" + part
		exists, _, err := conn.Exists(current)
		if err != nil {
			return errors.Wrapf(err, "check path %s", current)
		}
		if exists {
			continue
		}
		if _, err := conn.Create(current, []byte{}, 0, zk.WorldACL(zk.PermAll)); err != nil && err != zk.ErrNodeExists {
			return errors.Wrapf(err, "create path %s", current)
		}
	}
	return nil
}

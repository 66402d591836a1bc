// internal/pkg/eventbus/routing.go
package eventbus

import "strings"

// MatchRoutingKey 按 AMQP topic 语义匹配绑定模式和路由键:
//   - "*" 恰好匹配一个点分段
//   - "#" 匹配零个或多个点分段
//
// 例如 "*.OrderConfirmed" 匹配 "payments.OrderConfirmed"
// 但不匹配 "payments.sub.OrderConfirmed"；"#.OrderConfirmed" 两者都匹配。
func MatchRoutingKey(pattern, key string) bool {
	return matchSegments(strings.Split(pattern, "."), strings.Split(key, "."))
}

func matchSegments(pattern, key []string) bool {
	if len(pattern) == 0 {
		return len(key) == 0
	}
	switch pattern[0] {
	case "#":
		for i := 0; i <= len(key); i++ {
			if matchSegments(pattern[1:], key[i:]) {
				return true
			}
		}
		return false
	case "*":
		return len(key) > 0 && matchSegments(pattern[1:], key[1:])
	default:
		return len(key) > 0 && pattern[0] == key[0] && matchSegments(pattern[1:], key[1:])
	}
}

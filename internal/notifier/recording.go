package notifier

import (
	"context"
	"sync"
)

// RecordingNotifier 记录所有发送请求的实现（测试用）
type RecordingNotifier struct {
	mu       sync.Mutex
	messages []Message

	// SendHook 故障注入钩子（nil 表示总是成功）
	SendHook func(msg *Message) error
}

// NewRecordingNotifier 创建记录型发送实例
func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{}
}

// Send 记录发送请求
func (n *RecordingNotifier) Send(ctx context.Context, msg *Message) error {
	if n.SendHook != nil {
		if err := n.SendHook(msg); err != nil {
			return err
		}
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, *msg)
	return nil
}

// Messages 返回已记录的发送请求副本
func (n *RecordingNotifier) Messages() []Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Message, len(n.messages))
	copy(out, n.messages)
	return out
}

// Count 返回发送次数
func (n *RecordingNotifier) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

package notifier

import (
	"context"
)

// Attachment 邮件附件
type Attachment struct {
	Name string
	Data []byte
}

// Message 待发送的邮件
type Message struct {
	To          string
	Subject     string
	HTML        string
	Attachments []Attachment
}

// Notifier 邮件通知接口
type Notifier interface {
	// Send 发送邮件（阻塞调用）
	Send(ctx context.Context, msg *Message) error
}

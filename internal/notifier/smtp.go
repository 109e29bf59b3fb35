package notifier

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"gopkg.in/gomail.v2"

	"github.com/eitchpi/narrartive-backend/pkg/config"
	"github.com/eitchpi/narrartive-backend/pkg/errorutil"
)

// SMTPNotifier SMTP 邮件发送实现（gomail）
type SMTPNotifier struct {
	cfg    config.SMTPConfig
	dialer *gomail.Dialer
}

// NewSMTPNotifier 创建 SMTP 发送实例
func NewSMTPNotifier(cfg config.SMTPConfig) (*SMTPNotifier, error) {
	if cfg.Host == "" || cfg.From == "" {
		return nil, fmt.Errorf("smtp host and from address are required")
	}

	return &SMTPNotifier{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
	}, nil
}

// Send 发送邮件
// SMTP 层面的失败视为瞬时错误，由上层重试
func (n *SMTPNotifier) Send(ctx context.Context, msg *Message) error {
	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.From)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTML)

	for _, att := range msg.Attachments {
		data := att.Data
		m.Attach(att.Name, gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := io.Copy(w, bytes.NewReader(data))
			return err
		}))
	}

	if err := n.dialer.DialAndSend(m); err != nil {
		return errorutil.RetriableWithDetails(
			fmt.Sprintf("smtp send to %s failed", msg.To),
			err.Error(),
		)
	}

	return nil
}

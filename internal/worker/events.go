package worker

import (
	"context"
	"time"

	"github.com/eitchpi/narrartive-backend/internal/fulfill"
	"github.com/eitchpi/narrartive-backend/pkg/infra/redis"
)

// redisPublisher 把订单终态事件发布到 Redis 频道
type redisPublisher struct {
	pubsub  *redis.PubSub
	channel string
}

// Publish 实现 fulfill.EventPublisher
func (p *redisPublisher) Publish(ctx context.Context, evt fulfill.DeliveryEvent) error {
	return p.pubsub.PublishDeliveryComplete(ctx, p.channel, &redis.DeliveryNotification{
		OrderID:   evt.OrderID,
		FileName:  evt.FileName,
		Buyer:     evt.Buyer,
		Status:    evt.Status,
		Timestamp: time.Now().Unix(),
	})
}

package stream

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"countwatch/internal/models"
)

// Publisher 扫描记录外发。协调器在接受一条打卡记录后调用，
// 供下游（看板聚合、审计）消费。发布失败由调用方记录日志，不致命。
type Publisher interface {
	PublishScan(ctx context.Context, entry models.ScanLog) error
}

// NopPublisher 未启用外发时的空实现
type NopPublisher struct{}

func (NopPublisher) PublishScan(context.Context, models.ScanLog) error { return nil }

// RedisPublisher 发布到 Redis Streams（XADD）
type RedisPublisher struct {
	client *redis.Client
	stream string
}

func NewRedisPublisher(client *redis.Client, stream string) *RedisPublisher {
	return &RedisPublisher{client: client, stream: stream}
}

func (p *RedisPublisher) PublishScan(ctx context.Context, entry models.ScanLog) error {
	jsonBytes, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"data":      string(jsonBytes),
			"timestamp": time.Now().Unix(),
		},
	}).Err()
}

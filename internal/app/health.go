package app

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Pinger зависимость, которую можно проверить пингом
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthStatus состояние зависимостей сервиса
type HealthStatus struct {
	Database  bool      `json:"database"`
	Redis     *bool     `json:"redis,omitempty"` // nil, если очередь не настроена
	CheckedAt time.Time `json:"checked_at"`
}

func (h HealthStatus) OK() bool {
	return h.Database && (h.Redis == nil || *h.Redis)
}

// HealthChecker пингует базу и Redis очереди событий
type HealthChecker struct {
	db    Pinger
	redis *redis.Client
}

// NewHealthChecker redisClient может быть nil
func NewHealthChecker(db Pinger, redisClient *redis.Client) *HealthChecker {
	return &HealthChecker{db: db, redis: redisClient}
}

func (c *HealthChecker) Check(ctx context.Context) HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	status := HealthStatus{
		Database:  c.db.Ping(ctx) == nil,
		CheckedAt: time.Now().UTC(),
	}
	if c.redis != nil {
		ok := c.redis.Ping(ctx).Err() == nil
		status.Redis = &ok
	}
	return status
}

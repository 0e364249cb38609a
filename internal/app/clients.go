package app

import (
	"github.com/yungbote/mes-backend/internal/clients/redis"
	"github.com/yungbote/mes-backend/internal/pkg/logger"
)

type Clients struct {
	EventBus redis.EventBus
}

// wireClients connects optional infrastructure. Event publication is best
// effort, so an unreachable redis downgrades to no publication.
func wireClients(log *logger.Logger, cfg Config) Clients {
	log.Info("Wiring clients...")

	var bus redis.EventBus
	if cfg.RedisAddr != "" {
		b, err := redis.NewEventBus(log, redis.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Channel:  cfg.RedisChannel,
		})
		if err != nil {
			log.Warn("redis event bus unavailable; ledger events will not be published", "error", err)
		} else {
			bus = b
		}
	}
	return Clients{EventBus: bus}
}

func (c Clients) Close() {
	if c.EventBus != nil {
		_ = c.EventBus.Close()
	}
}

package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/categorylink/internal/config"
	"github.com/yungbote/categorylink/internal/platform/logger"
	"github.com/yungbote/categorylink/internal/refactor"
)

// lastEventTTL bounds how long a finished run's final event stays readable.
const lastEventTTL = 24 * time.Hour

type redisBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

func NewRedisBus(log *logger.Logger, cfg config.EventsConfig) (Bus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	ch := strings.TrimSpace(cfg.RedisChannel)
	if ch == "" {
		ch = "categorylink"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &redisBus{
		log:     log.With("service", "RedisEventBus"),
		rdb:     rdb,
		channel: ch,
	}, nil
}

func (b *redisBus) Publish(ctx context.Context, ev refactor.Event) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis event bus not initialized")
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = b.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Publish(ctx, b.channel, raw)
		pipe.Set(ctx, b.lastKey(), raw, lastEventTTL)
		return nil
	})
	return err
}

func (b *redisBus) Last(ctx context.Context) (refactor.Event, bool, error) {
	if b == nil || b.rdb == nil {
		return refactor.Event{}, false, fmt.Errorf("redis event bus not initialized")
	}
	raw, err := b.rdb.Get(ctx, b.lastKey()).Bytes()
	if errors.Is(err, goredis.Nil) {
		return refactor.Event{}, false, nil
	}
	if err != nil {
		return refactor.Event{}, false, err
	}
	var ev refactor.Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return refactor.Event{}, false, fmt.Errorf("decode last event: %w", err)
	}
	return ev, true, nil
}

func (b *redisBus) Ping(ctx context.Context) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis event bus not initialized")
	}
	return b.rdb.Ping(ctx).Err()
}

func (b *redisBus) lastKey() string { return b.channel + ":last" }

func (b *redisBus) StartForwarder(ctx context.Context, onEvent func(ev refactor.Event)) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis event bus not initialized")
	}
	if onEvent == nil {
		return fmt.Errorf("onEvent callback required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)

	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				var ev refactor.Event
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					b.log.Warn("bad redis event payload", "error", err)
					continue
				}
				onEvent(ev)
			}
		}
	}()

	return nil
}

func (b *redisBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}

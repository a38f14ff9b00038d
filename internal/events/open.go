package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options выбирает транспорт шины.
type Options struct {
	// Transport: auto, memory, redis, relay или slot.
	Transport string
	Hub       *Hub
	HubName   string
	Redis     *redis.Client
	RelayURL  string
	// SlotDir - каталог FileSlot; пустой означает слот в памяти.
	SlotDir string
	Slot    Slot
	// Local - порт Relay, который хостит этот процесс. Шина пишет и
	// слушает его вместе с выбранным транспортом.
	Local  Transport
	Logger *slog.Logger
}

// Open создает шину. В режиме auto пробует relay, затем redis, затем слот.
func Open(ctx context.Context, o Options) (*Bus, error) {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	t, err := openTransport(ctx, o)
	if err != nil {
		return nil, err
	}
	if o.Local != nil {
		t = Fanout(o.Local, t)
	}
	o.Logger.Info("app events transport selected", "transport", t.Name())
	bus, err := NewBus(t, o.Logger)
	if err != nil {
		_ = t.Close()
		return nil, err
	}
	return bus, nil
}

func openTransport(ctx context.Context, o Options) (Transport, error) {
	switch o.Transport {
	case "memory":
		hub := o.Hub
		if hub == nil {
			hub = NewHub()
		}
		name := o.HubName
		if name == "" {
			name = RedisChannel
		}
		return hub.Open(name), nil
	case "redis":
		if o.Redis == nil {
			return nil, fmt.Errorf("events: redis transport requires a client")
		}
		return NewRedisTransport(o.Redis), nil
	case "relay":
		return DialWebSocket(ctx, o.RelayURL)
	case "slot":
		return openSlot(o)
	case "", "auto":
		if o.RelayURL != "" {
			dctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			t, err := DialWebSocket(dctx, o.RelayURL)
			cancel()
			if err == nil {
				return t, nil
			}
			o.Logger.Warn("app events relay unavailable", "url", o.RelayURL, "error", err)
		}
		if o.Redis != nil {
			pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			err := o.Redis.Ping(pctx).Err()
			cancel()
			if err == nil {
				return NewRedisTransport(o.Redis), nil
			}
			o.Logger.Warn("app events redis unavailable", "error", err)
		}
		return openSlot(o)
	default:
		return nil, fmt.Errorf("events: unknown transport %q", o.Transport)
	}
}

func openSlot(o Options) (Transport, error) {
	if o.Slot != nil {
		return NewSlotTransport(o.Slot, 0), nil
	}
	if o.SlotDir == "" {
		return NewSlotTransport(NewMemorySlot(), 0), nil
	}
	fs, err := NewFileSlot(o.SlotDir, o.Logger)
	if err != nil {
		return nil, err
	}
	return NewSlotTransport(fs, 0), nil
}

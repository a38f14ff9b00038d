package events

import (
	"context"
	"errors"
	"strings"
)

// FanoutTransport отправляет каждое сообщение во все транспорты и
// слушает их все. Сообщения между транспортами не пересылаются.
type FanoutTransport struct {
	ts []Transport
}

// Fanout объединяет транспорты; nil пропускаются.
func Fanout(ts ...Transport) *FanoutTransport {
	f := &FanoutTransport{}
	for _, t := range ts {
		if t != nil {
			f.ts = append(f.ts, t)
		}
	}
	return f
}

func (f *FanoutTransport) Name() string {
	names := make([]string, 0, len(f.ts))
	for _, t := range f.ts {
		names = append(names, t.Name())
	}
	return strings.Join(names, "+")
}

// Send доходит до всех транспортов, даже если часть из них вернула ошибку.
func (f *FanoutTransport) Send(ctx context.Context, msg []byte) error {
	var errs []error
	for _, t := range f.ts {
		if err := t.Send(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *FanoutTransport) Listen(fn func([]byte)) (func(), error) {
	stops := make([]func(), 0, len(f.ts))
	stopAll := func() {
		for _, stop := range stops {
			stop()
		}
	}
	for _, t := range f.ts {
		stop, err := t.Listen(fn)
		if err != nil {
			stopAll()
			return nil, err
		}
		stops = append(stops, stop)
	}
	return stopAll, nil
}

func (f *FanoutTransport) Close() error {
	var errs []error
	for _, t := range f.ts {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

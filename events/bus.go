// Package events delivers punishment notifications to in-process subscribers.
package events

import (
	"fmt"
	"sync"

	"punish-engine/model"

	"github.com/sirupsen/logrus"
)

type PunishedHandler func(model.PlayerPunished) error

type ReversedHandler func(model.PlayerPunishmentReversed) error

// Bus calls subscribers synchronously, in registration order. Subscriber
// failures are logged and never reach the publisher.
type Bus struct {
	mu       sync.RWMutex
	punished []PunishedHandler
	reversed []ReversedHandler
	log      logrus.FieldLogger
}

func NewBus(log logrus.FieldLogger) *Bus {
	return &Bus{log: log}
}

func (b *Bus) OnPunished(h PunishedHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.punished = append(b.punished, h)
}

func (b *Bus) OnReversed(h ReversedHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reversed = append(b.reversed, h)
}

func (b *Bus) PublishPunished(e model.PlayerPunished) {
	b.mu.RLock()
	handlers := b.punished
	b.mu.RUnlock()

	for i, h := range handlers {
		b.deliver("PlayerPunished", i, e.TargetID, func() error { return h(e) })
	}
}

func (b *Bus) PublishReversed(e model.PlayerPunishmentReversed) {
	b.mu.RLock()
	handlers := b.reversed
	b.mu.RUnlock()

	for i, h := range handlers {
		b.deliver("PlayerPunishmentReversed", i, e.TargetID, func() error { return h(e) })
	}
}

func (b *Bus) deliver(event string, index int, target string, call func() error) {
	log := b.log.WithFields(logrus.Fields{"event": event, "subscriber": index, "target": target})
	defer func() {
		if r := recover(); r != nil {
			log.WithError(fmt.Errorf("panic: %v", r)).Error("Subscriber panicked")
		}
	}()
	if err := call(); err != nil {
		log.WithError(err).Warn("Subscriber failed")
	}
}

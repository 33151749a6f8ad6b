package notify

import (
	"context"

	"github.com/BearBump/StayScout/internal/models"
	"github.com/pkg/errors"
)

// Notifier delivers a batch of findings. Delivery is at-least-once: the agent
// records the outcome and retries naturally on the task's next cadence.
type Notifier interface {
	NotifyNewStays(ctx context.Context, stays []*models.Stay, criteria models.SearchCriteria) error
	NotifyPriceDrops(ctx context.Context, drops []*models.PriceDropReport) error
	SendTest(ctx context.Context) error
}

// Multi рассылает во все каналы; ошибка одного канала не мешает остальным.
type Multi struct {
	notifiers []Notifier
}

func NewMulti(ns ...Notifier) *Multi {
	return &Multi{notifiers: ns}
}

func (m *Multi) NotifyNewStays(ctx context.Context, stays []*models.Stay, criteria models.SearchCriteria) error {
	var firstErr error
	for _, n := range m.notifiers {
		if err := n.NotifyNewStays(ctx, stays, criteria); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return errors.Wrap(firstErr, "notify new stays")
}

func (m *Multi) NotifyPriceDrops(ctx context.Context, drops []*models.PriceDropReport) error {
	var firstErr error
	for _, n := range m.notifiers {
		if err := n.NotifyPriceDrops(ctx, drops); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return errors.Wrap(firstErr, "notify price drops")
}

func (m *Multi) SendTest(ctx context.Context) error {
	var firstErr error
	for _, n := range m.notifiers {
		if err := n.SendTest(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return errors.Wrap(firstErr, "send test")
}

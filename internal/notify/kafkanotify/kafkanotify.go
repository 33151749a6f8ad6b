package kafkanotify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/BearBump/StayScout/internal/broker/messages"
	"github.com/BearBump/StayScout/internal/models"
	"github.com/pkg/errors"
)

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Notifier публикует события находок в Kafka-топик deals.found.
type Notifier struct {
	producer Producer
	topic    string
}

func New(producer Producer, topic string) *Notifier {
	if topic == "" {
		topic = "deals.found"
	}
	return &Notifier{producer: producer, topic: topic}
}

func (n *Notifier) NotifyNewStays(ctx context.Context, stays []*models.Stay, _ models.SearchCriteria) error {
	if len(stays) == 0 {
		return nil
	}

	msg := messages.DealsFound{
		Kind:    messages.DealKindNewStays,
		FoundAt: time.Now().UTC(),
	}
	for _, s := range stays {
		msg.Stays = append(msg.Stays, messages.DealStay{
			StayID:   s.ID,
			Title:    s.Title,
			Price:    s.Price,
			Currency: s.Currency,
			Rating:   s.Rating,
			Location: s.Location,
			URL:      s.URL,
			Source:   s.Source,
		})
	}
	return n.publish(ctx, msg)
}

func (n *Notifier) NotifyPriceDrops(ctx context.Context, drops []*models.PriceDropReport) error {
	if len(drops) == 0 {
		return nil
	}

	msg := messages.DealsFound{
		Kind:    messages.DealKindPriceDrops,
		FoundAt: time.Now().UTC(),
	}
	for _, d := range drops {
		msg.Drops = append(msg.Drops, messages.DealDrop{
			StayID:        d.StayID,
			Title:         d.Title,
			Location:      d.Location,
			Source:        d.Source,
			CurrentPrice:  d.CurrentPrice,
			PreviousPrice: d.PreviousPrice,
			Currency:      d.Currency,
			DropPercent:   d.DropPercent,
			CurrentAt:     d.CurrentAt,
			PreviousAt:    d.PreviousAt,
		})
	}
	return n.publish(ctx, msg)
}

func (n *Notifier) SendTest(ctx context.Context) error {
	return n.publish(ctx, messages.DealsFound{
		Kind:    "TEST",
		FoundAt: time.Now().UTC(),
	})
}

func (n *Notifier) publish(ctx context.Context, msg messages.DealsFound) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "marshal deals message")
	}
	return n.producer.Publish(ctx, n.topic, []byte(msg.Kind), b)
}

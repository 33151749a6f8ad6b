package kafkanotify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/BearBump/StayScout/internal/broker/messages"
	"github.com/BearBump/StayScout/internal/models"
	"github.com/stretchr/testify/require"
)

type fakeProducer struct {
	topic string
	key   []byte
	value []byte
	calls int
	err   error
}

func (p *fakeProducer) Publish(ctx context.Context, topic string, key, value []byte) error {
	p.calls++
	p.topic, p.key, p.value = topic, key, value
	return p.err
}

func TestNotifier_NotifyNewStays(t *testing.T) {
	fp := &fakeProducer{}
	n := New(fp, "")

	stays := []*models.Stay{
		{ID: 7, Title: "Hotel Central", Price: 450, Currency: "RON", Location: "București", Source: "booking"},
	}
	require.NoError(t, n.NotifyNewStays(context.Background(), stays, models.SearchCriteria{}))
	require.Equal(t, 1, fp.calls)
	require.Equal(t, "deals.found", fp.topic)
	require.Equal(t, []byte(messages.DealKindNewStays), fp.key)

	var msg messages.DealsFound
	require.NoError(t, json.Unmarshal(fp.value, &msg))
	require.Equal(t, messages.DealKindNewStays, msg.Kind)
	require.Len(t, msg.Stays, 1)
	require.Equal(t, uint64(7), msg.Stays[0].StayID)
}

func TestNotifier_NotifyNewStays_EmptyBatchIsNoop(t *testing.T) {
	fp := &fakeProducer{}
	n := New(fp, "t")
	require.NoError(t, n.NotifyNewStays(context.Background(), nil, models.SearchCriteria{}))
	require.Zero(t, fp.calls)
}

func TestNotifier_NotifyPriceDrops(t *testing.T) {
	fp := &fakeProducer{}
	n := New(fp, "deals")

	drops := []*models.PriceDropReport{
		{
			StayID: 3, Title: "Vila Brasov", Location: "Brasov", Source: "booking",
			CurrentPrice: 80, PreviousPrice: 100, Currency: "RON", DropPercent: 20,
			CurrentAt: time.Now().UTC(), PreviousAt: time.Now().UTC().Add(-9 * 24 * time.Hour),
		},
	}
	require.NoError(t, n.NotifyPriceDrops(context.Background(), drops))
	require.Equal(t, "deals", fp.topic)

	var msg messages.DealsFound
	require.NoError(t, json.Unmarshal(fp.value, &msg))
	require.Equal(t, messages.DealKindPriceDrops, msg.Kind)
	require.Len(t, msg.Drops, 1)
	require.InDelta(t, 20.0, msg.Drops[0].DropPercent, 0.001)
}

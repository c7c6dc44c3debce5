package kafkahook_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/xraph/assetledger/event"
	kafkahook "github.com/xraph/assetledger/kafka_hook"
)

type fakeProducer struct {
	records []*kgo.Record
	err     error
	closed  bool
}

func (p *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		if p.err == nil {
			p.records = append(p.records, r)
		}
		results = append(results, kgo.ProduceResult{Record: r, Err: p.err})
	}
	return results
}

func (p *fakeProducer) Close() { p.closed = true }

func balanceEvents(t *testing.T, stream event.Stream) []*event.Event {
	t.Helper()
	added, err := event.New(stream, event.MoneyAdded{Asset: "USD", Amount: 10000})
	require.NoError(t, err)
	hit, err := event.New(stream, event.AccountLimitHit{Asset: "USD", Requested: 8000, Available: 7000})
	require.NoError(t, err)
	return []*event.Event{added, hit}
}

func TestPublishesKeyedByStream(t *testing.T) {
	p := &fakeProducer{}
	ext := kafkahook.New(p, kafkahook.WithTopic("ledger"))
	stream := event.BalanceStream("acct-1")

	require.NoError(t, ext.OnEventsAppended(context.Background(), stream, balanceEvents(t, stream)))
	require.Len(t, p.records, 2)

	rec := p.records[0]
	assert.Equal(t, "ledger", rec.Topic)
	assert.Equal(t, "balance/acct-1", string(rec.Key))
	assert.Equal(t, "event_type", rec.Headers[0].Key)
	assert.Equal(t, string(event.TypeMoneyAdded), string(rec.Headers[0].Value))

	var msg struct {
		Stream string      `json:"stream"`
		Event  event.Event `json:"event"`
	}
	require.NoError(t, json.Unmarshal(rec.Value, &msg))
	assert.Equal(t, "balance/acct-1", msg.Stream)
	assert.Equal(t, event.TypeMoneyAdded, msg.Event.Type)
}

func TestTypeFilter(t *testing.T) {
	p := &fakeProducer{}
	ext := kafkahook.New(p, kafkahook.WithTypes(event.TypeAccountLimitHit))
	stream := event.BalanceStream("acct-1")

	require.NoError(t, ext.OnEventsAppended(context.Background(), stream, balanceEvents(t, stream)))
	require.Len(t, p.records, 1)
	assert.Equal(t, kafkahook.DefaultTopic, p.records[0].Topic)
}

func TestProduceErrorIsReturned(t *testing.T) {
	p := &fakeProducer{err: errors.New("broker unavailable")}
	ext := kafkahook.New(p)
	stream := event.BalanceStream("acct-1")

	err := ext.OnEventsAppended(context.Background(), stream, balanceEvents(t, stream))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker unavailable")
}

func TestShutdownClosesProducer(t *testing.T) {
	p := &fakeProducer{}
	require.NoError(t, kafkahook.New(p).OnShutdown(context.Background()))
	assert.True(t, p.closed)
}

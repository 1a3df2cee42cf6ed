package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingConn struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (r *recordingConn) Publish(subject string, data []byte) error {
	if r.err != nil {
		return r.err
	}
	r.subjects = append(r.subjects, subject)
	r.payloads = append(r.payloads, data)
	return nil
}

func TestDispatcherFansOutInOrder(t *testing.T) {
	d := NewDispatcher()
	var calls []string

	d.Subscribe("first", func(_ context.Context, evt Event) error {
		calls = append(calls, "first:"+evt.TradeID)
		return errors.New("ignored")
	})
	d.Subscribe("second", func(_ context.Context, evt Event) error {
		calls = append(calls, "second:"+evt.TradeID)
		assert.False(t, evt.OccurredAt.IsZero())
		return nil
	})

	d.Publish(context.Background(), Event{Type: TradeOpened, TradeID: "t-1"})
	assert.Equal(t, []string{"first:t-1", "second:t-1"}, calls)
}

func TestNATSForwarder(t *testing.T) {
	conn := &recordingConn{}
	f := NewNATSForwarder(conn, "journal")
	result := 100.0

	err := f.Handle(context.Background(), Event{
		Type:         TradeClosed,
		OwnerID:      "u-1",
		AccountID:    "a-1",
		TradeID:      "t-1",
		Result:       &result,
		BalanceDelta: result,
	})
	require.NoError(t, err)
	require.Len(t, conn.subjects, 1)
	assert.Equal(t, "journal.trade.closed", conn.subjects[0])

	var decoded Event
	require.NoError(t, json.Unmarshal(conn.payloads[0], &decoded))
	assert.Equal(t, TradeClosed, decoded.Type)
	require.NotNil(t, decoded.Result)
	assert.Equal(t, 100.0, *decoded.Result)
}

func TestNATSForwarderPublishError(t *testing.T) {
	f := NewNATSForwarder(&recordingConn{err: errors.New("nats: connection closed")}, "")
	assert.Equal(t, "trade.deleted", f.Subject(TradeDeleted))
	assert.Error(t, f.Handle(context.Background(), Event{Type: TradeDeleted}))
}

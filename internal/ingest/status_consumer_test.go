package ingest

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/example/courier-booking/internal/logging"
	"github.com/example/courier-booking/internal/models"
)

type fakeSink struct {
	updates map[string]string
	err     error
}

func (f *fakeSink) UpdateStatus(orderID, status string) error {
	if f.updates == nil {
		f.updates = make(map[string]string)
	}
	f.updates[orderID] = status
	return f.err
}

type fakePusher struct {
	pushed []models.OrderStatusEvent
	err    error
}

func (f *fakePusher) Push(_ string, ev models.OrderStatusEvent) error {
	f.pushed = append(f.pushed, ev)
	return f.err
}

func newHandleOnlyConsumer(store StatusSink, push StatusPusher) *StatusConsumer {
	// reader stays nil; these tests drive handle directly.
	return &StatusConsumer{store: store, push: push, log: logging.NewNopLogger()}
}

func TestHandleUpdatesStoreAndPushes(t *testing.T) {
	sink := &fakeSink{}
	pusher := &fakePusher{}
	c := newHandleOnlyConsumer(sink, pusher)

	c.handle([]byte(`{"order_id":"ord-1","session_id":"sess-1","status":"assigned","at":"2026-08-30T12:00:00Z"}`))

	assert.Equal(t, "assigned", sink.updates["ord-1"])
	if assert.Len(t, pusher.pushed, 1) {
		assert.Equal(t, "ord-1", pusher.pushed[0].OrderID)
		assert.Equal(t, time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC), pusher.pushed[0].At)
	}
}

func TestHandleSkipsPushWithoutSession(t *testing.T) {
	sink := &fakeSink{}
	pusher := &fakePusher{}
	c := newHandleOnlyConsumer(sink, pusher)

	c.handle([]byte(`{"order_id":"ord-2","status":"delivered"}`))

	assert.Equal(t, "delivered", sink.updates["ord-2"])
	assert.Empty(t, pusher.pushed)
}

func TestHandleDiscardsMalformedEvents(t *testing.T) {
	sink := &fakeSink{}
	c := newHandleOnlyConsumer(sink, nil)

	c.handle([]byte(`{not json`))
	c.handle([]byte(`{"status":"assigned"}`)) // no order id

	assert.Empty(t, sink.updates)
}

func TestHandleStoreFailureStillPushes(t *testing.T) {
	sink := &fakeSink{err: errors.New("db down")}
	pusher := &fakePusher{}
	c := newHandleOnlyConsumer(sink, pusher)

	c.handle([]byte(`{"order_id":"ord-3","session_id":"sess-3","status":"assigned"}`))

	assert.Len(t, pusher.pushed, 1)
}

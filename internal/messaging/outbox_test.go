package messaging

import (
	"context"
	"errors"
	"testing"

	"food-delivery/internal/logger"
	"food-delivery/internal/models"

	"github.com/stretchr/testify/assert"
)

type recordingPublisher struct {
	events  []string
	updates []string
	fail    bool
}

func (r *recordingPublisher) PublishOrderEvent(_ context.Context, msg *models.OrderMessage) error {
	if r.fail {
		return errors.New("broker down")
	}
	r.events = append(r.events, msg.Event)
	return nil
}

func (r *recordingPublisher) PublishStatusUpdate(_ context.Context, msg *models.StatusUpdateMessage) error {
	if r.fail {
		return errors.New("broker down")
	}
	r.updates = append(r.updates, msg.NewStatus)
	return nil
}

func TestOutboxFlush(t *testing.T) {
	var box Outbox
	box.AddEvent(&models.OrderMessage{Event: models.EventOrderPlaced})
	box.AddUpdate(models.CreateStatusUpdateMessage(models.EntityOrder, "o1", "", "PLACED", "u1"))

	pub := &recordingPublisher{}
	box.Flush(context.Background(), pub, logger.Nop())

	assert.Equal(t, []string{models.EventOrderPlaced}, pub.events)
	assert.Equal(t, []string{"PLACED"}, pub.updates)

	box.Flush(context.Background(), pub, logger.Nop())
	assert.Len(t, pub.events, 1, "flush empties the outbox")
}

func TestOutboxFlushSwallowsErrors(t *testing.T) {
	var box Outbox
	box.AddEvent(&models.OrderMessage{Event: models.EventOrderCancelled})

	assert.NotPanics(t, func() {
		box.Flush(context.Background(), &recordingPublisher{fail: true}, logger.Nop())
	})
}

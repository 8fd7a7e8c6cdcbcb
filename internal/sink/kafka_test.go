package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"traffic-harvester/internal/config"
	"traffic-harvester/internal/model"
)

type fakeWriter struct {
	batches [][]kafka.Message
	failOn  int // 1-based call that fails, 0 never
	closed  bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.batches = append(f.batches, msgs)
	if len(f.batches) == f.failOn {
		return errors.New("leader not available")
	}
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func manyEvents(n int) []model.Event {
	out := make([]model.Event, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, model.Event{ID: fmt.Sprintf("e%d", i), Timestamp: int64(1000 + i), Type: "HAZARD"})
	}
	return out
}

func TestKafka_PushChunks(t *testing.T) {
	w := &fakeWriter{}
	k := newKafkaSink(w, 2)
	assert.Equal(t, "kafka", k.Name())

	require.NoError(t, k.Push(context.Background(), manyEvents(5)))
	require.Len(t, w.batches, 3)
	assert.Len(t, w.batches[0], 2)
	assert.Len(t, w.batches[2], 1)

	m := w.batches[1][0]
	assert.Equal(t, "id:e2", string(m.Key))
	assert.Equal(t, int64(1002), m.Time.UnixMilli())
	require.Len(t, m.Headers, 1)
	assert.Equal(t, "HAZARD", string(m.Headers[0].Value))

	var e model.Event
	require.NoError(t, json.Unmarshal(m.Value, &e))
	assert.Equal(t, "e2", e.ID)

	require.NoError(t, k.Close())
	assert.True(t, w.closed)
}

func TestKafka_PushError(t *testing.T) {
	w := &fakeWriter{failOn: 2}
	err := newKafkaSink(w, 2).Push(context.Background(), manyEvents(5))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[2:4]")
	assert.Len(t, w.batches, 2)
}

func TestKafka_GeoKeyWithoutID(t *testing.T) {
	m, err := eventMessage(model.Event{Latitude: fp(-33.4), Longitude: fp(-70.6), Type: model.TypeJam})
	require.NoError(t, err)
	assert.Equal(t, "geo:-33.4,-70.6,jam", string(m.Key))
	assert.True(t, m.Time.IsZero())
}

func TestClose(t *testing.T) {
	w := &fakeWriter{}
	sinks := []Sink{NewStorage(config.StorageConfig{URL: "http://storage:5000/events"}, ""), newKafkaSink(w, 0)}
	require.NoError(t, Close(sinks))
	assert.True(t, w.closed)
}

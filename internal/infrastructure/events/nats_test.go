package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikedld/osm-strassenraumkarte-generator/internal/domain/model"
)

// mockConn implements Conn for testing.
type mockConn struct {
	PublishFunc func(subject string, data []byte) error
	FlushFunc   func(ctx context.Context) error

	subject string
	data    []byte
	closed  bool
}

func (m *mockConn) Publish(subject string, data []byte) error {
	m.subject, m.data = subject, data
	if m.PublishFunc != nil {
		return m.PublishFunc(subject, data)
	}
	return nil
}

func (m *mockConn) FlushWithContext(ctx context.Context) error {
	if m.FlushFunc != nil {
		return m.FlushFunc(ctx)
	}
	return nil
}

func (m *mockConn) Close() { m.closed = true }

func TestNATSPublisher_Publish(t *testing.T) {
	conn := &mockConn{}
	p := NewNATSPublisher(conn, "strassenraumkarte.generated")

	event := model.GeneratedEvent{
		RunID:            "run-1",
		Location:         "neukoelln",
		CRS:              "EPSG:25833",
		OutputRoot:       "output/neukoelln",
		AreaOfInterest:   "map_extent.geojson",
		FailedCategories: []string{"routes"},
		TileJob:          &model.TileJob{StartZoom: 15, EndZoom: 21, ZoomStep: 32, ImageFormat: "jpg"},
	}
	require.NoError(t, p.Publish(context.Background(), event))

	assert.Equal(t, "strassenraumkarte.generated", conn.subject)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(conn.data, &decoded))
	assert.Equal(t, "run-1", decoded["run_id"])
	assert.Equal(t, "neukoelln", decoded["location"])
	assert.Equal(t, []any{"routes"}, decoded["failed_categories"])
	tileJob, ok := decoded["tile_job"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(32), tileJob["zoom_step"])

	p.Close()
	assert.True(t, conn.closed)
}

func TestNATSPublisher_Errors(t *testing.T) {
	p := NewNATSPublisher(&mockConn{PublishFunc: func(string, []byte) error {
		return errors.New("nats: connection closed")
	}}, "s")
	err := p.Publish(context.Background(), model.GeneratedEvent{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish s")

	p = NewNATSPublisher(&mockConn{FlushFunc: func(context.Context) error {
		return context.DeadlineExceeded
	}}, "s")
	err = p.Publish(context.Background(), model.GeneratedEvent{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConnect_Unreachable(t *testing.T) {
	_, err := Connect("nats://127.0.0.1:1", "s")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nats connect")
}

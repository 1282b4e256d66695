package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/trail-shelter-stats/internal/domain"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC)
	record := domain.ShelterRecord{
		Name:       "neels gap",
		VisitCount: 12,
		Dataset:    "AWOL",
		Type:       "landmark",
		Geo:        &domain.Geo{Lat: 34.7347, Lon: -83.9183},
		Reference:  true,
	}

	msg, err := serializeToMessage(record, now)
	require.NoError(t, err)

	assert.Equal(t, []byte("neels gap"), msg.Key)
	assert.JSONEq(t, `{
		"name": "neels gap",
		"visits": 12,
		"dataset": "AWOL",
		"type": "landmark",
		"geo": {"lat": 34.7347, "lon": -83.9183},
		"reference": true
	}`, string(msg.Value))
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "shelter_source", msg.Headers[0].Key)
	assert.Equal(t, []byte(SourceReference), msg.Headers[0].Value)
	assert.Equal(t, "generated_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[1].Value)
}

func TestSerializeToMessage_AdHoc(t *testing.T) {
	msg, err := serializeToMessage(domain.ShelterRecord{Name: "gooch gap", VisitCount: 3}, time.Now())
	require.NoError(t, err)

	assert.Equal(t, []byte(SourceAdHoc), msg.Headers[0].Value)
	assert.JSONEq(t, `{"name": "gooch gap", "visits": 3, "reference": false}`, string(msg.Value))
}

func TestPublisher_Save(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	domain.SetClock(clock)
	t.Cleanup(func() { domain.SetClock(clockwork.NewRealClock()) })

	fw := &fakeWriter{}
	p := &Publisher{writer: fw, logger: discardLogger()}

	err := p.Save(context.Background(), []domain.ShelterRecord{
		{Name: "neels gap", VisitCount: 2, Reference: true},
		{Name: "gooch gap", VisitCount: 1},
	})
	require.NoError(t, err)

	require.Len(t, fw.msgs, 2)
	assert.Equal(t, "neels gap", string(fw.msgs[0].Key))
	assert.Equal(t, "gooch gap", string(fw.msgs[1].Key))
	assert.Equal(t, "2025-03-01T12:00:00Z", string(fw.msgs[1].Headers[1].Value))

	require.NoError(t, p.Close())
	assert.True(t, fw.closed)
	assert.Equal(t, "kafka", p.Name())
}

func TestPublisher_SaveEmpty(t *testing.T) {
	fw := &fakeWriter{err: errors.New("should not be called")}
	p := &Publisher{writer: fw, logger: discardLogger()}

	require.NoError(t, p.Save(context.Background(), nil))
}

func TestPublisher_SaveError(t *testing.T) {
	fw := &fakeWriter{err: errors.New("leader not available")}
	p := &Publisher{writer: fw, logger: discardLogger()}

	err := p.Save(context.Background(), []domain.ShelterRecord{{Name: "neels gap"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leader not available")
}

//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	kafkaadapter "github.com/couchcryptid/trail-shelter-stats/internal/adapter/kafka"
	"github.com/couchcryptid/trail-shelter-stats/internal/adapter/journal"
	"github.com/couchcryptid/trail-shelter-stats/internal/domain"
	"github.com/couchcryptid/trail-shelter-stats/internal/observability"
	"github.com/couchcryptid/trail-shelter-stats/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const testTopic = "shelter-stats-test"

const referenceCSV = `name,dataset,lat,lon,type
Springer Mountain Shelter,ATC,34.6268,-84.1935,shelter
Hawk Mountain Shelter,ATC,34.6661,-84.1367,shelter
Neels Gap,AWOL,34.7347,-83.9183,landmark
`

// publishedRecord is a shelter record read back from the topic.
type publishedRecord struct {
	Record  domain.ShelterRecord
	Key     string
	Headers map[string]string
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("shelter-stats-test"),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "start kafka container")

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

func readPublished(ctx context.Context, t *testing.T, broker string, n int) []publishedRecord {
	t.Helper()
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  []string{broker},
		Topic:    testTopic,
		GroupID:  fmt.Sprintf("shelter-stats-test-%d", time.Now().UnixNano()),
		MinBytes: 1,
		MaxBytes: 1 << 20,
	})
	defer reader.Close()

	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	out := make([]publishedRecord, 0, n)
	for len(out) < n {
		msg, err := reader.ReadMessage(readCtx)
		require.NoError(t, err, "read shelter record")

		var rec domain.ShelterRecord
		require.NoError(t, json.Unmarshal(msg.Value, &rec))
		headers := make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			headers[h.Key] = string(h.Value)
		}
		out = append(out, publishedRecord{Record: rec, Key: string(msg.Key), Headers: headers})
	}
	return out
}

// TestPipelinePublishesReport runs a full aggregation over a small journal
// directory and checks every shelter record arrives on the topic.
func TestPipelinePublishesReport(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	table, err := domain.LoadReference(strings.NewReader(referenceCSV))
	require.NoError(t, err)

	src := journal.NewDirSource(t.TempDir())
	require.NoError(t, src.Put(ctx, "1001", []byte(`{"name":"a","journal":{
		"0":{"start_loc":"Springer Mountain Shelter","dest":"Stover Creek"},
		"1":{"start_loc":"Stover Creek","dest":"\"Hawk Mountain Shelter\""}}}`)))
	require.NoError(t, src.Put(ctx, "1002", []byte(`{"name":"b","journal":{
		"0":{"start_loc":"neels gap","dest":null}}}`)))

	logger := slog.Default()
	metrics := observability.NewMetricsWithRegistry(prometheus.NewRegistry())
	publisher := kafkaadapter.NewPublisher([]string{broker}, testTopic, logger)
	defer publisher.Close()

	agg := pipeline.NewAggregator(src, logger, metrics, pipeline.AggregatorOptions{})
	p := pipeline.New(agg, nil, []pipeline.Sink{publisher}, logger, metrics)

	summary, err := p.Run(ctx, []string{"1001", "1002"}, table)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 5, summary.Locations)

	got := readPublished(ctx, t, broker, table.Len())
	visits := make(map[string]int, len(got))
	for _, m := range got {
		assert.Equal(t, m.Record.Name, m.Key)
		assert.NotEmpty(t, m.Headers["generated_at"])
		want := kafkaadapter.SourceAdHoc
		if m.Record.Reference {
			want = kafkaadapter.SourceReference
		}
		assert.Equal(t, want, m.Headers["shelter_source"], m.Record.Name)
		visits[m.Record.Name] = m.Record.VisitCount
	}
	assert.Equal(t, map[string]int{
		"springer mountain shelter": 1,
		"hawk mountain shelter":     1,
		"neels gap":                 1,
		"stover creek":              2,
	}, visits)
}

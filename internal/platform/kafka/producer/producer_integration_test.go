//go:build integration

package producer_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"emblem/internal/platform/kafka/producer"
	"emblem/pkg/testutil/containers"
)

type ProducerIntegrationSuite struct {
	suite.Suite
	kafka    *containers.KafkaContainer
	producer *producer.Producer
}

func TestProducerIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(ProducerIntegrationSuite))
}

func (s *ProducerIntegrationSuite) SetupSuite() {
	s.kafka = containers.GetManager().GetKafka(s.T())

	prod, err := producer.New(producer.Config{
		Brokers:         s.kafka.Brokers,
		Acks:            "all",
		Retries:         3,
		DeliveryTimeout: 10 * time.Second,
	}, nil)
	s.Require().NoError(err)
	s.producer = prod
}

func (s *ProducerIntegrationSuite) TearDownSuite() {
	if s.producer != nil {
		s.producer.Close()
	}
}

// Produce returns only after the broker acknowledges, so a nil error
// means the record is consumable.
func (s *ProducerIntegrationSuite) TestDeliveryAcknowledged() {
	ctx := context.Background()
	topic := "emblem-audit-delivery"

	s.Require().NoError(s.kafka.CreateTopic(ctx, topic, 1, 1))

	err := s.producer.Produce(ctx, &producer.Message{
		Topic: topic,
		Key:   []byte("rec-001"),
		Value: []byte(`{"event_type":"badge.mint.completed"}`),
	})
	s.Require().NoError(err)

	consumer, err := s.kafka.NewConsumer(ctx, "delivery-group", topic)
	s.Require().NoError(err)
	defer consumer.Close()

	record := s.kafka.WaitForMessage(ctx, consumer, 5*time.Second, func(r *kgo.Record) bool {
		return string(r.Key) == "rec-001"
	})
	s.Require().NotNil(record)
	s.JSONEq(`{"event_type":"badge.mint.completed"}`, string(record.Value))
}

// The outbox worker routes on aggregate_type and event_type headers;
// they must survive the trip intact.
func (s *ProducerIntegrationSuite) TestHeadersSurviveTheTrip() {
	ctx := context.Background()
	topic := "emblem-audit-headers"

	s.Require().NoError(s.kafka.CreateTopic(ctx, topic, 1, 1))

	err := s.producer.Produce(ctx, &producer.Message{
		Topic: topic,
		Key:   []byte("rec-002"),
		Value: []byte(`{}`),
		Headers: map[string]string{
			"aggregate_type": "mint",
			"aggregate_id":   "4cf0afa2-9b9c-4aa4-b4e2-7f6f2c0c1a10",
			"event_type":     "badge.mint.completed",
		},
	})
	s.Require().NoError(err)

	consumer, err := s.kafka.NewConsumer(ctx, "headers-group", topic)
	s.Require().NoError(err)
	defer consumer.Close()

	record := s.kafka.WaitForMessage(ctx, consumer, 5*time.Second, func(r *kgo.Record) bool {
		return string(r.Key) == "rec-002"
	})
	s.Require().NotNil(record)

	got := make(map[string]string, len(record.Headers))
	for _, h := range record.Headers {
		got[h.Key] = string(h.Value)
	}
	s.Equal("mint", got["aggregate_type"])
	s.Equal("4cf0afa2-9b9c-4aa4-b4e2-7f6f2c0c1a10", got["aggregate_id"])
	s.Equal("badge.mint.completed", got["event_type"])
}

// Redpanda auto-creates topics on first produce; the outbox must not
// depend on out-of-band topic provisioning.
func (s *ProducerIntegrationSuite) TestAutoTopicCreation() {
	ctx := context.Background()
	topic := "emblem-auto-" + time.Now().Format("20060102150405")

	err := s.producer.Produce(ctx, &producer.Message{
		Topic: topic,
		Key:   []byte("rec-003"),
		Value: []byte("created on demand"),
	})
	s.Require().NoError(err)

	consumer, err := s.kafka.NewConsumer(ctx, "auto-create-group", topic)
	s.Require().NoError(err)
	defer consumer.Close()

	record := s.kafka.WaitForMessage(ctx, consumer, 5*time.Second, func(r *kgo.Record) bool {
		return string(r.Key) == "rec-003"
	})
	s.Require().NotNil(record)
}

func (s *ProducerIntegrationSuite) TestCloseRejectsFurtherProduces() {
	prod, err := producer.New(producer.Config{
		Brokers: s.kafka.Brokers,
		Acks:    "1",
		Retries: 1,
	}, nil)
	s.Require().NoError(err)

	s.Require().NoError(prod.Close())
	s.Require().NoError(prod.Close(), "second close is a no-op")

	err = prod.Produce(context.Background(), &producer.Message{
		Topic: "emblem-closed",
		Value: []byte("too late"),
	})
	s.Require().Error(err)
}

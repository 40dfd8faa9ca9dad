package notify

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// messageWriter is the subset of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaConfig struct {
	Brokers string
	Topic   string
	Buffer  int
}

// KafkaPublisher queues events in memory and writes them to Kafka from Run.
// When the queue is full the event is dropped with a warning.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	queue  chan kafka.Message
	logger zerolog.Logger
}

func NewKafkaPublisher(cfg KafkaConfig, logger zerolog.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(SplitBrokers(cfg.Brokers)...),
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	return newKafkaPublisher(w, cfg.Topic, cfg.Buffer, logger)
}

func newKafkaPublisher(w messageWriter, topic string, buffer int, logger zerolog.Logger) *KafkaPublisher {
	if buffer <= 0 {
		buffer = 256
	}
	return &KafkaPublisher{
		writer: w,
		topic:  topic,
		queue:  make(chan kafka.Message, buffer),
		logger: logger.With().Str("component", "notify").Str("topic", topic).Logger(),
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev Event) {
	if ev.EventID == uuid.Nil {
		ev.EventID = uuid.New()
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error().Err(err).Str("event_type", ev.EventType).Msg("marshal event")
		return
	}

	// Keyed by doctor so one doctor's events stay ordered on a partition.
	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(ev.DoctorID.String()),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(ev.EventID.String())},
			{Key: "event_type", Value: []byte(ev.EventType)},
		},
	}
	msg.Headers = InjectTraceHeaders(ctx, msg.Headers)

	select {
	case p.queue <- msg:
	default:
		p.logger.Warn().
			Str("event_type", ev.EventType).
			Str("appointment_id", ev.AppointmentID.String()).
			Msg("notification queue full, dropping event")
	}
}

// Run drains the queue until ctx is cancelled, then flushes what is left
// and closes the writer.
func (p *KafkaPublisher) Run(ctx context.Context) {
	defer func() {
		if err := p.writer.Close(); err != nil {
			p.logger.Error().Err(err).Msg("close kafka writer")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			p.flush()
			return
		case msg := <-p.queue:
			p.write(ctx, msg)
		}
	}
}

func (p *KafkaPublisher) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for {
		select {
		case msg := <-p.queue:
			p.write(ctx, msg)
		default:
			return
		}
	}
}

func (p *KafkaPublisher) write(ctx context.Context, msg kafka.Message) {
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error().Err(err).
			Str("event_type", HeaderValue(msg.Headers, "event_type")).
			Str("event_id", HeaderValue(msg.Headers, "event_id")).
			Msg("publish event failed")
	}
}

func HeaderValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// InjectTraceHeaders appends W3C trace context headers to Kafka headers.
func InjectTraceHeaders(ctx context.Context, headers []kafka.Header) []kafka.Header {
	carrier := &headerCarrier{headers: headers}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return carrier.headers
}

type headerCarrier struct {
	headers []kafka.Header
}

func (c *headerCarrier) Get(key string) string {
	return HeaderValue(c.headers, key)
}

func (c *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c.headers))
	for _, h := range c.headers {
		keys = append(keys, h.Key)
	}
	return keys
}

func (c *headerCarrier) Set(key, value string) {
	for i := range c.headers {
		if c.headers[i].Key == key {
			c.headers[i].Value = []byte(value)
			return
		}
	}
	c.headers = append(c.headers, kafka.Header{Key: key, Value: []byte(value)})
}

var _ propagation.TextMapCarrier = (*headerCarrier)(nil)

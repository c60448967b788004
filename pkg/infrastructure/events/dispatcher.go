package events

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	"confectionery/pkg/domain/model"
	"confectionery/pkg/domain/service"
)

const (
	defaultWriteTimeout = 5 * time.Second
	// Events are published one per write.
	batchTimeout = 10 * time.Millisecond
)

type LogDispatcher struct {
	logger log.FieldLogger
}

func NewLogDispatcher(logger log.FieldLogger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Dispatch(event service.Event) error {
	d.logger.WithFields(log.Fields{
		"event":   event.Type(),
		"payload": event,
	}).Info("domain event")
	return nil
}

type Envelope struct {
	EventID    string        `json:"event_id"`
	Type       string        `json:"type"`
	OccurredAt time.Time     `json:"occurred_at"`
	Payload    service.Event `json:"payload"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaDispatcher publishes every event as a JSON envelope keyed by order id,
// so all events of one order land on the same partition.
type KafkaDispatcher struct {
	writer       messageWriter
	writeTimeout time.Duration
	now          func() time.Time
}

func NewKafkaDispatcher(brokersCSV, topic string) *KafkaDispatcher {
	return newKafkaDispatcher(&kafka.Writer{
		Addr:         kafka.TCP(ParseBrokers(brokersCSV)...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchSize:    1,
		BatchTimeout: batchTimeout,
	})
}

func newKafkaDispatcher(writer messageWriter) *KafkaDispatcher {
	return &KafkaDispatcher{
		writer:       writer,
		writeTimeout: defaultWriteTimeout,
		now:          time.Now,
	}
}

func (d *KafkaDispatcher) Dispatch(event service.Event) error {
	occurredAt := d.now().UTC()
	data, err := json.Marshal(Envelope{
		EventID:    uuid.New().String(),
		Type:       event.Type(),
		OccurredAt: occurredAt,
		Payload:    event,
	})
	if err != nil {
		return errors.Wrapf(err, "encode %s", event.Type())
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.writeTimeout)
	defer cancel()

	err = d.writer.WriteMessages(ctx, kafka.Message{Key: []byte(eventKey(event)), Value: data, Time: occurredAt})
	return errors.Wrapf(err, "publish %s", event.Type())
}

func (d *KafkaDispatcher) Close() error {
	return d.writer.Close()
}

func eventKey(event service.Event) string {
	var id int64
	switch e := event.(type) {
	case model.OrderCreated:
		id = e.OrderID
	case model.OrderUpdated:
		id = e.OrderID
	case model.OrderDeleted:
		id = e.OrderID
	default:
		return event.Type()
	}
	return strconv.FormatInt(id, 10)
}

// MultiDispatcher hands every event to all dispatchers, even if some fail.
type MultiDispatcher []service.EventDispatcher

func (m MultiDispatcher) Dispatch(event service.Event) error {
	var failed []string
	for _, d := range m {
		if err := d.Dispatch(event); err != nil {
			failed = append(failed, err.Error())
		}
	}
	if len(failed) > 0 {
		return errors.Errorf("dispatch %s: %s", event.Type(), strings.Join(failed, "; "))
	}
	return nil
}

func ParseBrokers(brokersCSV string) []string {
	brokers := []string{}
	for _, b := range strings.Split(brokersCSV, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

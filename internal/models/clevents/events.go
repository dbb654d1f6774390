package clevents

import (
	"context"
	"encoding/json"
	"qrcommerce/internal/models/clconfig"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// Types d'événements
const (
	TypeScan       = "scan"
	TypeConversion = "conversion"
	TypeGenerated  = "generated"
)

// Event événement métier publié après un scan, une conversion ou une génération
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	QRCodeID   uint      `json:"qr_code_id"`
	ScanID     uint      `json:"scan_id,omitempty"`
	OrderID    uint      `json:"order_id,omitempty"`
	ProductID  uint      `json:"product_id,omitempty"`
	Revenue    float64   `json:"revenue,omitempty"`
	Source     string    `json:"source,omitempty"`
	DeviceType string    `json:"device_type,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEvent complète l'identifiant et l'horodatage
func NewEvent(eventType string, qrID uint) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		QRCodeID:   qrID,
		OccurredAt: time.Now(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// New renvoie un publisher kafka si activé, sinon un publisher qui logue
func New(cfg clconfig.KafkaConfig) Publisher {
	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		return LogPublisher{}
	}
	return NewKafkaPublisher(cfg.Brokers, cfg.Topic)
}

type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			Async:        false,
		},
	}
}

// Publish la clé est l'id du QR code pour garder l'ordre par QR code
func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(e.QRCodeID), 10)),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(e.Type)},
			{Key: "event-id", Value: []byte(e.ID)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// LogPublisher publie dans le log en debug
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, e Event) error {
	log.Debug().
		Str("event_id", e.ID).
		Str("type", e.Type).
		Uint("qr_id", e.QRCodeID).
		Msg("event")
	return nil
}

func (LogPublisher) Close() error {
	return nil
}

// MemoryPublisher garde les événements, utilisé par les tests
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (m *MemoryPublisher) Publish(_ context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *MemoryPublisher) Close() error {
	return nil
}

func (m *MemoryPublisher) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

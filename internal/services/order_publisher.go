package services

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"

	"nidar/preorder/internal/models"
)

// PlacedOrderEvent announces a confirmed pre-order to the kitchen.
type PlacedOrderEvent struct {
	OrderID             string        `json:"order_id"`
	CustomerName        string        `json:"customer_name"`
	Phone               string        `json:"phone"`
	ArrivalTime         string        `json:"arrival_time"`
	Items               []SummaryLine `json:"items"`
	TotalPrice          int           `json:"total_price"`
	SpecialInstructions string        `json:"special_instructions,omitempty"`
	PlacedAt            time.Time     `json:"placed_at"`
}

func NewPlacedOrderEvent(form models.OrderForm, confirmation models.AgentResponseData, placedAt time.Time) PlacedOrderEvent {
	return PlacedOrderEvent{
		OrderID:             confirmation.OrderID,
		CustomerName:        confirmation.CustomerName,
		Phone:               form.Phone,
		ArrivalTime:         confirmation.ArrivalTime,
		Items:               SummaryLines(form.Items),
		TotalPrice:          confirmation.TotalPrice,
		SpecialInstructions: form.SpecialInstructions,
		PlacedAt:            placedAt,
	}
}

// OrderEventPublisher must not block the customer flow; failures are the publisher's to log.
type OrderEventPublisher interface {
	PublishOrderPlaced(evt PlacedOrderEvent)
	Close() error
}

type NoopOrderPublisher struct{}

func (NoopOrderPublisher) PublishOrderPlaced(PlacedOrderEvent) {}
func (NoopOrderPublisher) Close() error                        { return nil }

// KafkaOrderPublisher writes placed orders as JSON, keyed by order id.
type KafkaOrderPublisher struct {
	writer    *kafka.Writer
	timeout   time.Duration
	wg        sync.WaitGroup
	sentCount int64
}

func NewKafkaOrderPublisher(brokers, topic, username, password, caCert string) (*KafkaOrderPublisher, error) {
	brokerList := ParseKafkaBrokers(brokers)
	if len(brokerList) == 0 {
		return nil, fmt.Errorf("no Kafka brokers configured")
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokerList...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		Transport:              CreateKafkaTransport(username, password, caCert),
		AllowAutoTopicCreation: true,
	}
	log.Info().Strs("brokers", brokerList).Str("topic", topic).Msg("✅ Kafka producer configured")

	return &KafkaOrderPublisher{writer: writer, timeout: 5 * time.Second}, nil
}

func (p *KafkaOrderPublisher) PublishOrderPlaced(evt PlacedOrderEvent) {
	payload, err := json.Marshal(evt)
	if err != nil {
		log.Warn().Err(err).Str("order_id", evt.OrderID).Msg("⚠️ Kafka: failed to marshal order event")
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		// the request context may already be gone, use our own
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()

		err := p.writer.WriteMessages(ctx, kafka.Message{
			Key:   []byte(evt.OrderID),
			Value: payload,
		})
		if err != nil {
			log.Warn().Err(err).Str("order_id", evt.OrderID).Msg("⚠️ Kafka: failed to publish order")
			return
		}
		n := atomic.AddInt64(&p.sentCount, 1)
		log.Info().Str("order_id", evt.OrderID).Int64("sent", n).Msg("📡 Kafka: order published")
	}()
}

// Close waits for in-flight publishes, then closes the writer.
func (p *KafkaOrderPublisher) Close() error {
	p.wg.Wait()
	return p.writer.Close()
}

// CreateKafkaTransport enables SASL/PLAIN when credentials are set and TLS whenever SASL
// or a CA certificate is configured (managed Kafka requires TLS with SASL).
func CreateKafkaTransport(username, password, caCert string) *kafka.Transport {
	transport := &kafka.Transport{
		DialTimeout: 10 * time.Second,
	}

	if username != "" && password != "" {
		transport.SASL = plain.Mechanism{
			Username: username,
			Password: password,
		}
		log.Info().Str("username", username).Msg("🔐 Kafka: SASL/PLAIN enabled")
	}

	tlsConfig := &tls.Config{}
	if caCert != "" {
		caCertPool := x509.NewCertPool()
		if ok := caCertPool.AppendCertsFromPEM([]byte(caCert)); ok {
			tlsConfig.RootCAs = caCertPool
			log.Info().Msg("🔒 Kafka: TLS with custom CA enabled")
		} else {
			log.Warn().Msg("⚠️ Kafka: could not parse CA certificate, using system roots")
		}
	}

	if transport.SASL != nil || caCert != "" {
		transport.TLS = tlsConfig
	}

	return transport
}

// ParseKafkaBrokers splits a comma separated broker list, dropping blanks.
func ParseKafkaBrokers(brokers string) []string {
	if brokers == "" {
		return []string{}
	}
	var result []string
	for _, broker := range strings.Split(strings.ReplaceAll(brokers, " ", ""), ",") {
		if broker != "" {
			result = append(result, broker)
		}
	}
	return result
}

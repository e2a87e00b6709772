package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"strconv"

	"github.com/segmentio/kafka-go"

	"github.com/nuhmanudheent/hosp-connect-ticket-service/internal/domain"
)

const TicketTopic = "ticket_topic"

type KafkaProducer struct {
	writer *kafka.Writer
}

func NewKafkaProducer(broker string) *KafkaProducer {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      []string{broker},
		Topic:        TicketTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: int(kafka.RequireOne),
	})
	return &KafkaProducer{writer: writer}
}

// TicketIssued publishes the issuance event keyed by the ticket code.
func (kp *KafkaProducer) TicketIssued(event domain.TicketEvent) error {
	message, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal ticket event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.TicketCode),
		Value: message,
	}
	if err := kp.writer.WriteMessages(context.Background(), msg); err != nil {
		return fmt.Errorf("failed to produce ticket event: %w", err)
	}

	log.Printf("Ticket event delivered to topic %s for patient %d\n", TicketTopic, event.PatientId)
	return nil
}

func (kp *KafkaProducer) Close() error {
	return kp.writer.Close()
}

// EnsureTopicExists creates the topic on the broker if it is missing. Failures
// are logged, not fatal: the broker auto-creates topics in most deployments.
func EnsureTopicExists(broker, topic string) {
	conn, err := kafka.Dial("tcp", broker)
	if err != nil {
		log.Printf("Failed to dial kafka broker %s: %v", broker, err)
		return
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		log.Printf("Failed to get kafka controller: %v", err)
		return
	}
	controllerConn, err := kafka.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		log.Printf("Failed to dial kafka controller: %v", err)
		return
	}
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	if err != nil {
		log.Printf("Failed to create topic %s: %v", topic, err)
	}
}

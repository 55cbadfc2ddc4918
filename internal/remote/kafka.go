package remote

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

const kafkaBuffer = 100

// KafkaSource consumes directive lines from a Kafka topic in the background.
// Drain never blocks; it returns what has arrived since the last call.
type KafkaSource struct {
	brokers []string
	topic   string
	groupID string

	mu     sync.Mutex
	reader *kafka.Reader
	lines  chan string
}

func NewKafkaSource(brokers []string, topic, groupID string) *KafkaSource {
	return &KafkaSource{
		brokers: brokers,
		topic:   topic,
		groupID: groupID,
		lines:   make(chan string, kafkaBuffer),
	}
}

func (k *KafkaSource) Name() string { return "kafka:" + k.topic }

// Start begins consuming until ctx is cancelled or Close is called.
func (k *KafkaSource) Start(ctx context.Context) error {
	if len(k.brokers) == 0 {
		return fmt.Errorf("kafka source %s: no brokers", k.topic)
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  k.brokers,
		Topic:    k.topic,
		GroupID:  k.groupID,
		MinBytes: 1,
		MaxBytes: 1e6,
	})
	k.mu.Lock()
	k.reader = reader
	k.mu.Unlock()

	go func() {
		for {
			msg, err := reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Warn("Kafka command read failed", "topic", k.topic, "error", err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
				}
				continue
			}
			k.push(string(msg.Value))
		}
	}()
	slog.Info("Listening for remote commands", "topic", k.topic, "brokers", strings.Join(k.brokers, ","))
	return nil
}

// push queues every non-blank line of a message, dropping lines when the
// buffer is full.
func (k *KafkaSource) push(value string) {
	for _, line := range strings.Split(value, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		select {
		case k.lines <- line:
		default:
			slog.Warn("Kafka command buffer full; dropping directive", "topic", k.topic, "directive", line)
		}
	}
}

func (k *KafkaSource) Drain(context.Context) ([]string, error) {
	var out []string
	for {
		select {
		case line := <-k.lines:
			out = append(out, line)
		default:
			return out, nil
		}
	}
}

func (k *KafkaSource) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.reader == nil {
		return nil
	}
	err := k.reader.Close()
	k.reader = nil
	return err
}

// Publish validates directives and writes them to topic as one message.
func Publish(ctx context.Context, brokers []string, topic string, directives []string) error {
	lines, err := validate(directives)
	if err != nil {
		return err
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
	}
	defer w.Close()
	msg := kafka.Message{
		Key:   []byte("usherbot-command"),
		Value: []byte(strings.Join(lines, "\n")),
		Time:  time.Now(),
	}
	if err := w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

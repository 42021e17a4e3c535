// Package notify publishes (user, type, payload) notifications. Delivery is
// owned elsewhere; from the pipeline's perspective publishing is
// fire-and-forget and must never block or fail a request.
package notify

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// Notification is one message for the delivery service.
type Notification struct {
	UserID  int64                  `json:"user_id"`
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload,omitempty"`
	SentAt  time.Time              `json:"sent_at"`
}

// Notifier publishes notifications.
type Notifier interface {
	Publish(ctx context.Context, n Notification)
}

// Nop discards notifications. Used when no queue is configured and in tests.
type Nop struct{}

func (Nop) Publish(ctx context.Context, n Notification) {}

// SQSNotifier publishes to an SQS queue from a background goroutine with its
// own deadline, so a slow queue cannot hold a request open.
type SQSNotifier struct {
	client   *sqs.Client
	queueURL string
}

// NewSQSNotifier creates a notifier for the given queue.
func NewSQSNotifier(client *sqs.Client, queueURL string) *SQSNotifier {
	return &SQSNotifier{client: client, queueURL: queueURL}
}

func (p *SQSNotifier) Publish(ctx context.Context, n Notification) {
	if n.SentAt.IsZero() {
		n.SentAt = time.Now().UTC()
	}
	body, err := json.Marshal(n)
	if err != nil {
		log.Printf("notify: marshal %s: %v", n.Type, err)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
			QueueUrl:    aws.String(p.queueURL),
			MessageBody: aws.String(string(body)),
		})
		if err != nil {
			log.Printf("notify: publish %s: %v", n.Type, err)
		}
	}()
}

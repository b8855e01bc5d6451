package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"attendance.tracker/pkg/telemetry"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Producer is the output port for publishing domain events. Publishing is
// fire and forget from the orchestrator's point of view; a lost event never
// fails a submission.
type Producer interface {
	PublishRecordPersisted(ctx context.Context, event RecordPersistedEvent) error
}

// SQSClient is the slice of the AWS SQS client the producer needs.
type SQSClient interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSProducer publishes events to an SQS queue with trace context injected
// into the message attributes.
type SQSProducer struct {
	client   SQSClient
	queueURL string
}

// NewSQSProducer creates a producer for the events queue.
func NewSQSProducer(client SQSClient, queueURL string) *SQSProducer {
	return &SQSProducer{client: client, queueURL: queueURL}
}

// PublishRecordPersisted sends the event to the events queue.
func (p *SQSProducer) PublishRecordPersisted(ctx context.Context, event RecordPersistedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.SetAttributes(attribute.String("app.userId", event.UserID))
	}

	attributes := telemetry.InjectTraceContext(ctx)
	attributes["EventType"] = telemetry.StringAttribute(string(event.Type))

	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:          aws.String(p.queueURL),
		MessageBody:       aws.String(string(body)),
		MessageAttributes: attributes,
	})
	if err != nil {
		return fmt.Errorf("failed to send message to events queue: %w", err)
	}
	return nil
}

// NoopProducer is used when no events queue is configured.
type NoopProducer struct{}

func (NoopProducer) PublishRecordPersisted(ctx context.Context, event RecordPersistedEvent) error {
	return nil
}

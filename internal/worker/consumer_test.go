package worker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSQSClient struct {
	mu sync.Mutex

	messages []types.Message
	// cancel stops the poll loop after the first receive.
	cancel context.CancelFunc

	receiveInputs []*sqs.ReceiveMessageInput
	deleted       []string
	visibilities  []int32
}

func (f *fakeSQSClient) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receiveInputs = append(f.receiveInputs, params)
	out := &sqs.ReceiveMessageOutput{Messages: f.messages}
	f.messages = nil
	if f.cancel != nil {
		f.cancel()
	}
	return out, nil
}

func (f *fakeSQSClient) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, *params.ReceiptHandle)
	return &sqs.DeleteMessageOutput{}, nil
}

func (f *fakeSQSClient) ChangeMessageVisibility(ctx context.Context, params *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visibilities = append(f.visibilities, params.VisibilityTimeout)
	return &sqs.ChangeMessageVisibilityOutput{}, nil
}

type stubProcessor struct {
	shouldRetry bool
	retryDelay  int32
	err         error
}

func (p stubProcessor) Process(ctx context.Context, msg types.Message) (bool, int32, error) {
	return p.shouldRetry, p.retryDelay, p.err
}

func TestPollRequestsRetryCountAttribute(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client := &fakeSQSClient{cancel: cancel}
	w := NewWorker(client, "http://queue/events", stubProcessor{})

	ch := make(chan types.Message, w.Concurrency)
	w.pollMessages(ctx, ch)

	require.NotEmpty(t, client.receiveInputs)
	in := client.receiveInputs[0]
	assert.Contains(t, in.MessageAttributeNames, "All")
	assert.Contains(t, in.MessageSystemAttributeNames, types.MessageSystemAttributeNameApproximateReceiveCount)
}

func TestHandleMessageDeletesOnSuccess(t *testing.T) {
	client := &fakeSQSClient{}
	w := NewWorker(client, "http://queue/events", stubProcessor{})

	msg := types.Message{Body: aws.String("{}"), ReceiptHandle: aws.String("rh-1")}
	w.handleSingleMessage(context.Background(), msg)

	assert.Equal(t, []string{"rh-1"}, client.deleted)
	assert.Empty(t, client.visibilities)
}

func TestHandleMessageBumpsVisibilityOnRetry(t *testing.T) {
	client := &fakeSQSClient{}
	w := NewWorker(client, "http://queue/events", stubProcessor{
		shouldRetry: true,
		retryDelay:  80,
		err:         errors.New("downstream throttled"),
	})

	msg := types.Message{Body: aws.String("{}"), ReceiptHandle: aws.String("rh-1")}
	w.handleSingleMessage(context.Background(), msg)

	assert.Equal(t, []int32{80}, client.visibilities)
	assert.Empty(t, client.deleted, "retried messages stay in the queue")
}

func TestHandleMessageDropsUnrecoverable(t *testing.T) {
	client := &fakeSQSClient{}
	w := NewWorker(client, "http://queue/events", stubProcessor{err: errors.New("malformed")})

	msg := types.Message{Body: aws.String("not json"), ReceiptHandle: aws.String("rh-1")}
	w.handleSingleMessage(context.Background(), msg)

	assert.Empty(t, client.deleted)
	assert.Empty(t, client.visibilities)
}

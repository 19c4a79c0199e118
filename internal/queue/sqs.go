package queue

import (
	"context"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	pErrors "github.com/stockyard/stockyard/internal/errors"
)

// SQSQueue implements Queue on AWS SQS.
type SQSQueue struct {
	client            *sqs.Client
	queueURL          string
	visibility        time.Duration
	waitTime          time.Duration
	compressThreshold int
}

// SQSConfig holds SQS queue configuration.
type SQSConfig struct {
	// Region is the AWS region.
	Region string
	// VisibilityTimeout is how long received messages stay invisible.
	VisibilityTimeout time.Duration
	// WaitTime is the long-poll wait for receives.
	WaitTime time.Duration
	// CompressThreshold is the body size above which snappy kicks in.
	// SQS rejects bodies over 256KB, so large rows must ride compressed.
	CompressThreshold int
}

// NewSQSQueue creates an SQS-backed queue.
func NewSQSQueue(ctx context.Context, queueURL string, cfg SQSConfig) (*SQSQueue, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, pErrors.NewQueueError(pErrors.CodeEnqueueFailed, "loading AWS config", err)
	}

	return NewSQSQueueWithClient(sqs.NewFromConfig(awsCfg), queueURL, cfg), nil
}

// NewSQSQueueWithClient creates an SQS-backed queue with a pre-configured client.
func NewSQSQueueWithClient(client *sqs.Client, queueURL string, cfg SQSConfig) *SQSQueue {
	if cfg.VisibilityTimeout <= 0 {
		cfg.VisibilityTimeout = 30 * time.Second
	}
	return &SQSQueue{
		client:            client,
		queueURL:          queueURL,
		visibility:        cfg.VisibilityTimeout,
		waitTime:          cfg.WaitTime,
		compressThreshold: cfg.CompressThreshold,
	}
}

// Enqueue sends a message to the queue.
func (q *SQSQueue) Enqueue(ctx context.Context, body []byte) error {
	_, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(encodeBody(body, q.compressThreshold)),
	})
	if err != nil {
		return pErrors.NewQueueError(pErrors.CodeEnqueueFailed, "sending message", err)
	}
	return nil
}

// ReceiveBatch long-polls for up to max messages.
func (q *SQSQueue) ReceiveBatch(ctx context.Context, max int) ([]Message, error) {
	if max < 1 {
		max = 1
	}
	if max > 10 {
		max = 10 // SQS receive cap
	}

	resp, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: int32(max),
		WaitTimeSeconds:     int32(q.waitTime / time.Second),
		VisibilityTimeout:   int32(q.visibility / time.Second),
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{
			types.MessageSystemAttributeNameApproximateReceiveCount,
		},
	})
	if err != nil {
		return nil, pErrors.NewQueueError(pErrors.CodeReceiveFailed, "receiving messages", err)
	}

	batch := make([]Message, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		body, err := decodeBody(aws.ToString(m.Body))
		if err != nil {
			return nil, err
		}

		deliveryCount := 1
		if v, ok := m.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)]; ok {
			if n, err := strconv.Atoi(v); err == nil {
				deliveryCount = n
			}
		}

		batch = append(batch, Message{
			ID:            aws.ToString(m.MessageId),
			Body:          body,
			DeliveryCount: deliveryCount,
			handle:        aws.ToString(m.ReceiptHandle),
		})
	}
	return batch, nil
}

// Ack deletes a delivered message.
func (q *SQSQueue) Ack(ctx context.Context, msg Message) error {
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(msg.handle),
	})
	if err != nil {
		return pErrors.NewQueueError(pErrors.CodeAckFailed, "deleting message", err)
	}
	return nil
}

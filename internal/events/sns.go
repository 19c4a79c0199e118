package events

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"

	pErrors "github.com/stockyard/stockyard/internal/errors"
)

// SNSPublisher publishes commit events to an SNS topic. The price travels as
// a numeric message attribute so topic subscriptions can filter on it
// without parsing the body.
type SNSPublisher struct {
	client   *sns.Client
	topicARN string
}

// NewSNSPublisher creates an SNS-backed publisher from an AWS config.
func NewSNSPublisher(cfg aws.Config, topicARN string) *SNSPublisher {
	return &SNSPublisher{
		client:   sns.NewFromConfig(cfg),
		topicARN: topicARN,
	}
}

// NewSNSPublisherWithClient creates an SNS publisher with a caller-supplied
// client, used by tests.
func NewSNSPublisherWithClient(client *sns.Client, topicARN string) *SNSPublisher {
	return &SNSPublisher{client: client, topicARN: topicARN}
}

// Publish sends the event with its price attribute attached.
func (p *SNSPublisher) Publish(ctx context.Context, ev CommitEvent) error {
	body, err := json.Marshal(ev.Message)
	if err != nil {
		return pErrors.NewPublishError("encoding event message", err)
	}

	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Subject:  aws.String(ev.Subject),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"price": {
				DataType:    aws.String("Number"),
				StringValue: aws.String(strconv.FormatFloat(ev.Price, 'f', -1, 64)),
			},
		},
	})
	if err != nil {
		return pErrors.NewPublishError("publishing commit event", err)
	}
	return nil
}

// PublishFailure sends an aggregate failure notification without a price
// attribute, bypassing price-filtered subscriptions.
func (p *SNSPublisher) PublishFailure(ctx context.Context, message string) error {
	body, err := json.Marshal(EventMessage{Message: message})
	if err != nil {
		return pErrors.NewPublishError("encoding failure message", err)
	}

	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Subject:  aws.String(SubjectCommitFailure),
		Message:  aws.String(string(body)),
	})
	if err != nil {
		return pErrors.NewPublishError("publishing failure notification", err)
	}
	return nil
}

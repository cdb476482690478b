// Package notify publishes attendance alerts.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/kozaktomas/roll-call/internal/identity"
)

// AlertSubject is the subject line of absent alerts.
const AlertSubject = "Attendance Alert"

// ErrNoTopic is returned when no topic is configured.
var ErrNoTopic = errors.New("SNS topic ARN is not configured")

// API is the subset of the SNS client used here.
type API interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Publisher sends alerts to an SNS topic.
type Publisher struct {
	api      API
	topicARN string
}

// New creates a publisher backed by the SNS client.
func New(cfg aws.Config, topicARN string) *Publisher {
	return NewWithAPI(sns.NewFromConfig(cfg), topicARN)
}

// NewWithAPI creates a publisher using a custom API implementation.
func NewWithAPI(api API, topicARN string) *Publisher {
	return &Publisher{api: api, topicARN: topicARN}
}

// AbsentMessage builds the alert body listing absent students, one per line.
func AbsentMessage(absent []identity.StudentIdentity) string {
	lines := make([]string, 0, len(absent)+1)
	lines = append(lines, "Absent Today:")
	for _, s := range absent {
		lines = append(lines, s.String())
	}
	return strings.Join(lines, "\n")
}

// PublishAbsent publishes the absent list and returns the SNS message ID.
func (p *Publisher) PublishAbsent(ctx context.Context, absent []identity.StudentIdentity) (string, error) {
	if p.topicARN == "" {
		return "", ErrNoTopic
	}

	out, err := p.api.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Subject:  aws.String(AlertSubject),
		Message:  aws.String(AbsentMessage(absent)),
	})
	if err != nil {
		return "", fmt.Errorf("publish absent alert: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}

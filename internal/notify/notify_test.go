package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/kozaktomas/roll-call/internal/identity"
)

type fakeSNS struct {
	in  *sns.PublishInput
	err error
}

func (f *fakeSNS) Publish(ctx context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: aws.String("msg-1")}, nil
}

var absent = []identity.StudentIdentity{
	{StudentID: "2", DisplayName: "Bob"},
	{StudentID: "3", DisplayName: "Carol Ann"},
}

func TestAbsentMessage(t *testing.T) {
	tests := []struct {
		name   string
		absent []identity.StudentIdentity
		want   string
	}{
		{"two students", absent, "Absent Today:\nBob (2)\nCarol Ann (3)"},
		{"nobody", nil, "Absent Today:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AbsentMessage(tt.absent); got != tt.want {
				t.Errorf("AbsentMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPublishAbsent(t *testing.T) {
	api := &fakeSNS{}
	p := NewWithAPI(api, "arn:aws:sns:ap-south-1:123456789012:absent")

	id, err := p.PublishAbsent(context.Background(), absent)
	if err != nil {
		t.Fatalf("PublishAbsent() error: %v", err)
	}
	if id != "msg-1" {
		t.Errorf("message ID = %q, want msg-1", id)
	}
	if aws.ToString(api.in.Subject) != AlertSubject {
		t.Errorf("Subject = %q", aws.ToString(api.in.Subject))
	}
	if aws.ToString(api.in.TopicArn) != "arn:aws:sns:ap-south-1:123456789012:absent" {
		t.Errorf("TopicArn = %q", aws.ToString(api.in.TopicArn))
	}
	if aws.ToString(api.in.Message) != AbsentMessage(absent) {
		t.Errorf("Message = %q", aws.ToString(api.in.Message))
	}
}

func TestPublishAbsent_Errors(t *testing.T) {
	if _, err := NewWithAPI(&fakeSNS{}, "").PublishAbsent(context.Background(), absent); !errors.Is(err, ErrNoTopic) {
		t.Errorf("error = %v, want ErrNoTopic", err)
	}

	api := &fakeSNS{err: errors.New("AuthorizationError")}
	if _, err := NewWithAPI(api, "arn").PublishAbsent(context.Background(), absent); err == nil {
		t.Error("expected error")
	}
}

// Package queue defines the enrichment job message and its SQS producer.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// Job identifies which client and avatar blob to process. JobID is a unique
// token assigned by the producer so the worker can detect redeliveries of an
// already-applied job.
type Job struct {
	JobID     string `json:"jobId"`
	ClientID  string `json:"clientId"`
	BlobPath  string `json:"blobPath"`
	AvatarURL string `json:"avatarUrl"`
}

// Validate checks the required job fields. It runs before any I/O on both the
// producer and the worker side.
func (j Job) Validate() error {
	if strings.TrimSpace(j.ClientID) == "" {
		return errors.New("job missing clientId")
	}
	if strings.TrimSpace(j.BlobPath) == "" {
		return errors.New("job missing blobPath")
	}
	return nil
}

// API is the subset of the SQS client used by the producer.
type API interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Producer enqueues enrichment jobs. The avatar upload handler is its only
// caller; the worker has no other entry point.
type Producer struct {
	SQS      API
	QueueURL string
}

// Enqueue sends one job message.
func (p *Producer) Enqueue(ctx context.Context, j Job) error {
	if err := j.Validate(); err != nil {
		return err
	}
	body, err := json.Marshal(j)
	if err != nil {
		return err
	}
	_, err = p.SQS.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.QueueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("enqueue job %s: %w", j.JobID, err)
	}
	return nil
}

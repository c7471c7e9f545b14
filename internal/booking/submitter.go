package booking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// Submitter hands a submission to the downstream booking system. The
// widget does not wait for the appointment to be confirmed there.
type Submitter interface {
	// Name returns the transport identifier ("http", "sqs", "outbox").
	Name() string
	Submit(ctx context.Context, sub Submission) error
}

// HTTPSubmitter posts the submission as JSON to the bot's new-appointment endpoint.
type HTTPSubmitter struct {
	client *http.Client
	url    string
}

func NewHTTPSubmitter(url string, timeout time.Duration) *HTTPSubmitter {
	if url == "" {
		panic("booking: submit url required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSubmitter{client: &http.Client{Timeout: timeout}, url: url}
}

func (h *HTTPSubmitter) Name() string { return "http" }

func (h *HTTPSubmitter) Submit(ctx context.Context, sub Submission) error {
	body, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("booking: marshal submission: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("booking: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("booking: post submission: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("booking: submission rejected with status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSSubmitter enqueues the submission for the bot's queue consumer.
type SQSSubmitter struct {
	client   sqsAPI
	queueURL string
}

// NewSQSSubmitter creates a submitter around the provided SQS client.
func NewSQSSubmitter(client sqsAPI, queueURL string) *SQSSubmitter {
	if client == nil {
		panic("booking: SQS client cannot be nil")
	}
	if queueURL == "" {
		panic("booking: SQS queueURL cannot be empty")
	}
	return &SQSSubmitter{client: client, queueURL: queueURL}
}

func (q *SQSSubmitter) Name() string { return "sqs" }

func (q *SQSSubmitter) Submit(ctx context.Context, sub Submission) error {
	body, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("booking: marshal submission: %w", err)
	}
	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"type": {DataType: aws.String("String"), StringValue: aws.String(eventNewAppointment)},
		},
	})
	if err != nil {
		return fmt.Errorf("booking: failed to send SQS message: %w", err)
	}
	return nil
}

const eventNewAppointment = "booking.new_appointment.v1"

var (
	_ Submitter = (*HTTPSubmitter)(nil)
	_ Submitter = (*SQSSubmitter)(nil)
)

// Package main runs the avatar enrichment worker, consuming jobs from SQS.
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/mzieba/client-manager/internal/awsutil"
	"github.com/mzieba/client-manager/internal/blobio"
	"github.com/mzieba/client-manager/internal/config"
	"github.com/mzieba/client-manager/internal/enrich"
	"github.com/mzieba/client-manager/internal/queue"
	"github.com/mzieba/client-manager/internal/records"
	"github.com/mzieba/client-manager/internal/vision"
)

// App holds the application state, including configuration and the pipeline.
type App struct {
	env      config.Env
	pipeline *enrich.Pipeline
}

func main() {
	env := config.MustLoad()
	cfg, endpoint, err := awsutil.Load(context.Background(), env.Region)
	if err != nil {
		log.Fatal(err)
	}

	s3c := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true // localstack/dev friendliness
		}
	})

	app := &App{
		env: env,
		pipeline: &enrich.Pipeline{
			Blobs: &blobio.Store{
				S3:      s3c,
				Bucket:  env.Bucket,
				BaseURL: env.PublicBaseURL,
				Region:  env.Region,
			},
			Records: &records.Repo{DB: dynamodb.NewFromConfig(cfg), Table: env.Table},
			Vision: &vision.Client{
				HTTP:     &http.Client{Timeout: env.VisionTimeout},
				Endpoint: env.VisionEndpoint,
				APIKey:   env.VisionKey,
			},
			ThumbSize: env.ThumbSize,
		},
	}
	lambda.Start(app.handler)
}

// ---- Handler ----

// handler processes a batch of SQS messages, reporting per-item failures so a
// bad message does not force redelivery of its batch siblings.
func (a *App) handler(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	var failures []events.SQSBatchItemFailure
	for _, rec := range ev.Records {
		if err := a.processMessage(ctx, rec); err != nil {
			log.Printf("enrich: message %s: %v", rec.MessageId, err)
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: rec.MessageId})
		}
	}
	return events.SQSEventResponse{BatchItemFailures: failures}, nil
}

func (a *App) processMessage(ctx context.Context, rec events.SQSMessage) error {
	job, err := decodeJob(rec.Body)
	if err != nil {
		return err
	}
	return a.pipeline.Process(ctx, job)
}

// decodeJob parses a job message body, tolerating base64 wrapping applied by
// some queue transports.
func decodeJob(body string) (queue.Job, error) {
	var job queue.Job
	raw := []byte(body)
	if !strings.HasPrefix(strings.TrimSpace(body), "{") {
		decoded, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return job, fmt.Errorf("undecodable message body: %w", err)
		}
		raw = decoded
	}
	if err := json.Unmarshal(raw, &job); err != nil {
		return job, fmt.Errorf("unmarshal job: %w", err)
	}
	return job, nil
}

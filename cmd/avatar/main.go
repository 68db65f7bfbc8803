// Package main handles avatar uploads: stores the original blob, patches the
// client record and enqueues exactly one enrichment job.
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/oklog/ulid/v2"

	"github.com/mzieba/client-manager/internal/api"
	"github.com/mzieba/client-manager/internal/authz"
	"github.com/mzieba/client-manager/internal/awsutil"
	"github.com/mzieba/client-manager/internal/blobio"
	"github.com/mzieba/client-manager/internal/config"
	"github.com/mzieba/client-manager/internal/httpx"
	"github.com/mzieba/client-manager/internal/queue"
	"github.com/mzieba/client-manager/internal/records"
	"github.com/mzieba/client-manager/internal/validate"
)

// maxAvatarBytes bounds the decoded upload size.
const maxAvatarBytes = 5 << 20

// App holds the application state, including configuration and AWS clients.
type App struct {
	env      config.Env
	repo     *records.Repo
	blobs    *blobio.Store
	producer *queue.Producer
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
			o.UsePathStyle = true
		}
	})

	app := &App{
		env:  env,
		repo: &records.Repo{DB: dynamodb.NewFromConfig(cfg), Table: env.Table},
		blobs: &blobio.Store{
			S3:      s3c,
			Bucket:  env.Bucket,
			BaseURL: env.PublicBaseURL,
			Region:  env.Region,
		},
		producer: &queue.Producer{SQS: sqs.NewFromConfig(cfg), QueueURL: env.EnrichQueueURL},
	}
	lambda.Start(app.handler)
}

// ---- Handler ----

func (a *App) handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	if _, err := authz.SubFromRequest(req, a.env.DevBypassAuth); err != nil {
		return httpx.Error(http.StatusUnauthorized, "missing user")
	}

	clientID := req.PathParameters["id"]
	if clientID == "" {
		return httpx.Error(http.StatusBadRequest, "client id required")
	}

	img, ext, err := parseUpload(req.Body)
	if err != nil {
		return httpx.Error(http.StatusBadRequest, err.Error())
	}

	c, err := a.repo.GetClient(ctx, clientID)
	if errors.Is(err, records.ErrNotFound) {
		return httpx.Error(http.StatusNotFound, "client not found")
	}
	if err != nil {
		log.Printf("avatar: read client %s error: %v", clientID, err)
		return httpx.Error(http.StatusInternalServerError, "db error")
	}

	fileID := ulid.Make().String()
	key := blobio.AvatarKey(clientID, fileID, ext)
	if err := a.blobs.Put(ctx, key, img, "image/"+extContentType(ext)); err != nil {
		log.Printf("avatar: store original %s error: %v", key, err)
		return httpx.Error(http.StatusInternalServerError, "storage error")
	}
	avatarURL := a.blobs.URL(key)

	now := records.NowISO()
	c.AvatarURL = &avatarURL
	c.UpdatedAt = &now
	// A new original invalidates the previous enrichment output; the fields
	// stay stale until the worker overwrites them.

	err = a.repo.ReplaceClient(ctx, *c, c.Version)
	if errors.Is(err, records.ErrVersionConflict) {
		return httpx.Error(http.StatusConflict, "client was modified concurrently")
	}
	if err != nil {
		log.Printf("avatar: patch client %s error: %v", clientID, err)
		return httpx.Error(http.StatusInternalServerError, "db error")
	}

	job := queue.Job{
		JobID:     ulid.Make().String(),
		ClientID:  clientID,
		BlobPath:  key,
		AvatarURL: avatarURL,
	}
	if err := a.producer.Enqueue(ctx, job); err != nil {
		// The original and the record are already written; the thumbnail will
		// simply never arrive. Surface the failure to the caller.
		log.Printf("avatar: enqueue for client %s error: %v", clientID, err)
		return httpx.Error(http.StatusInternalServerError, "queue error")
	}

	return httpx.JSON(http.StatusAccepted, api.AvatarUploadResponse{
		AvatarURL: avatarURL,
		JobID:     job.JobID,
	})
}

// ---- Helpers ----

// parseUpload decodes the JSON body and the base64 image payload.
func parseUpload(body string) (img []byte, ext string, err error) {
	var in api.AvatarUploadRequest
	if err := json.Unmarshal([]byte(body), &in); err != nil {
		return nil, "", errors.New("invalid json")
	}
	ext, err = validate.AvatarContentType(in.ContentType)
	if err != nil {
		return nil, "", err
	}
	img, err = base64.StdEncoding.DecodeString(in.Data)
	if err != nil {
		return nil, "", errors.New("invalid base64 image data")
	}
	if len(img) == 0 {
		return nil, "", errors.New("empty image")
	}
	if len(img) > maxAvatarBytes {
		return nil, "", errors.New("image too large")
	}
	return img, ext, nil
}

// extContentType maps a stored extension back to its content type suffix.
func extContentType(ext string) string {
	if ext == "jpg" {
		return "jpeg"
	}
	return ext
}

// Package main finalizes a document upload after the S3 PUT by appending the
// descriptor to the client record.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/mzieba/client-manager/internal/awsutil"
	"github.com/mzieba/client-manager/internal/blobio"
	"github.com/mzieba/client-manager/internal/config"
	"github.com/mzieba/client-manager/internal/models"
	"github.com/mzieba/client-manager/internal/records"
)

// attachAttempts bounds retries of the record patch on version conflicts.
const attachAttempts = 3

// App holds the application state, including configuration and AWS clients.
type App struct {
	env   config.Env
	blobs *blobio.Store
	repo  *records.Repo
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
		env: env,
		blobs: &blobio.Store{
			S3:      s3c,
			Bucket:  env.Bucket,
			BaseURL: env.PublicBaseURL,
			Region:  env.Region,
		},
		repo: &records.Repo{DB: dynamodb.NewFromConfig(cfg), Table: env.Table},
	}
	lambda.Start(app.handler)
}

// ---- Handler ----

func (a *App) handler(ctx context.Context, ev events.S3Event) (any, error) {
	for _, rec := range ev.Records {
		if err := a.processS3Record(ctx, rec); err != nil {
			log.Printf("docindexer: process error: %v", err)
		}
	}
	return nil, nil
}

// processS3Record handles a single S3 object-created record.
func (a *App) processS3Record(ctx context.Context, record events.S3EventRecord) error {
	key, _ := url.QueryUnescape(record.S3.Object.Key)
	if !strings.HasPrefix(key, blobio.DocPrefix+"/") {
		return nil // not a document upload
	}

	clientID, docID, name, err := a.identify(ctx, key)
	if err != nil {
		return fmt.Errorf("identify %s: %w", key, err)
	}

	doc := models.Document{
		ID:         docID,
		Name:       name,
		URL:        a.blobs.URL(key),
		UploadedAt: records.NowISO(),
	}
	if err := a.attach(ctx, clientID, doc); err != nil {
		return fmt.Errorf("attach %s to %s: %w", docID, clientID, err)
	}

	log.Printf("docindexer: attached %s to client %s", docID, clientID)
	return nil
}

// identify resolves the client, document id and display name of an uploaded
// object. Object metadata wins; the key path is the fallback.
func (a *App) identify(ctx context.Context, key string) (clientID, docID, name string, err error) {
	meta, err := a.blobs.Metadata(ctx, key)
	if err != nil {
		return "", "", "", err
	}
	clientID = strings.TrimSpace(meta["client_id"])
	docID = strings.TrimSpace(meta["doc_id"])
	name = strings.TrimSpace(meta["doc_name"])

	if clientID == "" || docID == "" {
		c2, d2, ok := blobio.ParseDocKey(key)
		if !ok {
			return "", "", "", fmt.Errorf("bad key shape %q", key)
		}
		if clientID == "" {
			clientID = c2
		}
		if docID == "" {
			docID = d2
		}
	}
	if name == "" {
		name = docID + ".pdf"
	}
	return clientID, docID, name, nil
}

// attach appends the descriptor to the client record with a version
// check-and-set. Re-notification for the same object replaces the existing
// descriptor instead of duplicating it.
func (a *App) attach(ctx context.Context, clientID string, doc models.Document) error {
	for attempt := 1; attempt <= attachAttempts; attempt++ {
		c, err := a.repo.FindClientByID(ctx, clientID)
		if errors.Is(err, records.ErrNotFound) {
			log.Printf("docindexer: client %s not found, leaving blob orphaned", clientID)
			return nil
		}
		if err != nil {
			return err
		}

		if i := c.FindDocument(doc.ID); i >= 0 {
			c.Documents[i] = doc
		} else {
			c.Documents = append(c.Documents, doc)
		}
		now := records.NowISO()
		c.UpdatedAt = &now

		err = a.repo.ReplaceClient(ctx, *c, c.Version)
		if errors.Is(err, records.ErrVersionConflict) {
			continue
		}
		return err
	}
	return fmt.Errorf("gave up after %d version conflicts", attachAttempts)
}

// Package main issues presigned upload URLs for client documents.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/mzieba/client-manager/internal/api"
	"github.com/mzieba/client-manager/internal/authz"
	"github.com/mzieba/client-manager/internal/awsutil"
	"github.com/mzieba/client-manager/internal/blobio"
	"github.com/mzieba/client-manager/internal/config"
	"github.com/mzieba/client-manager/internal/httpx"
	"github.com/mzieba/client-manager/internal/records"
	"github.com/mzieba/client-manager/internal/validate"
)

// App holds the application state, including configuration and AWS clients.
type App struct {
	env  config.Env
	s3p  *s3.PresignClient
	repo *records.Repo
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
		s3p:  s3.NewPresignClient(s3c),
		repo: &records.Repo{DB: dynamodb.NewFromConfig(cfg), Table: env.Table},
	}
	lambda.Start(app.handler)
}

// handler validates the request and returns a presigned PUT URL for the
// document blob. The descriptor is appended to the client record later, by the
// indexer, once the upload actually lands.
func (a *App) handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	if _, err := authz.SubFromRequest(req, a.env.DevBypassAuth); err != nil {
		return httpx.Error(http.StatusUnauthorized, "missing user")
	}

	clientID := req.PathParameters["id"]
	if clientID == "" {
		return httpx.Error(http.StatusBadRequest, "client id required")
	}

	in, err := parseRequest(req.Body)
	if err != nil {
		return httpx.Error(http.StatusBadRequest, err.Error())
	}

	// Presigning for a missing client would strand the blob forever.
	if _, err := a.repo.GetClient(ctx, clientID); err != nil {
		if errors.Is(err, records.ErrNotFound) {
			return httpx.Error(http.StatusNotFound, "client not found")
		}
		log.Printf("docpresign: read client %s error: %v", clientID, err)
		return httpx.Error(http.StatusInternalServerError, "db error")
	}

	docID := uuid.NewString()
	key := blobio.DocKey(clientID, docID)
	meta := map[string]string{
		"client_id": clientID,
		"doc_id":    docID,
		"doc_name":  in.Filename,
	}

	url, ttl, err := blobio.PresignPut(ctx, a.s3p, a.env.Bucket, key, in.ContentType, meta, a.env.PresignTTL)
	if err != nil {
		log.Printf("docpresign: presign err: %v", err)
		return httpx.Error(http.StatusInternalServerError, "presign error")
	}

	return httpx.JSON(http.StatusOK, api.DocPresignResponse{
		DocID:         docID,
		S3Key:         key,
		PresignedURL:  url,
		ExpiresIn:     int(ttl.Seconds()),
		ContentType:   in.ContentType,
		UploadHeaders: blobio.DocUploadHeaders(clientID, docID, in.Filename, in.ContentType),
	})
}

// parseRequest parses the JSON body and validates all input fields.
func parseRequest(body string) (api.DocPresignRequest, error) {
	var in api.DocPresignRequest
	if err := json.Unmarshal([]byte(body), &in); err != nil {
		return in, errors.New("invalid json")
	}
	if in.ContentType == "" {
		in.ContentType = "application/pdf"
	}
	if err := validate.DocumentFilename(in.Filename); err != nil {
		return in, err
	}
	if err := validate.DocumentContentType(in.ContentType); err != nil {
		return in, err
	}
	return in, nil
}

// Package main serves the client CRUD API.
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
	"github.com/oklog/ulid/v2"

	"github.com/mzieba/client-manager/internal/api"
	"github.com/mzieba/client-manager/internal/authz"
	"github.com/mzieba/client-manager/internal/awsutil"
	"github.com/mzieba/client-manager/internal/blobio"
	"github.com/mzieba/client-manager/internal/config"
	"github.com/mzieba/client-manager/internal/httpx"
	"github.com/mzieba/client-manager/internal/models"
	"github.com/mzieba/client-manager/internal/records"
	"github.com/mzieba/client-manager/internal/validate"
)

// App holds the application state, including configuration and AWS clients.
type App struct {
	env   config.Env
	repo  *records.Repo
	blobs *blobio.Store
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
	}
	lambda.Start(app.handler)
}

// ---- Handler ----

func (a *App) handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	if _, err := authz.SubFromRequest(req, a.env.DevBypassAuth); err != nil {
		return httpx.Error(http.StatusUnauthorized, "missing user")
	}

	switch req.RouteKey {
	case "GET /clients":
		return a.list(ctx)
	case "POST /clients":
		return a.create(ctx, req.Body)
	case "GET /clients/{id}":
		return a.get(ctx, req.PathParameters["id"])
	case "PUT /clients/{id}":
		return a.update(ctx, req.PathParameters["id"], req.Body)
	case "DELETE /clients/{id}":
		return a.delete(ctx, req.PathParameters["id"])
	case "DELETE /clients/{id}/documents/{docId}":
		return a.deleteDocument(ctx, req.PathParameters["id"], req.PathParameters["docId"])
	}
	return httpx.Error(http.StatusNotFound, "no such route")
}

func (a *App) list(ctx context.Context) (events.APIGatewayV2HTTPResponse, error) {
	clients, err := a.repo.ListClients(ctx, 100)
	if err != nil {
		log.Printf("clients: list error: %v", err)
		return httpx.Error(http.StatusInternalServerError, "db error")
	}
	return httpx.JSON(http.StatusOK, clients)
}

func (a *App) get(ctx context.Context, id string) (events.APIGatewayV2HTTPResponse, error) {
	c, err := a.repo.GetClient(ctx, id)
	if errors.Is(err, records.ErrNotFound) {
		return httpx.Error(http.StatusNotFound, "client not found")
	}
	if err != nil {
		log.Printf("clients: get %s error: %v", id, err)
		return httpx.Error(http.StatusInternalServerError, "db error")
	}
	return httpx.JSON(http.StatusOK, c)
}

func (a *App) create(ctx context.Context, body string) (events.APIGatewayV2HTTPResponse, error) {
	in, err := parseClientRequest(body)
	if err != nil {
		return httpx.Error(http.StatusBadRequest, err.Error())
	}

	c := models.Client{
		ID:            ulid.Make().String(),
		FirstName:     in.FirstName,
		LastName:      in.LastName,
		Email:         in.Email,
		Phone:         in.Phone,
		IsVIP:         in.IsVIP,
		IsBlacklisted: in.IsBlacklisted,
		Documents:     []models.Document{},
		CreatedAt:     records.NowISO(),
		SchemaVersion: models.ClientSchemaVersion,
		Version:       1,
	}
	applyDenylist(&c)

	if err := a.repo.CreateClient(ctx, c); err != nil {
		log.Printf("clients: create error: %v", err)
		return httpx.Error(http.StatusInternalServerError, "db error")
	}
	return httpx.JSON(http.StatusCreated, c)
}

func (a *App) update(ctx context.Context, id, body string) (events.APIGatewayV2HTTPResponse, error) {
	in, err := parseClientRequest(body)
	if err != nil {
		return httpx.Error(http.StatusBadRequest, err.Error())
	}
	// Without the caller's version the conditional write would compare
	// against the version just read, turning it into a blind overwrite.
	if in.Version == 0 {
		return httpx.Error(http.StatusBadRequest, "version is required")
	}

	c, err := a.repo.GetClient(ctx, id)
	if errors.Is(err, records.ErrNotFound) {
		return httpx.Error(http.StatusNotFound, "client not found")
	}
	if err != nil {
		log.Printf("clients: update read %s error: %v", id, err)
		return httpx.Error(http.StatusInternalServerError, "db error")
	}

	expected := in.Version

	c.FirstName = in.FirstName
	c.LastName = in.LastName
	c.Email = in.Email
	c.Phone = in.Phone
	c.IsVIP = in.IsVIP
	c.IsBlacklisted = in.IsBlacklisted
	now := records.NowISO()
	c.UpdatedAt = &now
	applyDenylist(c)

	err = a.repo.ReplaceClient(ctx, *c, expected)
	if errors.Is(err, records.ErrVersionConflict) {
		return httpx.Error(http.StatusConflict, "client was modified concurrently")
	}
	if err != nil {
		log.Printf("clients: update %s error: %v", id, err)
		return httpx.Error(http.StatusInternalServerError, "db error")
	}
	c.Version = expected + 1
	return httpx.JSON(http.StatusOK, c)
}

func (a *App) delete(ctx context.Context, id string) (events.APIGatewayV2HTTPResponse, error) {
	err := a.repo.DeleteClient(ctx, id)
	if errors.Is(err, records.ErrNotFound) {
		return httpx.Error(http.StatusNotFound, "client not found")
	}
	if err != nil {
		log.Printf("clients: delete %s error: %v", id, err)
		return httpx.Error(http.StatusInternalServerError, "db error")
	}
	return httpx.NoContent(http.StatusNoContent)
}

func (a *App) deleteDocument(ctx context.Context, id, docID string) (events.APIGatewayV2HTTPResponse, error) {
	c, err := a.repo.GetClient(ctx, id)
	if errors.Is(err, records.ErrNotFound) {
		return httpx.Error(http.StatusNotFound, "client not found")
	}
	if err != nil {
		log.Printf("clients: doc delete read %s error: %v", id, err)
		return httpx.Error(http.StatusInternalServerError, "db error")
	}

	i := c.FindDocument(docID)
	if i < 0 {
		return httpx.Error(http.StatusNotFound, "document not found")
	}
	c.Documents = append(c.Documents[:i], c.Documents[i+1:]...)
	now := records.NowISO()
	c.UpdatedAt = &now

	err = a.repo.ReplaceClient(ctx, *c, c.Version)
	if errors.Is(err, records.ErrVersionConflict) {
		return httpx.Error(http.StatusConflict, "client was modified concurrently")
	}
	if err != nil {
		log.Printf("clients: doc delete %s/%s error: %v", id, docID, err)
		return httpx.Error(http.StatusInternalServerError, "db error")
	}
	c.Version++

	// Blob removal is best-effort; the descriptor is already gone.
	if err := a.blobs.Delete(ctx, blobio.DocKey(id, docID)); err != nil {
		log.Printf("clients: doc blob delete %s/%s: %v", id, docID, err)
	}
	return httpx.JSON(http.StatusOK, c)
}

// ---- Helpers ----

// parseClientRequest parses the JSON body and validates all input fields.
func parseClientRequest(body string) (api.ClientRequest, error) {
	var in api.ClientRequest
	if err := json.Unmarshal([]byte(body), &in); err != nil {
		return in, errors.New("invalid json")
	}
	if err := validate.Name(in.FirstName); err != nil {
		return in, err
	}
	if err := validate.Name(in.LastName); err != nil {
		return in, err
	}
	if err := validate.Email(in.Email); err != nil {
		return in, err
	}
	if in.Phone != nil {
		if err := validate.Phone(*in.Phone); err != nil {
			return in, err
		}
	}
	return in, nil
}

// applyDenylist forces the blacklisted flag when the full name matches the
// fixed denylist.
func applyDenylist(c *models.Client) {
	if validate.Denylisted(c.FirstName, c.LastName) {
		t := true
		c.IsBlacklisted = &t
	}
}

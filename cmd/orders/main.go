// Package main serves the order CRUD API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/mzieba/client-manager/internal/api"
	"github.com/mzieba/client-manager/internal/authz"
	"github.com/mzieba/client-manager/internal/awsutil"
	"github.com/mzieba/client-manager/internal/config"
	"github.com/mzieba/client-manager/internal/httpx"
	"github.com/mzieba/client-manager/internal/models"
	"github.com/mzieba/client-manager/internal/records"
)

// App holds the application state, including configuration and AWS clients.
type App struct {
	env  config.Env
	repo *records.Repo
}

func main() {
	env := config.MustLoad()
	cfg, _, err := awsutil.Load(context.Background(), env.Region)
	if err != nil {
		log.Fatal(err)
	}
	app := &App{env: env, repo: &records.Repo{DB: dynamodb.NewFromConfig(cfg), Table: env.Table}}
	lambda.Start(app.handler)
}

func (a *App) handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	if _, err := authz.SubFromRequest(req, a.env.DevBypassAuth); err != nil {
		return httpx.Error(http.StatusUnauthorized, "missing user")
	}

	switch req.RouteKey {
	case "GET /orders":
		return a.list(ctx)
	case "POST /orders":
		return a.create(ctx, req.Body)
	}
	return httpx.Error(http.StatusNotFound, "no such route")
}

func (a *App) list(ctx context.Context) (events.APIGatewayV2HTTPResponse, error) {
	orders, err := a.repo.ListOrders(ctx, 100)
	if err != nil {
		log.Printf("orders: list error: %v", err)
		return httpx.Error(http.StatusInternalServerError, "db error")
	}
	return httpx.JSON(http.StatusOK, orders)
}

func (a *App) create(ctx context.Context, body string) (events.APIGatewayV2HTTPResponse, error) {
	var in api.OrderRequest
	if err := json.Unmarshal([]byte(body), &in); err != nil {
		return httpx.Error(http.StatusBadRequest, "invalid json")
	}

	o := models.Order{
		ID:        fmt.Sprintf("order-%d", time.Now().UnixMilli()),
		ClientID:  in.ClientID,
		Title:     in.Title,
		Amount:    in.Amount,
		CreatedAt: records.NowISO(),
	}
	if err := o.Validate(); err != nil {
		return httpx.Error(http.StatusBadRequest, err.Error())
	}
	if err := a.repo.CreateOrder(ctx, o); err != nil {
		log.Printf("orders: create error: %v", err)
		return httpx.Error(http.StatusInternalServerError, "db error")
	}
	return httpx.JSON(http.StatusCreated, o)
}

package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=arm64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-http
//
// Set OBJECT_STORE=s3 and DATABASE_URL; the local store and in-memory
// batches do not survive between invocations.

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"

	"mailmerge-backend/internal/bootstrap"
	"mailmerge-backend/internal/shared/config"
	"mailmerge-backend/internal/shared/telemetry"
)

const mailCheckTimeout = 10 * time.Second

var (
	initOnce  sync.Once
	initErr   error
	ginLambda *ginadapter.GinLambdaV2
)

func initApp() {
	cfg := config.Load()
	if err := telemetry.Init(cfg.SentryDSN, cfg.Env); err != nil {
		telemetry.Warn("sentry.init_failed", map[string]any{"err": err})
	}
	app, err := bootstrap.Build(cfg)
	if err != nil {
		initErr = err
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), mailCheckTimeout)
	defer cancel()
	_ = app.Dispatcher.Check(ctx)

	ginLambda = ginadapter.NewV2(app.Router)
}

func handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	initOnce.Do(initApp)
	defer telemetry.Flush(2 * time.Second)

	if initErr != nil {
		telemetry.Error("bootstrap.failed", map[string]any{"err": initErr})
		body, _ := json.Marshal(map[string]string{"error": "bootstrap failed"})
		return events.APIGatewayV2HTTPResponse{
			StatusCode: 500,
			Body:       string(body),
			Headers:    map[string]string{"Content-Type": "application/json"},
		}, initErr
	}
	if ginLambda == nil {
		return events.APIGatewayV2HTTPResponse{
			StatusCode: 500,
			Body:       `{"error":"router not initialized"}`,
			Headers:    map[string]string{"Content-Type": "application/json"},
		}, nil
	}
	return ginLambda.ProxyWithContext(ctx, req)
}

func main() {
	lambda.Start(handler)
}

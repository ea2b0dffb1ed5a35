package log_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/ErlanBelekov/marketplace/internal/domain"
	ctxlog "github.com/ErlanBelekov/marketplace/internal/log"
	"github.com/ErlanBelekov/marketplace/internal/requestid"
	"github.com/ErlanBelekov/marketplace/internal/session"
)

func logLine(t *testing.T, ctx context.Context, fields ...ctxlog.Field) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(ctxlog.NewContextHandler(slog.NewJSONHandler(&buf, nil), fields...))
	logger.With("component", "test").WithGroup("g").InfoContext(ctx, "hello")

	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	return out
}

func TestContextHandler_AddsRequestAndUserID(t *testing.T) {
	ctx := requestid.WithRequestID(context.Background(), "req-1")
	ctx = session.WithIdentity(ctx, &domain.Identity{ID: "user-1"})

	line := logLine(t, ctx)
	g, _ := line["g"].(map[string]any)
	if g["request_id"] != "req-1" || g["user_id"] != "user-1" || line["component"] != "test" {
		t.Errorf("line = %v", line)
	}
}

func TestContextHandler_PlainContext(t *testing.T) {
	line := logLine(t, context.Background())
	if _, ok := line["g"]; ok {
		t.Errorf("unexpected context attrs: %v", line)
	}
}

func TestContextHandler_ExplicitFieldsReplaceDefaults(t *testing.T) {
	type tenantKey struct{}
	tenant := func(ctx context.Context) (slog.Attr, bool) {
		v, ok := ctx.Value(tenantKey{}).(string)
		return slog.String("tenant", v), ok
	}
	ctx := context.WithValue(requestid.WithRequestID(context.Background(), "req-1"), tenantKey{}, "acme")

	line := logLine(t, ctx, tenant)
	g, _ := line["g"].(map[string]any)
	if g["tenant"] != "acme" {
		t.Errorf("tenant missing: %v", line)
	}
	if _, ok := g["request_id"]; ok {
		t.Errorf("default request_id kept alongside explicit fields: %v", line)
	}
}

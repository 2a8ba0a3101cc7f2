package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"

	"github.com/baechuer/user-console/middleware"
)

var Log = zerolog.Nop()

func Init() {
	InitWithWriter(os.Stdout)
}

func InitWithWriter(w io.Writer) {
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	format := os.Getenv("LOG_FORMAT") // "json" or "console"
	if format == "" {
		format = "console"
	}

	out := w
	if format != "json" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	lc := zerolog.New(out).With().Timestamp()
	if svc := os.Getenv("SERVICE_NAME"); svc != "" {
		lc = lc.Str("service", svc)
	}
	l := lc.Logger().Level(level)

	Log = l
	zlog.Logger = l
}

// Ctx returns a logger carrying the request id, trace id and session found
// in ctx.
func Ctx(ctx context.Context) *zerolog.Logger {
	lc := Log.With()
	if reqID := middleware.GetRequestID(ctx); reqID != "" {
		lc = lc.Str("request_id", reqID)
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		lc = lc.Str("trace_id", sc.TraceID().String())
	}
	if sess := middleware.GetSession(ctx); sess != nil {
		lc = lc.Str("session", sess.ShortID())
	}
	l := lc.Logger()
	return &l
}

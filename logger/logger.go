// Package logger builds the logrus logger shared by the server and the launcher.
package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	formatter "github.com/antonfisher/nested-logrus-formatter"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type ctxKey struct{}

const RequestIDKey = "request_id"

type Fields = logrus.Fields

type Options struct {
	Level string
	// Env "test" disables the rotating file output.
	Env    string
	LogDir string
	Stderr io.Writer
}

func New(opts Options) *logrus.Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	log.SetFormatter(&formatter.Formatter{
		NoColors:        false,
		TimestampFormat: "02 Jan 06 - 15:04",
		HideKeys:        false,
		CallerFirst:     true,
		CustomCallerFormatter: func(f *runtime.Frame) string {
			s := strings.Split(f.Function, ".")
			funcName := s[len(s)-1]
			return fmt.Sprintf(" \x1b[%dm[%s:%d][%s()]", 34, path.Base(f.File), f.Line, funcName)
		},
	})

	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	writers := []io.Writer{stderr}

	if opts.Env != "test" {
		dir := opts.LogDir
		if dir == "" {
			dir = "./storage/logs"
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   filepath.Join(dir, fmt.Sprintf("app-%s.log", time.Now().Format("2006-01-02"))),
			LocalTime:  true,
			Compress:   true,
			MaxSize:    100,
			MaxAge:     7,
			MaxBackups: 3,
		})
	}

	log.SetOutput(io.MultiWriter(writers...))
	log.SetReportCaller(true)

	return log
}

// ErrorWithTraceID logs msg at error level under a fresh trace id and returns
// the id so it can be handed to the client.
func ErrorWithTraceID(log logrus.FieldLogger, fields Fields, msg string) string {
	traceID := "unknown"
	if id, err := uuid.NewRandom(); err == nil {
		traceID = id.String()
	}

	if fields == nil {
		fields = Fields{}
	}
	fields["trace_id"] = traceID
	log.WithFields(fields).Error(msg)

	return traceID
}

func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, requestID)
}

func RequestIDFrom(ctx context.Context) string {
	if ctx != nil {
		if id, ok := ctx.Value(ctxKey{}).(string); ok && id != "" {
			return id
		}
	}
	return "unknown"
}

func WithRequestID(ctx context.Context, log logrus.FieldLogger) *logrus.Entry {
	return log.WithField(RequestIDKey, RequestIDFrom(ctx))
}

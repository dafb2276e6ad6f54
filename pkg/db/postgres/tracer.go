package postgres

import (
	"context"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5"

	"github.com/mpapenbr/lapviewer-go/log"
)

type myQueryTracer struct {
	log   *log.Logger
	level log.Level
}

var _ pgx.QueryTracer = (*myQueryTracer)(nil)

// NewMyTracer logs every statement with its arguments on level.
func NewMyTracer(l *log.Logger, level log.Level) pgx.QueryTracer {
	return &myQueryTracer{log: l, level: level}
}

// NewOtlpTracer creates spans for queries
func NewOtlpTracer() pgx.QueryTracer {
	return otelpgx.NewTracer(otelpgx.WithIncludeQueryParameters())
}

//nolint:whitespace // can't make both editor and linter happy
func (tracer *myQueryTracer) TraceQueryStart(
	ctx context.Context,
	_ *pgx.Conn,
	data pgx.TraceQueryStartData,
) context.Context {
	if ce := tracer.log.Zap().Check(tracer.level, "Executing"); ce != nil {
		ce.Write(log.String("sql", data.SQL), log.Any("args", data.Args))
	}
	return ctx
}

//nolint:whitespace // can't make both editor and linter happy
func (tracer *myQueryTracer) TraceQueryEnd(
	ctx context.Context,
	conn *pgx.Conn,
	data pgx.TraceQueryEndData,
) {
	if data.Err != nil {
		tracer.log.Debug("query failed", log.ErrorField(data.Err))
	}
}

package pool

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span names are a compatibility surface: downstream dashboards aggregate
// on them, so they must stay stable across versions.
const (
	spanPoolAcquire = "db.pool.acquire"
	spanPoolClose   = "db.pool.close"
	spanTxBegin     = "db.transaction.begin"
	spanTxCommit    = "db.transaction.commit"
	spanTxRollback  = "db.transaction.rollback"
	spanConnPing    = "db.connection.ping"
	spanExec        = "db.exec"
	spanQuery       = "db.query"
)

// Attribute keys are equally stable. Keys follow the OpenTelemetry
// database semantic conventions where one exists.
const (
	attrDBSystem     = "db.system.name"
	attrDBName       = "db.name"
	attrPeerService  = "peer.service"
	attrNetPeerName  = "net.peer.name"
	attrNetPeerPort  = "net.peer.port"
	attrDBOperation  = "db.operation"
	attrQueryText    = "db.query.text"
	attrReturnedRows = "db.response.returned_rows"
	attrAffectedRows = "db.response.affected_rows"
	attrStatusCode   = "db.response.status_code"
	attrErrorType    = "error.type"
	attrErrorMessage = "error.message"
)

// baseAttributes returns the descriptive attributes shared by every span
// the pool emits. Unset fields are omitted, not recorded empty.
func (cfg *config) baseAttributes() []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 5)
	if s := cfg.Backend.String(); s != "" {
		attrs = append(attrs, attribute.String(attrDBSystem, s))
	}
	if cfg.Target.Database != "" {
		attrs = append(attrs, attribute.String(attrDBName, cfg.Target.Database))
	}
	if cfg.Target.Name != "" {
		attrs = append(attrs, attribute.String(attrPeerService, cfg.Target.Name))
	}
	if cfg.Target.Host != "" {
		attrs = append(attrs, attribute.String(attrNetPeerName, cfg.Target.Host))
	}
	if cfg.Target.Port != 0 {
		attrs = append(attrs, attribute.Int(attrNetPeerPort, cfg.Target.Port))
	}
	return attrs
}

// queryAttributes returns the attributes for a full-weight (SQL-executing)
// span: the base set plus the operation and, when enabled, the query text.
func (cfg *config) queryAttributes(sql string) []attribute.KeyValue {
	attrs := cfg.baseAttributes()

	if op := extractOperation(sql); op != "" {
		attrs = append(attrs, attribute.String(attrDBOperation, op))
	}
	if cfg.RecordQueryText && sql != "" {
		attrs = append(attrs, attribute.String(attrQueryText, sql))
	}

	return attrs
}

// startOpSpan starts a lightweight span for a lifecycle operation
// (acquire, close, begin, commit, rollback, ping). Lightweight spans
// never carry query text or row counts.
func (cfg *config) startOpSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return cfg.Tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(cfg.baseAttributes()...),
	)
}

// startQuerySpan starts a full-weight span for a SQL-executing operation.
func (cfg *config) startQuerySpan(ctx context.Context, name, sql string) (context.Context, trace.Span) {
	return cfg.Tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(cfg.queryAttributes(sql)...),
	)
}

// recordSpanError classifies err and attaches the failure outcome to the
// span. The kind and backend status code are always recorded; the message
// is gated by the error-detail toggle so aggregate observability survives
// environments where detail recording is off.
func recordSpanError(span trace.Span, err error, recordDetail bool) {
	kind, code := Classify(err)
	span.SetAttributes(attribute.String(attrErrorType, kind.String()))
	if code != "" {
		span.SetAttributes(attribute.String(attrStatusCode, code))
	}
	if recordDetail {
		span.SetAttributes(attribute.String(attrErrorMessage, err.Error()))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Error, kind.String())
}

// extractOperation extracts the SQL operation (first word) from a query.
// Returns the uppercase operation name or "" for an empty query. Used for
// the db.operation span attribute; span names themselves stay fixed per
// operation kind.
func extractOperation(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return ""
	}

	spaceIdx := strings.IndexAny(query, " \t\n\r")
	if spaceIdx == -1 {
		return strings.ToUpper(query)
	}

	return strings.ToUpper(query[:spaceIdx])
}

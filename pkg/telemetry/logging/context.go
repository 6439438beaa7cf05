package logging

import (
	"context"
	"log/slog"
)

type contextKey string

const (
	DossierIDKey    contextKey = "dossier_id"
	EvaluationIDKey contextKey = "evaluation_id"
	RuleCodeKey     contextKey = "rule_code"
	CatalogKey      contextKey = "catalog_version"
)

// fieldKeys lists the context keys copied into log records, in output order.
var fieldKeys = []contextKey{DossierIDKey, EvaluationIDKey, RuleCodeKey, CatalogKey}

// WithDossierID adds a dossier id to ctx.
func WithDossierID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, DossierIDKey, id)
}

// WithEvaluationID adds an evaluation id to ctx.
func WithEvaluationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, EvaluationIDKey, id)
}

// WithRuleCode adds a rule code to ctx.
func WithRuleCode(ctx context.Context, code string) context.Context {
	return context.WithValue(ctx, RuleCodeKey, code)
}

// WithCatalogVersion adds the catalog version to ctx.
func WithCatalogVersion(ctx context.Context, version string) context.Context {
	return context.WithValue(ctx, CatalogKey, version)
}

// DossierID returns the dossier id of ctx, if any.
func DossierID(ctx context.Context) string {
	id, _ := ctx.Value(DossierIDKey).(string)
	return id
}

// contextFields returns the context values as slog attributes.
func contextFields(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr
	for _, k := range fieldKeys {
		if v, ok := ctx.Value(k).(string); ok && v != "" {
			attrs = append(attrs, slog.String(string(k), v))
		}
	}
	return attrs
}

// contextHandler adds context fields to records logged with a context.
type contextHandler struct {
	slog.Handler
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if ctx != nil {
		r.AddAttrs(contextFields(ctx)...)
	}
	return h.Handler.Handle(ctx, r)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithGroup(name)}
}

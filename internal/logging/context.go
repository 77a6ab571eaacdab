package logging

import (
	"context"

	"go.uber.org/zap"
)

type orchestrationCtxKey struct{}
type projectCtxKey struct{}

// WithOrchestrationID tags ctx with the id of the orchestration run.
func WithOrchestrationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, orchestrationCtxKey{}, id)
}

// OrchestrationIDFromContext returns the run id stored in ctx, or "".
func OrchestrationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(orchestrationCtxKey{}).(string)
	return id
}

// WithProjectID tags ctx with the business context project id.
func WithProjectID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, projectCtxKey{}, id)
}

// ProjectIDFromContext returns the project id stored in ctx, or "".
func ProjectIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(projectCtxKey{}).(string)
	return id
}

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	if ctx == nil {
		return nil
	}
	fields := make([]zap.Field, 0, 2)
	if id := OrchestrationIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("orchestration.id", id))
	}
	if id := ProjectIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("project.id", id))
	}
	return fields
}

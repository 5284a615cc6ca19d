package ports

import "context"

// Logger is the leveled logging seam shared by the decision engine, the
// adapters and the app service. Fields are an optional single map of
// structured key/value pairs; Error additionally carries the causing error.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...map[string]interface{})
	Info(ctx context.Context, msg string, fields ...map[string]interface{})
	Warn(ctx context.Context, msg string, fields ...map[string]interface{})
	Error(ctx context.Context, err error, msg string, fields ...map[string]interface{})
}

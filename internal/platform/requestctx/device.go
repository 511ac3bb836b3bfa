package requestctx

import "context"

// deviceIDContextKey is the context key for the device bound to an access token.
type deviceIDContextKey struct{}

// WithDeviceID stores a device identifier in context.
func WithDeviceID(ctx context.Context, deviceID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, deviceIDContextKey{}, deviceID)
}

// DeviceIDFromContext returns the device identifier stored in context.
func DeviceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(deviceIDContextKey{}).(string)
	return value
}

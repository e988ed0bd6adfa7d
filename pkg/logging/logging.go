/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package logging carries a zap.Logger through context.Context, the way the
// control loop threads a request-scoped logger through every collaborator
// without passing it as an explicit argument down every call chain.
package logging

import (
	"context"

	"go.uber.org/zap"
)

type contextKey struct{}

// NewContext returns a context carrying logger, retrievable with FromContext.
func NewContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the logger stored in ctx, or zap.L() if none was
// stored.
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(contextKey{}).(*zap.Logger); ok {
		return logger
	}
	return zap.L()
}

// WithFleet returns a child context whose logger carries the sector, size
// and fleet fields every actuation log line needs.
func WithFleet(ctx context.Context, sector string, size string, fleetID string) context.Context {
	logger := FromContext(ctx).With(
		zap.String("sector", sector),
		zap.String("size", size),
		zap.String("fleet_id", fleetID),
	)
	return NewContext(ctx, logger)
}

// Copyright 2026 © The Docket Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"time"

	"github.com/jllopis/docket/pkg/health"
)

// BackendHealthChecker reports the backend liveness probe as a health check.
func BackendHealthChecker(b Backend) health.Checker {
	return health.CheckerFunc(func(ctx context.Context) health.Result {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := b.Ping(ctx); err != nil {
			return health.Result{Status: health.StatusUnhealthy, Message: err.Error()}
		}
		return health.Result{Status: health.StatusHealthy, Message: "backend reachable"}
	})
}

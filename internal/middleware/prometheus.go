package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/questx-lab/coursechat/internal/common"
	"github.com/questx-lab/coursechat/pkg/errorx"
	"github.com/questx-lab/coursechat/pkg/router"
	"github.com/questx-lab/coursechat/pkg/xcontext"
)

func WithStartTime() router.MiddlewareFunc {
	return func(ctx context.Context) (context.Context, error) {
		return xcontext.WithStartTime(ctx, time.Now()), nil
	}
}

// Prometheus counts requests by their route pattern and errorx code, 0 being
// a success and -1 an error out of errorx.
func Prometheus() router.CloserFunc {
	return func(ctx context.Context) {
		code := 0
		if err := xcontext.Error(ctx); err != nil {
			var errx errorx.Error
			if errors.As(err, &errx) {
				code = int(errx.Code)
			} else {
				code = -1
			}
		}

		// The pattern keeps path values like room names out of the labels.
		path := xcontext.HTTPRequest(ctx).Pattern
		status := fmt.Sprint(code)

		common.PromCounters[common.HTTPRequestTotal].WithLabelValues(path, status).Inc()

		if startTime := xcontext.StartTime(ctx); !startTime.IsZero() {
			common.PromHistograms[common.HTTPRequestDurationSeconds].
				WithLabelValues(path, status).Observe(time.Since(startTime).Seconds())
		}
	}
}

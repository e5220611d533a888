// Logging for RxGo
// 包级日志
package rxgo

import (
	"context"

	"github.com/puppetlabs/leg/logging"
)

var (
	logger = logging.Builder().At("rxgo")
)

func log(ctx context.Context) logging.Logger {
	return logger.With(ctx).Build()
}

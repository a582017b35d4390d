package ring

import (
	"fmt"

	"github.com/maczac150/RingOA-dev-sub002/internal/errs"
)

func errConfig(format string, args ...any) error {
	return fmt.Errorf("ring: "+format+": %w", append(args, errs.ErrConfiguration)...)
}

func errTransport(format string, args ...any) error {
	return fmt.Errorf("ring: "+format+": %w", append(args, errs.ErrTransport)...)
}

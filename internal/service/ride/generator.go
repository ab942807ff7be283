package ride

import (
	"context"
	"fmt"
	"time"

	wrap "github.com/askhat-b/taxi-dispatch/pkg/logger/wrapper"
)

// generateRideNumber produces the human-readable reference shown to riders
// and drivers, scoped per day.
func (s *Service) generateRideNumber(ctx context.Context) (string, error) {
	now := time.Now()
	datePart := now.Format("20060102")

	count, err := s.rides.CountByDate(ctx, now)
	if err != nil {
		return "", wrap.Error(ctx, err)
	}
	return fmt.Sprintf("RIDE_%s_%03d", datePart, count+1), nil
}

package fmc

import (
	"fmt"
	"time"
)

// Refresh timer reload limits. COUNT is 13 bits wide and the reference
// manual requires at least 41.
const (
	MinRefreshCount = 41
	MaxRefreshCount = 8191

	// refreshMargin is subtracted from the ideal reload value so that an
	// internal refresh request never waits behind an ongoing read burst.
	refreshMargin = 20

	// DefaultRefreshCount is used when a board does not give a reload value.
	// It exceeds MaxRefreshCount: shifted into SDRTR it leaves COUNT at 4 and
	// sets REIE (0x4008). Boards relying on it refresh far too often.
	DefaultRefreshCount = 8196
)

// RefreshCount computes the SDRTR reload value for a device that needs rows
// refreshes every period with an SDRAM clock of sdclkHz:
//
//	count = period / rows * f_SDCLK - 20
func RefreshCount(period time.Duration, rows uint32, sdclkHz uint64) (uint32, error) {
	if period <= 0 || rows == 0 || sdclkHz == 0 {
		return 0, fmt.Errorf("%w: refresh period %v, %d rows, SDCLK %d Hz", ErrInvalidConfig, period, rows, sdclkHz)
	}
	cycles := uint64(period.Nanoseconds()) * sdclkHz / (uint64(rows) * uint64(time.Second))
	if cycles < MinRefreshCount+refreshMargin || cycles-refreshMargin > MaxRefreshCount {
		return 0, fmt.Errorf("%w: refresh count %d outside %d-%d", ErrInvalidConfig,
			int64(cycles)-refreshMargin, MinRefreshCount, MaxRefreshCount)
	}
	return uint32(cycles - refreshMargin), nil
}

// Package mjd converts between Unix time and the Modified Julian Day
// decomposition (integer day, integer second-of-day, fractional-second
// offset) that the status dictionary's STT_IMJD/STT_SMJD/STT_OFFS fields
// use.
package mjd

import (
	"math"
	"time"
)

// unixEpochMJD is the Modified Julian Day of 1970-01-01T00:00:00Z.
const unixEpochMJD = 40587

const secondsPerDay = 86400

// FromUnix decomposes t into (integer MJD, integer second-of-day, fractional
// second offset), rounding the second-of-day to the nearest whole second the
// same way the original rounds its timespec before taking the MJD, with the
// remainder carried into the fractional offset.
func FromUnix(t time.Time) (imjd uint32, smjd uint32, offs float64) {
	sec := t.Unix()
	nsec := t.Nanosecond()

	// Round to the nearest second, keeping the remainder as offs, mirroring
	// the original's rint()-then-remainder split of realtime_secs.
	frac := float64(nsec) / 1e9
	if frac >= 0.5 {
		sec++
		frac -= 1.0
	}

	days := sec / secondsPerDay
	secOfDay := sec % secondsPerDay
	if secOfDay < 0 {
		secOfDay += secondsPerDay
		days--
	}

	return uint32(unixEpochMJD + days), uint32(secOfDay), frac
}

// ToUnix reconstructs an approximate time.Time from an MJD decomposition.
// Used by tests to round-trip FromUnix.
func ToUnix(imjd, smjd uint32, offs float64) time.Time {
	days := int64(imjd) - unixEpochMJD
	sec := days*secondsPerDay + int64(smjd)
	whole := math.Trunc(offs)
	nsec := (offs - whole) * 1e9
	return time.Unix(sec+int64(whole), int64(nsec)).UTC()
}

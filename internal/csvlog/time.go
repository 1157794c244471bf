package csvlog

import "time"

// timeNowRFC returns the current time formatted as YYYYMMDD-HHMMSS, the
// rolling-file naming prefix.
func timeNowRFC() string {
	return time.Now().Format("20060102-150405")
}

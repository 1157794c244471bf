package serialport

import "path/filepath"

// candidatePatterns lists the glob patterns checked, in order, when no
// explicit device path is configured.
var candidatePatterns = []string{
	"/dev/ttyUSB*",
	"/dev/ttyACM*",
	"/dev/cu.usbserial*",
	"/dev/cu.usbmodem*",
}

// EnumeratePorts lists candidate serial device paths to try during connect.
// It is a package variable so tests can substitute a fixed list.
var EnumeratePorts = defaultEnumeratePorts

func defaultEnumeratePorts() ([]string, error) {
	var all []string
	for _, pattern := range candidatePatterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			continue
		}
		all = append(all, matches...)
	}
	return all, nil
}

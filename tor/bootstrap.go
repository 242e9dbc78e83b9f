package tor

import (
	"strconv"
	"strings"
)

// parseBootstrapPercent extracts the PROGRESS=NN value from a bootstrap
// phase line, returning -1 if the line carries no parseable progress.
func parseBootstrapPercent(phase string) int {
	const marker = "PROGRESS="
	idx := strings.Index(phase, marker)
	if idx < 0 {
		return -1
	}
	rest := phase[idx+len(marker):]
	end := strings.IndexAny(rest, " \t")
	if end >= 0 {
		rest = rest[:end]
	}
	pct, err := strconv.Atoi(rest)
	if err != nil {
		return -1
	}
	return pct
}

// BootstrapPhase is the sum type { Done | Other(phase_string) } a status
// query resolves to: Done iff the last phase report carries TAG=done, else
// Other holding the trimmed phase string.
type BootstrapPhase struct {
	Done  bool
	Other string
}

// parseBootstrapStatus classifies a raw "status/bootstrap-phase" reply into
// a BootstrapPhase.
func parseBootstrapStatus(phase string) BootstrapPhase {
	if strings.Contains(phase, "TAG=done") {
		return BootstrapPhase{Done: true}
	}
	return BootstrapPhase{Other: strings.TrimSpace(phase)}
}

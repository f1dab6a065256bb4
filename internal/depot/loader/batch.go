package loader

import (
	log "github.com/sirupsen/logrus"
)

// DefaultMaxBoundParams is the bind-parameter ceiling of a single statement
// on the store's wire protocol.
const DefaultMaxBoundParams = 32766

// SafeBatchSize computes the rows-per-statement that keeps a multi-row insert
// under the bind-parameter ceiling, with a 10% safety margin. A preferred
// batch size above the safe bound is clamped down; the clamp is logged rather
// than surfaced, since it never affects correctness.
func SafeBatchSize(maxParams, columnCount, preferred int) int {
	safe := int(float64(maxParams/columnCount) * 0.9)
	if safe < 1 {
		safe = 1
	}
	if preferred <= 0 {
		return safe
	}
	if preferred > safe {
		log.Warnf(
			"preferred batch size %d exceeds safe batch size %d for %d columns and a ceiling of %d parameters, clamping",
			preferred, safe, columnCount, maxParams)
		return safe
	}
	return preferred
}

// Package testhelpers provides shared test utilities.
package testhelpers

import (
	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/logger"
)

// NewTestLogger returns a logger that discards all output.
func NewTestLogger() logger.Logger {
	return logger.NewNopLogger()
}

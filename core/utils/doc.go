// Package utils holds small value-conversion helpers shared by the upstream
// client and the reconciliation engine: loose integer/string conversion,
// timestamp normalization and canonical comparison values.
package utils

// Package logger provides a structured logging facility based on Zap.
//
// It offers a configured logger instance that supports different environments
// (development vs production) and helpers that scope log entries to a
// reconciliation run or to an HTTP request.
//
// # Context Awareness
//
// WithRun attaches run_id, entity and season fields so every line emitted during
// one reconciliation run can be correlated. WithRayID extracts the RayID from a
// Fiber context for the status API.
//
// # Usage
//
//	log, _ := logger.New(&logger.Config{Level: "info"})
//	runLog := logger.WithRun(log, runID, "teams", 2025)
//	runLog.Warn("duplicate natural key", zap.String("key", "19458"))
package logger

// Package logger provides the structured logging interface used across amosync.
//
// It wraps zerolog with pretty console output on stderr, optional JSON file
// output and a process-wide logger for components constructed without one.
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//		return err
//	}
//	log := logger.GetLogger().WithField("camera_id", 65)
//	log.InfoWithFields("Month merged", map[string]interface{}{"year": 2016, "month": 1})
//
// Tests use NewNopLogger or NewTestLogger, which records every call for assertions.
package logger

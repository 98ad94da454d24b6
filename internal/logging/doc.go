// Package logging provides structured logging for alignment runs.
//
// It wraps log/slog with a JSON handler. Child loggers carry run, worker
// and device attributes so that entries from concurrent workers can be
// filtered after the fact.
//
// # Basic Usage
//
//	logger, err := logging.NewLoggerWithRotation("/var/log/pciam", "INFO", logging.DefaultRotationConfig())
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	wlog := logger.WithRun("run-7").WithWorker(2).WithDevice(1)
//	wlog.Info("worker running", "peers", 3)
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"worker running","run_id":"run-7","worker_id":2,"device_id":1,"peers":3}
//
// # Log Rotation
//
// [NewLoggerWithRotation] writes through a [RotatingWriter]. Rotated files
// are named pciam.log.1 (newest) through pciam.log.N, with a .gz suffix
// when compression is enabled.
//
// All types in this package are safe for concurrent use. Child loggers share
// the parent's writer, and closing any of them closes it for all.
package logging

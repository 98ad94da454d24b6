// Package worker implements the per-device alignment worker.
//
// A [Worker] owns one device's compute stream, a staging buffer sized for
// one tile's frequency-domain payload and a correlation-matrix buffer sized
// for one tile. It pulls tasks from a shared inbound queue, correlates each
// tile with its neighbor (staging the neighbor first when it lives on a
// device without peer access), and forwards one bookkeeping task and one
// CCF task per alignment request.
//
// # Lifecycle
//
//	INITIALIZING -> RUNNING -> DRAINING -> TERMINATED
//
// Running out of device memory while initializing goes straight to
// TERMINATED after escalating through the configured [fatal.Escalator].
//
// # Shutdown
//
// Workers stop cooperatively. A worker leaves its loop when it dequeues a
// Cancel or Sentinel task, when its context ends, or when the run's
// bookkeeping stage is done and the inbound queue is empty. Whatever the
// reason, it posts exactly one Sentinel to the inbound queue before
// releasing its resources, so N workers sharing a queue drain each other
// and exactly N sentinels are posted.
//
// The completion signal is held by a [Run], created once per pipeline run
// and shared by every worker of that run.
package worker

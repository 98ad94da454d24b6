// Package event provides a pub-sub event bus for observing an alignment
// run without coupling observers to the worker pool.
//
// # Main Types
//
//   - [Event]: Interface that all events implement, providing EventType() and Timestamp()
//   - [Bus]: Synchronous pub-sub dispatcher, safe for concurrent use
//   - [Handler]: Function type for event handlers (func(Event))
//
// # Event Categories
//
// Pool lifecycle:
//   - [PoolStartedEvent], [PoolStoppedEvent]
//
// Worker activity:
//   - [WorkerStateChangedEvent]: INITIALIZING, RUNNING, DRAINING, TERMINATED transitions
//   - [StagedTransferEvent]: A non-peer neighbor was copied into the staging buffer
//   - [AlignmentCompletedEvent]: Peaks for one tile pair were forwarded
//   - [SentinelPostedEvent]: A sentinel was placed on a queue
//   - [ResourceExhaustedEvent]: A worker could not allocate device memory
//
// Handlers run synchronously on the publishing goroutine, which is usually a
// worker. A slow handler slows the pipeline.
package event

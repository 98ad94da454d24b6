// Package task defines the messages that flow between pipeline stages.
//
// A [Task] is a tagged union: its [Kind] selects which fields are meaningful.
// Bulk work ([KindAlignment]) and control signals ([KindCancel],
// [KindSentinel], [KindBookkeepingDone]) travel through the same queues, so
// ordering between them is decided by [Less]. Control signals always sort
// ahead of bulk work so a worker blocked behind a deep backlog still sees
// cancellation on its next dequeue.
//
// Derived tasks ([KindBookkeepingCheck], [KindCCF]) are produced by alignment
// workers and consumed by the bookkeeping and CCF stages.
package task

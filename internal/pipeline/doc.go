// Package pipeline runs a pool of alignment workers, one per device, over
// three shared queues.
//
// A [Pool] owns the inbound, bookkeeping and ccf queues and the [worker.Run]
// shared by its workers. Producers submit alignment requests with
// [Pool.Submit]; the bookkeeping stage reports that it will produce no more
// work with [Pool.BookkeepingDone]; anyone may abort with [Pool.Cancel].
// [Pool.Wait] blocks until every worker has terminated and then posts a
// sentinel to each downstream queue so their consumers stop.
//
// [Execute] wires a pool to a stand-in bookkeeping stage, which signals
// completion once every request has been checked, and to a CCF consumer
// callback. [BuildGrid] and [Requests] produce a rectangular tile grid and
// its NORTH and WEST alignment requests.
package pipeline

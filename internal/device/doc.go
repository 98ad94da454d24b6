// Package device abstracts the GPU driver operations the alignment pipeline
// relies on: context binding, peer-access discovery, device memory, streams,
// and asynchronous device-to-device copies.
//
// # Driver
//
// [Driver] is the interface workers program against. Handles ([Context],
// [Buffer], [Stream]) are small comparable values; they carry the owning
// device id so callers can reason about placement without asking the driver.
//
// Allocation failures caused by exhausted device memory wrap [ErrOutOfMemory].
// Enabling peer access that is already enabled wraps
// [ErrPeerAccessAlreadyEnabled]; callers building a topology treat that as
// success.
//
// # Simulator
//
// [Sim] is an in-process implementation backed by host slices. It enforces a
// per-device memory budget, honours a configurable peer-access matrix, and
// counts every allocation, release, stream and copy so tests can check
// resource symmetry and staging behaviour. A simulator topology can be read
// from YAML with [LoadTopologyFile]:
//
//	devices:
//	  - id: 0
//	    memory_mb: 512
//	    peers: [1]
//	  - id: 1
//	    memory_mb: 512
//	    peers: [0]
//	  - id: 2
//	    memory_mb: 256
package device

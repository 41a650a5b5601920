// ABOUTME: Package documentation for the engine core
// ABOUTME: Real-time event scheduling, buffering, and graph compilation

// Package engine implements the real-time core that sits between a host
// render callback and the rest of the signal path: a lock-free SPSC ring
// buffer for crossing the control/render boundary, a priority event queue,
// a sample-accurate scheduler, an adaptive buffer-size controller, and an
// audio graph compiler.
//
// Two execution contexts are assumed. The control context may allocate,
// log, and fail loudly. The render context must complete each block within
// one block period: nothing in it allocates, locks, or blocks. The ring
// buffer is the only sanctioned channel between the two, and it supports
// exactly one writer and one reader.
//
// The engine never decides what to play. It delivers pre-built events at
// the right sample positions, in a deterministic order, and tells the host
// when the block size should change.
package engine

// Package rma provides one-sided (remote memory access) communication
// between the ranks of a solver run.
//
// A Comm is one rank's communicator. Windows created from it expose a
// rank's grid for remote Get operations, synchronised either collectively
// with Fence or with scoped post/start/complete/wait (PSCW) epochs against
// explicit groups of ranks.
//
// The synchronisation state machine lives here; moving bytes and signals
// between ranks is delegated to a Transport. NewLocalWorld wires ranks that
// live in one process (one goroutine per rank). Package grpcnet provides a
// Transport for one process per rank.
//
// Protocol violations that can be detected locally (a Get outside an
// epoch, a double Post, an empty group) return sentinel errors. Violations
// that cannot, such as a rank skipping a collective call, block until the
// context passed to the blocking call is cancelled.
package rma

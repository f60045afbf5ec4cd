// Package endpoint implements the device-side link layer of USB 2.0
// stream endpoints: the components that move a framed byte or word
// stream between an application and the USB transaction layer while
// enforcing packetization, flow control, and DATA PID sequencing.
//
// # Architecture
//
// Three endpoint flavors are provided:
//
//   - [StreamOut] receives OUT packets from the host, validates the
//     DATA PID sequence, buffers payload through a transactional skid
//     buffer gated on packet integrity, and exposes a backpressured
//     consumer stream
//   - [StreamIn] transmits a framed byte stream to the host, with
//     automatic zero-length-packet termination of maximal transfers
//   - [MultibyteIn] wraps [StreamIn] with a shift-register adapter
//     that serializes multi-byte words in little-endian order
//
// # Execution model
//
// Every endpoint is a synchronous state machine advanced by Tick: one
// call corresponds to one clock edge. Outputs are computed as a pure
// function of the state registered before the call and the current
// inputs; all state mutations apply afterwards, so a handshake
// decision never observes effects of the event it is deciding. There
// are no goroutines and no locks; backpressure is expressed solely by
// deasserting ready or valid for a tick.
//
// # Configuration
//
// Endpoints are built from a validated [Config]; structural
// misconfiguration (a buffer smaller than one max packet, an endpoint
// number above 15) is rejected at construction, never at runtime. All
// configuration is immutable for the life of the endpoint; Reset
// returns an endpoint to its initial state without altering it.
package endpoint

// Package testing provides a scripted, in-memory socket for deterministic
// tests of the RTSP control channel.
//
// # Overview
//
// [SimulatedSocket] implements interfaces.ISocket without a network. Tests
// queue the exact sequence of inbound events a non-blocking socket could
// produce (data arriving in arbitrary fragments, would-block turns, hard
// errors, an orderly close) and inspect every byte the code under test sent.
//
//	sock := testsim.NewSimulatedSocket()
//	sock.FeedBytewise(frame) // one byte per turn, would-block between bytes
//	n, err := reader.ReadBlock(buf)
//
// Send behaviour is scripted as well: short sends (SetSendChunk), transient
// would-block (SetSendWouldBlock) and hard failures after a byte budget
// (FailSendAfter).
//
// The package is named testing after its role; import it under an alias:
//
//	import testsim "github.com/opd-ai/airtunes/testing"
package testing

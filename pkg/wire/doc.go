// Package wire implements the JSON wire envelope for Reliwire.
//
// Every transport message carries exactly one JSON object:
//
//	{
//	  "type":        "note" | "noteAck" | "request" | "requestAck" |
//	                 "response" | "responseAck" | "ping" | "pong" | "error",
//	  "stamp":       "v4 UUID",        // required except ping/pong/error
//	  "data":        <any JSON>,       // opaque payload
//	  "sendAck":     true,             // note/request/response only
//	  "failureCode": 0                 // response only, 0 = success
//	}
//
// The stamp correlates a note or request with its acknowledgement and,
// for requests, with the eventual response. It carries 128 bits of
// entropy formatted as a v4 UUID, so stamp collisions are treated as
// impossible for the lifetime of a connection.
//
// Heartbeat ping/pong messages carry a monotonically increasing integer
// sequence number in "data" instead of a stamp.
//
// # Validation
//
// Decode enforces the structural rules above and fails on undecodable
// input or a missing type field. Validate additionally checks raw
// messages against an embedded JSON Schema; it is meant for peers that
// want to reject loosely conforming traffic before it reaches the
// dispatcher.
package wire

// Package protocol defines the newline-delimited text protocol spoken between
// the device and its host: commands flowing in, status and event lines flowing out.
//
// Inbound commands are case-sensitive tokens with trailing whitespace ignored.
// Outbound lines are comma-separated, the first field naming the message.
package protocol

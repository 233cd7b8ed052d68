// Package link provides the byte-link abstraction the hub core is built on.
//
// A Link is a minimal capability (read, write, close, read deadline) over
// one serial port or one TCP connection. The protocol engines (xfer, bridge)
// and the session supervisor depend only on this interface, never on a
// specific serial library's types.
//
// The package also implements the port registry: it opens every configured
// physical port at startup, reports absent hardware as skipped rather than
// fatal, and tracks live ownership so a port can be surrendered to a
// COM-bridge takeover and later returned.
package link

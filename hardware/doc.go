// Package hardware defines the transport boundary between instrument
// drivers and physical device connections. Drivers speak their device
// protocol (command strings, framing, terminators) through the Adapter
// interface without knowing whether bytes travel over a serial port, a TCP
// socket, or a scripted mock.
//
// Adapters are deliberately dumb: no protocol knowledge, no retry policy,
// no response parsing. All of that lives in the driver. An adapter is owned
// by exactly one instrument and is not safe for concurrent use; the owning
// driver serializes access behind its own mutex.
package hardware

// Package drivers contains the concrete instrument implementations: the
// ESP300 linear stage controller, the ELL14 rotary mount, the Newport
// 1830-C optical power meter, the Mai Tai tunable laser, and a simulated
// camera for pipelines without hardware.
//
// Every driver follows the same shape: a device struct embedding the shared
// state machine, an internal mutex serializing access to the single
// hardware adapter, and a per-instrument measurement feed the acquisition
// loop publishes into. Drivers register themselves through RegisterAll.
package drivers

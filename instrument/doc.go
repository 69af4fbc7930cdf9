// Package instrument defines the capability-based abstraction every device
// driver implements: the lifecycle state machine, the closed command set,
// the base Instrument interface, orthogonal capability interfaces (Camera,
// Stage, PowerSensor, TunableSource), and the factory registry the Manager
// builds instruments from.
//
// # Lifecycle
//
// Every instrument moves through the same state machine:
//
//	Disconnected → Connecting → Ready ⇄ Acquiring
//	                     ↘ Error(recoverable?) → Ready (via Recover)
//	any state → ShuttingDown → Disconnected
//
// State transitions are driven exclusively by the owning instrument task;
// other components only read Status.
//
// # Capabilities
//
// Capability interfaces extend the base without the Manager knowing about
// them. The Manager is written purely against Instrument; code that needs a
// capability asserts for it at the call site:
//
//	if stage, ok := inst.(instrument.Stage); ok {
//	    err = stage.MoveAbsolute(ctx, 12.5)
//	}
//
// The same Stage interface drives controllers with entirely different wire
// protocols and physical units (millimeters, degrees); see the drivers
// package for the two reference implementations.
//
// Query methods (Status, Position, Moving) never require the caller to own
// the instrument exclusively: concrete drivers guard their single physical
// connection with an internal mutex shared by reads and writes, so a
// settling poll can run while a command is in flight.
package instrument

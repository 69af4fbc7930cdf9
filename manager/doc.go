// Package manager supervises instrument tasks: one goroutine per
// instrument owning all hardware interaction for that device, a bounded
// command channel in front of it, and a supervisor that reaps exited tasks
// and respawns crashed ones.
//
// The manager is the only component that creates instruments. Spawn builds
// the adapter and driver from the registry, starts the task, and bridges
// the instrument's measurement feed into the manager's shared distributor,
// so downstream consumers subscribe in one place regardless of which
// instrument produced the data.
//
// Commands are routed through SendCommand with an explicit timeout. A
// command queued behind a crashed task fails with ErrNotFound rather than
// hanging; a command that outlives its timeout fails with ErrTimeout while
// the instrument keeps processing it.
package manager

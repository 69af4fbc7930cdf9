// Package daqstreams is a runtime for laboratory data acquisition,
// combining a capability-based instrument abstraction with supervised
// concurrent control and fan-out measurement distribution.
//
// # Architecture
//
// The runtime has three cooperating layers:
//
//	┌─────────────────────────────────────┐
//	│            Manager                  │  One goroutine per instrument
//	│  (spawn, command routing, respawn)  │  Lifecycle supervision
//	└─────────────────────────────────────┘
//	           ↓ owns
//	┌─────────────────────────────────────┐
//	│          Instruments                │  Stages, cameras, sensors,
//	│  (drivers behind capability APIs)   │  tunable sources
//	└─────────────────────────────────────┘
//	           ↓ publish via
//	┌─────────────────────────────────────┐
//	│          Distributor                │  Non-blocking fan-out,
//	│   (subscriptions, drop accounting)  │  per-subscriber buffers
//	└─────────────────────────────────────┘
//
// Every instrument implements the base instrument.Instrument interface:
// identity, state, initialization, shutdown, command execution, and a
// measurement feed. Devices with richer abilities additionally satisfy
// capability interfaces (instrument.Stage, instrument.Camera,
// instrument.PowerSensor, instrument.TunableSource). Callers discover
// capabilities with type assertions, so orchestration code written
// against Stage works unchanged whether the hardware moves in
// millimeters or degrees.
//
// The manager runs each instrument in its own goroutine. Commands are
// serialized through a per-instrument queue, so drivers never see
// concurrent mutation. Crashed tasks are reaped and optionally
// respawned, and in-flight commands against a dead task fail fast
// instead of hanging. Shutdown is parallel across instruments with a
// per-instrument time budget.
//
// Measurements flow through measurement.Distributor: publishers never
// block, slow subscribers lose their oldest samples first, and drops
// are counted per subscriber. Each driver owns a distributor for its
// direct subscribers; the manager bridges every feed into one shared
// distributor for whole-system consumers.
//
// # Packages
//
// Core:
//   - instrument: base and capability interfaces, lifecycle states,
//     command/response types, factory registry
//   - manager: supervised instrument tasks, command routing, shutdown
//   - measurement: measurement types and the fan-out distributor
//
// Hardware:
//   - hardware: transport adapters (serial-style line protocols) and
//     the scriptable mock adapter used in tests
//   - drivers: instrument drivers (esp300, ell14, newport1830c,
//     maitai, simcam)
//
// Infrastructure:
//   - config: YAML configuration loading and validation
//   - errors: structured error handling with severity classification
//   - metric: Prometheus metrics and the metrics HTTP endpoint
//   - pkg/retry: retry policies with backoff
//   - pkg/ring: fixed-capacity ring buffer
//
// # Binary
//
// cmd/daqd is the acquisition daemon:
//
//	# validate a configuration without touching hardware
//	daqd validate daq.yaml
//
//	# list built-in instrument types
//	daqd types
//
//	# run until SIGINT/SIGTERM
//	daqd run --config daq.yaml
//
// See daq.example.yaml for a complete configuration.
package daqstreams

// Package config loads and validates the runtime's YAML configuration: the
// instrument roster, distributor sizing, manager timeouts, and the
// observability endpoints.
//
// Driver-specific parameters are not interpreted here. Each instrument's
// params block is carried as raw JSON and handed to the driver factory,
// which parses and validates its own schema.
package config

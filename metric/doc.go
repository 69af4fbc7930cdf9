// Package metric provides Prometheus-based metrics collection and the HTTP
// endpoint for runtime monitoring.
//
// The package manages a central registry holding both core runtime metrics
// (instrument state, command throughput, measurement distribution) and any
// driver-specific metrics registered at runtime, plus an HTTP server
// exposing everything in Prometheus format.
//
// # Basic Usage
//
//	registry := metric.NewRegistry()
//	server := metric.NewServer(9090, "/metrics", registry)
//	go server.Start()
//
// Core metrics are updated by the instrument manager; the delivery hook
// bridges per-subscriber distribution accounting into the counters:
//
//	dist := measurement.NewDistributor(cfg, logger,
//	    measurement.WithDeliveryHook(registry.Core().DeliveryHook()))
package metric

// Package measurement defines the data model produced by instruments and the
// fan-out distribution machinery that delivers it to consumers.
//
// # Data Model
//
// Measurements form a closed set of variants behind the Measurement
// interface:
//
//   - Scalar: a single named reading (power, position, temperature)
//   - Spectrum: parallel frequency/magnitude slices
//   - Image: a 2D frame whose pixels stay in their native acquisition width
//     (see PixelBuffer)
//
// Every variant carries a channel name and a timestamp. Timestamps from one
// instrument are monotonically non-decreasing under normal operation;
// consumers must tolerate out-of-order delivery only across a recovery.
//
// # Distribution
//
// The Distributor fans measurements out to named subscribers over bounded
// channels using non-blocking delivery:
//
//	dist := measurement.NewDistributor(measurement.DefaultConfig(), logger)
//	sub := dist.Subscribe("storage")
//	go func() {
//	    for m := range sub.C() {
//	        write(m)
//	    }
//	}()
//	dist.Broadcast(&measurement.Scalar{Channel: "pm1_power", Value: 1.3e-3})
//
// A full subscriber channel drops the measurement for that subscriber only;
// other subscribers still receive it. Drops are counted per subscriber and
// surfaced through Snapshot, never propagated to the publisher. This is the
// backpressure policy of the whole runtime: drop, account, and keep the
// instrument running.
package measurement

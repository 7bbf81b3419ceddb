// Package capture provides the audio input source capability.
// It opens a live input device and delivers raw float32 sample blocks at
// device cadence on a dedicated capture callback, never waiting on the
// consumer.
package capture

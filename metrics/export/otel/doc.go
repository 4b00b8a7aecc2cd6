// Package otel publishes authsession metrics through an OpenTelemetry meter.
//
// [NewOTelExporter] registers one Int64ObservableCounter per lifecycle counter
// and a set of cumulative bucket gauges for the profile latency histogram.
// Values are read from [authsession.Client.MetricsSnapshot] on each collection
// cycle, so the exporter holds no state of its own.
package otel

// Package internaldefs holds the metric names, help strings and latency bucket
// bounds that every authsession exporter publishes.
//
// Both exporters iterate the same CounterDefs and HistogramDefs, so a counter
// added to the root package shows up in Prometheus and OpenTelemetry output
// once it is listed here. The package is pure data and helpers.
package internaldefs

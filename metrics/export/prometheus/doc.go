// Package prometheus renders authsession metrics in Prometheus text
// exposition format.
//
// [NewPrometheusExporter] reads an [authsession.Client] and exposes an
// [http.Handler] suitable for a /metrics route. Counter names are prefixed
// authsession_ and end in _total; the single histogram is
// authsession_profile_latency_seconds.
package prometheus

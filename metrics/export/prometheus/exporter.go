package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/MrEthical07/authsession"
	"github.com/MrEthical07/authsession/metrics/export/internaldefs"
)

// ContentType is the exposition format version served by Handler.
const ContentType = "text/plain; version=0.0.4; charset=utf-8"

// MetricsSource is implemented by *authsession.Client.
type MetricsSource interface {
	MetricsSnapshot() authsession.MetricsSnapshot
	AuditDropped() uint64
}

// PrometheusExporter renders authsession metrics in Prometheus text exposition format.
type PrometheusExporter struct {
	source MetricsSource
}

// NewPrometheusExporter creates an exporter reading from client.
func NewPrometheusExporter(client *authsession.Client) *PrometheusExporter {
	return &PrometheusExporter{source: client}
}

// NewPrometheusExporterFromSource creates an exporter from a custom MetricsSource.
func NewPrometheusExporterFromSource(source MetricsSource) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler returns an http.Handler that serves the rendered metrics.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", ContentType)
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render returns the current metrics. It is empty while metrics are disabled
// and no audit event was dropped.
func (p *PrometheusExporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	snap := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snap.Counters) == 0 && len(snap.Histograms) == 0 && dropped == 0 {
		return ""
	}

	var t text
	t.Grow(4096)
	for _, def := range internaldefs.CounterDefs {
		t.family(def.Name, def.Help, "counter")
		t.sample(def.Name, "", snap.Counters[def.ID])
	}
	for _, def := range internaldefs.HistogramDefs {
		t.histogram(def.Name, def.Help, internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snap.Histograms[def.ID])))
	}
	t.family(internaldefs.AuditDroppedName, "Audit events dropped because the buffer was full.", "counter")
	t.sample(internaldefs.AuditDroppedName, "", dropped)
	return t.String()
}

type text struct {
	strings.Builder
}

func (t *text) family(name, help, kind string) {
	help = strings.ReplaceAll(help, `\`, `\\`)
	help = strings.ReplaceAll(help, "\n", `\n`)
	t.WriteString("# HELP " + name + " " + help + "\n")
	t.WriteString("# TYPE " + name + " " + kind + "\n")
}

func (t *text) sample(name, labels string, v uint64) {
	t.WriteString(name)
	t.WriteString(labels)
	t.WriteByte(' ')
	t.WriteString(strconv.FormatUint(v, 10))
	t.WriteByte('\n')
}

// histogram writes cumulative buckets. Snapshots carry no sum, so _sum is 0.
func (t *text) histogram(name, help string, cumulative [8]uint64) {
	t.family(name, help, "histogram")
	for i, le := range internaldefs.HistogramBounds {
		t.sample(name+"_bucket", `{le="`+le+`"}`, cumulative[i])
	}
	t.sample(name+"_count", "", cumulative[len(cumulative)-1])
	t.sample(name+"_sum", "", 0)
}

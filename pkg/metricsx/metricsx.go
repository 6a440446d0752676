// Package metricsx extends github.com/VictoriaMetrics/metrics with the
// label-formatting helper that core/server.go builds its metric names with
// (package reliability formats its own names by hand):
// VictoriaMetrics encodes Prometheus-style labels directly in the metric
// name string ("cubesnet_active_objects{node=\"3\"}"), so constructing
// that string correctly — including appending a label to a name that may
// already carry some — is common enough to pull out once.
package metricsx

import "strings"

// splitName separates a VictoriaMetrics metric name into its bare base and
// the raw label body between the outermost matching braces, if any. A
// name with no (or malformed) trailing `{...}` returns it unchanged with
// an empty label body.
func splitName(name string) (base, labels string) {
	if len(name) == 0 {
		return "", ""
	}
	base = name
	for i, r := range base {
		if r == '{' {
			if j := len(base) - 1; j > i && base[j] == '}' {
				base, labels = base[:i], base[i+1:j]
				break
			}
		}
	}
	return
}

// formatName rebuilds a metric name from a base, its existing raw label
// body (may be empty), and additional key/value pairs to append.
func formatName(base, labels string, kv ...string) string {
	var b strings.Builder
	b.WriteString(base)
	b.WriteByte('{')
	if labels != "" {
		b.WriteString(labels)
	}
	for i := 1; i < len(kv); i += 2 {
		if labels != "" || i > 1 {
			b.WriteByte(',')
		}
		b.WriteString(kv[i-1])
		b.WriteString(`="`)
		b.WriteString(kv[i])
		b.WriteByte('"')
	}
	b.WriteByte('}')
	return b.String()
}

// Name builds a VictoriaMetrics metric name for base with the given
// key/value label pairs appended, preserving any labels base already
// carries. Name("cubesnet_bytes_sent_total", "node", "3") returns
// `cubesnet_bytes_sent_total{node="3"}`.
func Name(base string, kv ...string) string {
	b, labels := splitName(base)
	return formatName(b, labels, kv...)
}

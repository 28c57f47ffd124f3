/*
Package monitoring collects Prometheus metrics for one orchard run.

Attach sessions report through the attach.Observer interface, which
Metrics implements; API clients are instrumented with resty hooks. A CLI
run has no scrape endpoint, so the registry is written out in text format
at exit when a metrics file is configured.

# Usage

	metrics := monitoring.NewMetrics()
	monitoring.Instrument(restyClient, metrics)

	session := attach.NewSession(attach.Options{Observer: metrics})

	defer metrics.WriteTextfile("/var/lib/node_exporter/orchard.prom")
*/
package monitoring

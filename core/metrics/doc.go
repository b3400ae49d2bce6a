// Package metrics defines the sinks that observe solver attempts and sweep
// rows. Concrete sinks (Prometheus, InfluxDB) live in infra/metrics and
// register themselves with RegisterMetricsSink; NewMetricsSink combines
// several configured sinks into a MultiSink.
package metrics

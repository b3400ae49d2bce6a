// Package infra contains technical adapters: solver backends, the dataset
// loader, metrics exporters, the MQTT row publisher and logging. These
// packages depend only on the interfaces defined in the core packages.
package infra

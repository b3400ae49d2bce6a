// Package util holds helpers shared by the integration tests: a disposable
// Mosquitto broker and a poller for Prometheus endpoints.
package util

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	MosquittoImage        = "eclipse-mosquitto:2.0"
	MosquittoReadyTimeout = 10 * time.Second
	MetricTimeout         = 5 * time.Second

	pollInterval = 50 * time.Millisecond
)

const mosquittoConf = `listener 1883
allow_anonymous true
persistence false
log_dest stdout
log_type error
log_type warning
connection_messages true
`

// StartMosquitto runs an anonymous Mosquitto broker in a container and
// returns its tcp:// URL once it accepts MQTT connections. The returned
// function terminates the container.
func StartMosquitto(ctx context.Context) (string, func(), error) {
	req := tc.ContainerRequest{
		Image:        MosquittoImage,
		ExposedPorts: []string{"1883/tcp"},
		WaitingFor:   wait.ForListeningPort("1883/tcp"),
		Files: []tc.ContainerFile{{
			Reader:            strings.NewReader(mosquittoConf),
			ContainerFilePath: "/mosquitto/config/mosquitto.conf",
			FileMode:          0o644,
		}},
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		return "", nil, fmt.Errorf("start mosquitto: %w", err)
	}
	stop := func() { _ = cont.Terminate(context.Background()) }

	endpoint, err := cont.PortEndpoint(ctx, "1883/tcp", "tcp")
	if err != nil {
		stop()
		return "", nil, fmt.Errorf("mosquitto endpoint: %w", err)
	}

	readyCtx, cancel := context.WithTimeout(ctx, MosquittoReadyTimeout)
	defer cancel()
	if err := waitForMQTTReady(readyCtx, endpoint); err != nil {
		stop()
		return "", nil, err
	}
	return endpoint, stop, nil
}

// waitForMQTTReady connects probe clients until one succeeds.
func waitForMQTTReady(ctx context.Context, broker string) error {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID("probe-" + uuid.NewString()[:8]).
		SetConnectTimeout(time.Second)
	var lastErr error
	for {
		cli := paho.NewClient(opts)
		tok := cli.Connect()
		if tok.WaitTimeout(2*time.Second) && tok.Error() == nil {
			cli.Disconnect(100)
			return nil
		}
		lastErr = tok.Error()
		select {
		case <-ctx.Done():
			return fmt.Errorf("mqtt broker %s not ready: %w (last error: %v)", broker, ctx.Err(), lastErr)
		case <-time.After(pollInterval):
		}
	}
}

// WaitForMetric scrapes metricsURL until its body contains substr or ctx is
// done.
func WaitForMetric(ctx context.Context, metricsURL, substr string) error {
	tick := time.NewTicker(pollInterval)
	defer tick.Stop()
	var last string
	for {
		body, err := scrape(ctx, metricsURL)
		if err == nil && strings.Contains(body, substr) {
			return nil
		}
		if err != nil {
			last = err.Error()
		} else {
			last = fmt.Sprintf("%d bytes without a match", len(body))
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("metric %q not found at %s: %w (%s)", substr, metricsURL, ctx.Err(), last)
		case <-tick.C:
		}
	}
}

func scrape(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("scrape status %s", resp.Status)
	}
	b, err := io.ReadAll(resp.Body)
	return string(b), err
}

package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/fleetplan/core/metrics"
	"github.com/kilianp07/fleetplan/infra/logger"
)

// InfluxSink writes solver and sweep events to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordSolve writes one solver attempt.
func (s *InfluxSink) RecordSolve(ev coremetrics.SolveEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("solve").
		AddTag("model", ev.Model).
		AddTag("backend", ev.Backend).
		AddTag("status", ev.Status).
		AddTag("attempt", strconv.Itoa(ev.Attempt)).
		AddField("duration_ms", round3(ev.Duration.Seconds()*1000)).
		AddField("vars", ev.Vars).
		AddField("constraints", ev.Constraints)
	if ev.HasIncumbent {
		p = p.AddField("objective", round3(ev.Objective))
	}
	p = p.SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordSweepRow writes one sweep row. Cost fields are only written for
// solved rows.
func (s *InfluxSink) RecordSweepRow(ev coremetrics.SweepRowEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("sweep_row").
		AddTag("run_id", ev.RunID).
		AddTag("status", ev.Status).
		AddTag("failed", strconv.FormatBool(ev.Failed))
	if ev.Reason != "" {
		p = p.AddTag("reason", ev.Reason)
	}
	p = p.AddField("index", ev.Index).
		AddField("target", ev.Target).
		AddField("wall_time_ms", round3(ev.WallTime.Seconds()*1000))
	if !ev.Failed {
		p = p.AddField("final_soc", round3(ev.FinalSoC)).
			AddField("total_cost", round3(ev.TotalCost)).
			AddField("energy_cost", round3(ev.EnergyCost)).
			AddField("penalty_cost", round3(ev.PenaltyCost)).
			AddField("penalty_share", round3(ev.PenaltyShare)).
			AddField("delay_hours", round3(ev.DelayHours)).
			AddField("off_hours", round3(ev.OffHours))
	}
	p = p.SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the client.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}

package publisher

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/jgoulah/vandebron/internal/config"
	"github.com/jgoulah/vandebron/pkg/models"
)

// All points go into one fixed bucket; the dashboards expect it.
const influxBucket = "sensordata"

// InfluxSink writes usage points to InfluxDB, one point per write,
// synchronously. A failed write does not undo earlier ones.
type InfluxSink struct {
	client influxdb2.Client
	write  api.WriteAPIBlocking
}

// NewInfluxSink creates an InfluxDB sink from the configured connection
func NewInfluxSink(cfg config.InfluxConfig) (*InfluxSink, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("InfluxDB URL is required")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("InfluxDB token is required")
	}
	if cfg.Org == "" {
		return nil, fmt.Errorf("InfluxDB org is required")
	}

	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &InfluxSink{
		client: client,
		write:  client.WriteAPIBlocking(cfg.Org, influxBucket),
	}, nil
}

// Publish projects the records into points and writes each one
func (s *InfluxSink) Publish(ctx context.Context, records []models.UsageRecord) error {
	points, err := Points(records)
	if err != nil {
		return err
	}
	return s.writePoints(ctx, points)
}

// PublishBucket writes the two points for one archived bucket
func (s *InfluxSink) PublishBucket(ctx context.Context, b models.UsageBucket) error {
	points, err := BucketPoints(b)
	if err != nil {
		return err
	}
	return s.writePoints(ctx, points)
}

func (s *InfluxSink) writePoints(ctx context.Context, points []models.OutputPoint) error {
	for _, pt := range points {
		p := write.NewPoint(
			pt.Measurement,
			map[string]string{"type": pt.Type},
			map[string]interface{}{"value": pt.Value},
			time.Unix(pt.Timestamp, 0),
		)
		if err := s.write.WritePoint(ctx, p); err != nil {
			return fmt.Errorf("writing point %s/%s: %w", pt.Measurement, pt.Type, err)
		}
	}
	return nil
}

// Close releases the underlying client
func (s *InfluxSink) Close() {
	s.client.Close()
}

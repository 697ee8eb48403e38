package publisher

import (
	"fmt"
	"time"

	"github.com/jgoulah/vandebron/internal/vandebron"
	"github.com/jgoulah/vandebron/pkg/models"
)

// Points projects usage records into time-series write points: every value
// bucket yields exactly two points sharing the bucket's timestamp, one per
// consumption type, with the record's market as the measurement name.
func Points(records []models.UsageRecord) ([]models.OutputPoint, error) {
	var points []models.OutputPoint
	for _, rec := range records {
		for _, v := range rec.Values {
			t, err := vandebron.ParseBucketTime(v.Time)
			if err != nil {
				return nil, fmt.Errorf("projecting %s bucket: %w", rec.Market, err)
			}
			ts := t.Unix()

			points = append(points,
				models.OutputPoint{
					Measurement: rec.Market,
					Type:        "consumptionPeak",
					Value:       v.ConsumptionPeak,
					Timestamp:   ts,
				},
				models.OutputPoint{
					Measurement: rec.Market,
					Type:        "consumptionOffPeak",
					Value:       v.ConsumptionOffPeak,
					Timestamp:   ts,
				},
			)
		}
	}
	return points, nil
}

// BucketPoints projects one archived bucket into its two write points.
func BucketPoints(b models.UsageBucket) ([]models.OutputPoint, error) {
	t, err := time.ParseInLocation("2006-01-02 15:04:05", b.Time, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("parsing stored bucket time %q: %w", b.Time, err)
	}
	ts := t.Unix()

	return []models.OutputPoint{
		{Measurement: b.Market, Type: "consumptionPeak", Value: b.ConsumptionPeak, Timestamp: ts},
		{Measurement: b.Market, Type: "consumptionOffPeak", Value: b.ConsumptionOffPeak, Timestamp: ts},
	}, nil
}

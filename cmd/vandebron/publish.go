package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jgoulah/vandebron/internal/publisher"
	"github.com/jgoulah/vandebron/pkg/models"
	"github.com/spf13/cobra"
)

var (
	publishMarket string
	publishSince  string
	publishUntil  string
	publishAll    bool
	publishLimit  int
	publishTarget string
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish archived usage data to a time-series sink",
	Long: `Reads archived usage buckets from the local database and publishes them
to InfluxDB or MQTT. By default only buckets not yet published are sent.`,
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().StringVar(&publishMarket, "market", "", "Market segment to publish (default: all markets)")
	publishCmd.Flags().StringVar(&publishSince, "since", "", "Only publish buckets since this date (YYYY-MM-DD or relative like 7d)")
	publishCmd.Flags().StringVar(&publishUntil, "until", "", "Only publish buckets until this date (YYYY-MM-DD)")
	publishCmd.Flags().BoolVar(&publishAll, "all", false, "Force republish all buckets (ignore published flag)")
	publishCmd.Flags().IntVar(&publishLimit, "limit", 0, "Limit number of buckets to publish (0 = no limit)")
	publishCmd.Flags().StringVar(&publishTarget, "target", "", "Sink: influxdb or mqtt (default from config)")
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	fmt.Printf("=== Publish started at %s ===\n", time.Now().Format("2006-01-02 15:04:05 MST"))

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	target := publishTarget
	if target == "" {
		target = cfg.GetOutput()
	}

	// Set up the requested sink; a single publishBucket func keeps the loop
	// below sink-agnostic.
	ctx := context.Background()
	var publishBucket func(models.UsageBucket) error
	switch target {
	case "influxdb":
		sink, err := publisher.NewInfluxSink(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("creating influx sink: %w", err)
		}
		defer sink.Close()
		publishBucket = func(b models.UsageBucket) error {
			return sink.PublishBucket(ctx, b)
		}
	case "mqtt":
		sink, err := publisher.NewMQTTSink(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("creating mqtt sink: %w", err)
		}
		defer sink.Close()
		publishBucket = sink.PublishBucket
	default:
		return fmt.Errorf("cannot publish to %q (available: influxdb, mqtt)", target)
	}

	db, err := openDB()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	var buckets []models.UsageBucket
	if publishAll {
		buckets, err = db.ListBuckets(publishMarket)
	} else {
		buckets, err = db.ListUnpublishedBuckets(publishMarket)
	}
	if err != nil {
		return fmt.Errorf("listing buckets: %w", err)
	}

	if len(buckets) == 0 {
		if publishAll {
			fmt.Println("No data found")
		} else {
			fmt.Println("No unpublished data found")
		}
		return nil
	}

	// Parse date filters if provided
	var sinceDate, untilDate *time.Time
	if publishSince != "" {
		since, err := parseDate(publishSince)
		if err != nil {
			return fmt.Errorf("parsing --since date: %w", err)
		}
		sinceDate = &since
	}
	if publishUntil != "" {
		until, err := parseDate(publishUntil)
		if err != nil {
			return fmt.Errorf("parsing --until date: %w", err)
		}
		untilDate = &until
	}

	if sinceDate != nil || untilDate != nil {
		filtered := []models.UsageBucket{}
		for _, b := range buckets {
			t, err := time.ParseInLocation("2006-01-02 15:04:05", b.Time, time.UTC)
			if err != nil {
				return fmt.Errorf("parsing stored bucket time %q: %w", b.Time, err)
			}
			if sinceDate != nil && t.Before(*sinceDate) {
				continue
			}
			if untilDate != nil && t.After(*untilDate) {
				continue
			}
			filtered = append(filtered, b)
		}
		buckets = filtered
	}

	if len(buckets) == 0 {
		fmt.Println("No data in date range")
		return nil
	}

	if publishLimit > 0 && len(buckets) > publishLimit {
		buckets = buckets[:publishLimit]
		fmt.Printf("Limiting to %d buckets (--limit flag)\n", publishLimit)
	}

	fmt.Printf("Publishing %d buckets to %s...\n", len(buckets), target)
	published := 0
	for i, b := range buckets {
		fmt.Printf("[%d/%d] Publishing %s %s (%.2f/%.2f kWh)... ", i+1, len(buckets), b.Market, b.Time, b.ConsumptionPeak, b.ConsumptionOffPeak)
		if err := publishBucket(b); err != nil {
			fmt.Printf("FAILED: %v\n", err)
			continue
		}

		if err := db.MarkPublished(b.ID); err != nil {
			fmt.Printf("✓ (warning: failed to mark as published: %v)\n", err)
		} else {
			fmt.Printf("✓\n")
		}
		published++
	}

	fmt.Printf("\nSuccessfully published %d/%d buckets\n", published, len(buckets))
	return nil
}

// parseDate parses a date string in either YYYY-MM-DD format or relative format (e.g., "7d")
func parseDate(dateStr string) (time.Time, error) {
	// Try absolute date format first
	t, err := time.Parse("2006-01-02", dateStr)
	if err == nil {
		return t, nil
	}

	// Try relative format (e.g., "7d" for 7 days ago)
	if len(dateStr) > 1 && dateStr[len(dateStr)-1] == 'd' {
		daysStr := dateStr[:len(dateStr)-1]
		var days int
		if _, err := fmt.Sscanf(daysStr, "%d", &days); err == nil {
			return time.Now().AddDate(0, 0, -days), nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid date format: %s (use YYYY-MM-DD or Nd for N days ago)", dateStr)
}

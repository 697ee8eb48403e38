package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jgoulah/vandebron/internal/database"
	"github.com/jgoulah/vandebron/internal/publisher"
	"github.com/jgoulah/vandebron/internal/vandebron"
	"github.com/jgoulah/vandebron/pkg/models"
	"github.com/spf13/cobra"
)

var (
	fetchDays   int
	fetchDate   string
	fetchHourly bool
	fetchOutput string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch usage data from the portal",
	Long: `Logs in, resolves the account's metering connections, and fetches usage
data for each of them. Fetched buckets are archived in the local SQLite
database and emitted via the configured output (json, influxdb, or mqtt).

By default one daily-resolution query covers the whole window per
connection. With --date (or --hourly) usage is fetched at hourly
resolution, one query per connection and day.`,
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().IntVar(&fetchDays, "days", 0, "Fetch window in days ending today (default from config, 30)")
	fetchCmd.Flags().StringVar(&fetchDate, "date", "", "Fetch a single day at hourly resolution (YYYY-MM-DD)")
	fetchCmd.Flags().BoolVar(&fetchHourly, "hourly", false, "Fetch every day in the window at hourly resolution")
	fetchCmd.Flags().StringVar(&fetchOutput, "output", "", "Output mode: json, influxdb, or mqtt (default from config)")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	fmt.Fprintf(os.Stderr, "=== Fetch started at %s ===\n", time.Now().Format("2006-01-02 15:04:05 MST"))

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	client, err := newClient(cfg)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if err := client.Login(ctx); err != nil {
		return fmt.Errorf("logging in: %w", err)
	}
	fmt.Fprintf(os.Stderr, "✓ Logged in as %s\n", client.User().UserID)

	conns, err := client.Connections(ctx)
	if err != nil {
		return fmt.Errorf("listing connections: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Found %d connection(s)\n", len(conns))

	days := fetchDays
	if days <= 0 {
		days = cfg.GetDaysToFetch()
	}
	end := time.Now()
	start := end.AddDate(0, 0, -days)

	var records []models.UsageRecord
	resolution := "Days"

	switch {
	case fetchDate != "":
		day, err := time.Parse("2006-01-02", fetchDate)
		if err != nil {
			return fmt.Errorf("parsing --date: %w", err)
		}
		resolution = "Hours"
		for _, conn := range conns {
			rec, err := client.UsageDay(ctx, conn, day)
			if err != nil {
				return err
			}
			records = append(records, rec)
		}

	case fetchHourly:
		resolution = "Hours"
		for _, conn := range conns {
			for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
				rec, err := client.UsageDay(ctx, conn, day)
				if err != nil {
					return err
				}
				records = append(records, rec)
			}
		}

	default:
		for _, conn := range conns {
			rec, err := client.UsageRange(ctx, conn, start, end)
			if err != nil {
				return err
			}
			records = append(records, rec)
		}
	}

	// Archive everything before emitting; duplicates are skipped by the
	// UNIQUE constraint.
	db, err := openDB()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	buckets, err := archiveRecords(db, records, resolution)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "✓ Archived %d bucket(s)\n", len(buckets))

	output := fetchOutput
	if output == "" {
		output = cfg.GetOutput()
	}

	switch output {
	case "json":
		if err := publisher.NewJSONSink(os.Stdout).Publish(records); err != nil {
			return err
		}

	case "influxdb":
		fmt.Fprintln(os.Stderr, "Pushing to influxdb")
		sink, err := publisher.NewInfluxSink(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("creating influx sink: %w", err)
		}
		defer sink.Close()
		if err := sink.Publish(ctx, records); err != nil {
			return err
		}

	case "mqtt":
		fmt.Fprintln(os.Stderr, "Publishing to mqtt")
		sink, err := publisher.NewMQTTSink(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("creating mqtt sink: %w", err)
		}
		defer sink.Close()
		for _, b := range buckets {
			if err := sink.PublishBucket(b); err != nil {
				return err
			}
		}

	default:
		return fmt.Errorf("unknown output mode: %s (available: json, influxdb, mqtt)", output)
	}

	return nil
}

// archiveRecords stores every bucket of the fetched records and returns
// the stored form.
func archiveRecords(db *database.DB, records []models.UsageRecord, resolution string) ([]models.UsageBucket, error) {
	var buckets []models.UsageBucket
	for _, rec := range records {
		for _, v := range rec.Values {
			t, err := vandebron.ParseBucketTime(v.Time)
			if err != nil {
				return nil, err
			}
			b := models.UsageBucket{
				Market:             rec.Market,
				Time:               t.Format("2006-01-02 15:04:05"),
				Resolution:         resolution,
				ConsumptionPeak:    v.ConsumptionPeak,
				ConsumptionOffPeak: v.ConsumptionOffPeak,
			}
			if err := db.InsertBucket(&b); err != nil {
				return nil, err
			}
			buckets = append(buckets, b)
		}
	}
	return buckets, nil
}

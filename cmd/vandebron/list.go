package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listMarket string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived usage data",
	Long:  `Displays all archived usage buckets from the local database, grouped by market.`,
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&listMarket, "market", "", "Filter by market segment (e.g. Electricity)")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	markets := []string{}
	if listMarket != "" {
		markets = append(markets, listMarket)
	} else {
		markets, err = db.Markets()
		if err != nil {
			return fmt.Errorf("listing markets: %w", err)
		}
	}

	if len(markets) == 0 {
		fmt.Println("No data found")
		return nil
	}

	for _, market := range markets {
		buckets, err := db.ListBuckets(market)
		if err != nil {
			return fmt.Errorf("listing data for %s: %w", market, err)
		}

		if len(buckets) == 0 {
			fmt.Printf("No data found for %s\n", market)
			continue
		}

		fmt.Printf("\n%s Usage Data:\n", market)
		fmt.Println("------------------------------------------------------")
		fmt.Printf("%-20s  %12s  %12s\n", "Time", "Peak kWh", "Off-peak kWh")
		fmt.Println("------------------------------------------------------")

		var totalPeak, totalOffPeak float64
		for _, b := range buckets {
			fmt.Printf("%-20s  %12.2f  %12.2f\n", b.Time, b.ConsumptionPeak, b.ConsumptionOffPeak)
			totalPeak += b.ConsumptionPeak
			totalOffPeak += b.ConsumptionOffPeak
		}

		fmt.Println("------------------------------------------------------")
		fmt.Printf("Total: %.2f kWh peak, %.2f kWh off-peak (%d buckets)\n",
			totalPeak, totalOffPeak, len(buckets))
	}

	return nil
}

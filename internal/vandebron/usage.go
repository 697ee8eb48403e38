package vandebron

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/jgoulah/vandebron/pkg/models"
)

// UsageRange fetches daily-resolution usage for one connection between two
// dates (inclusive, server-defined semantics).
func (c *Client) UsageRange(ctx context.Context, conn models.Connection, start, end time.Time) (models.UsageRecord, error) {
	params := url.Values{}
	params.Set("resolution", "Days")
	params.Set("startDate", start.Format("2006-01-02"))
	params.Set("endDate", end.Format("2006-01-02"))

	return c.fetchUsage(ctx, conn, params)
}

// UsageDay fetches hourly-resolution usage for a single calendar day.
func (c *Client) UsageDay(ctx context.Context, conn models.Connection, day time.Time) (models.UsageRecord, error) {
	start, end := hourlyWindow(day)

	params := url.Values{}
	params.Set("resolution", "Hours")
	params.Set("startDateTime", start)
	params.Set("endDateTime", end)

	return c.fetchUsage(ctx, conn, params)
}

func (c *Client) fetchUsage(ctx context.Context, conn models.Connection, params url.Values) (models.UsageRecord, error) {
	reqURL := fmt.Sprintf("%s/%s/connections/%s/usage?%s",
		c.endpoints.Usage, c.user.UserID, conn.ConnectionID, params.Encode())

	body, err := c.get(ctx, reqURL)
	if err != nil {
		// The server's error body typically names the invalid parameter, so
		// show it before propagating.
		var terr *TransportError
		if errors.As(err, &terr) && len(body) > 0 {
			fmt.Fprintf(os.Stderr, "usage request failed (status %d): %s\n", terr.StatusCode, string(body))
		}
		return models.UsageRecord{}, fmt.Errorf("fetching usage for connection %s: %w", conn.ConnectionID, err)
	}

	var record models.UsageRecord
	if err := json.Unmarshal(body, &record); err != nil {
		return models.UsageRecord{}, fmt.Errorf("decoding usage response: %w", err)
	}
	record.Market = conn.MarketSegment

	return record, nil
}

// hourlyWindow builds the request timestamps for a per-day hourly query.
// The server reads these zone-less timestamps as its own local civil time,
// while timestamps in the response are UTC. Keep that assumption here: if
// the portal ever changes it, this is the only place to touch.
func hourlyWindow(day time.Time) (start, end string) {
	next := day.AddDate(0, 0, 1)
	start = day.Format("2006-01-02") + "T00:15:00.000"
	end = next.Format("2006-01-02") + "T00:00:00.000"
	return start, end
}

// ParseBucketTime parses a usage bucket's timestamp into UTC. Response
// timestamps carry a trailing "Z"; the remainder is read as UTC. The
// counterpart of hourlyWindow for the response side of the zone quirk.
func ParseBucketTime(s string) (time.Time, error) {
	trimmed := strings.TrimSuffix(s, "Z")
	// time.Parse accepts an optional fractional second after the seconds
	// field regardless of the layout, so one layout covers all bucket times
	t, err := time.ParseInLocation("2006-01-02T15:04:05", trimmed, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing bucket time %q: %w", s, err)
	}
	return t, nil
}

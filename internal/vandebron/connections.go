package vandebron

import (
	"context"
	"fmt"

	"github.com/jgoulah/vandebron/pkg/models"
)

// Connections resolves the organization's metering connections. The tool
// has no policy for organizations with more than one shipping address, so
// anything but exactly one is a fatal precondition failure.
func (c *Client) Connections(ctx context.Context) ([]models.Connection, error) {
	var org struct {
		ShippingAddresses []struct {
			Connections []models.Connection `json:"connections"`
		} `json:"shippingAddresses"`
	}

	url := fmt.Sprintf("%s/%s", c.endpoints.EnergyConsumers, c.user.OrgID)
	if err := c.getJSON(ctx, url, &org); err != nil {
		return nil, fmt.Errorf("fetching energy consumers: %w", err)
	}

	if len(org.ShippingAddresses) != 1 {
		return nil, &PreconditionError{
			Message: fmt.Sprintf("expected exactly 1 shipping address, got %d", len(org.ShippingAddresses)),
		}
	}

	return org.ShippingAddresses[0].Connections, nil
}

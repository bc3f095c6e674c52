package domain

import "github.com/google/uuid"

type CustomerStatus string

const (
	CustomerStarted CustomerStatus = "started"
	CustomerPaused  CustomerStatus = "paused"
	CustomerDeleted CustomerStatus = "deleted"
)

// Customer is the tenant root. Provisioning happens outside this service.
type Customer struct {
	ID     uuid.UUID      `json:"id"`
	Name   string         `json:"name"`
	Status CustomerStatus `json:"status"`
}

func (c *Customer) Active() bool {
	return c != nil && c.Status != CustomerDeleted
}

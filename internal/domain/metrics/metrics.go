// Package metrics defines the rolling quick-metrics snapshot.
package metrics

import "time"

// CacheKey is where the collector stores the latest snapshot.
const CacheKey = "metrics:quick"

// Snapshot is a small set of counters refreshed by a background job.
// Business counters are nil when the backing table is unavailable.
type Snapshot struct {
	AgentsOnline        int       `json:"agents_online"`
	TasksPending        int       `json:"tasks_pending"`
	TasksCompletedToday int       `json:"tasks_completed_today"`
	DecisionsPending    int       `json:"decisions_pending"`
	Errors24h           int       `json:"errors_24h"`
	OpenServiceOrders   *int      `json:"os_abertas,omitempty"`
	TotalClients        *int      `json:"total_clientes,omitempty"`
	CollectedAt         time.Time `json:"collected_at"`
}

// Placeholder is returned while no snapshot has been collected yet.
type Placeholder struct {
	Message string `json:"message"`
}

// WaitingPlaceholder is the body served before the first collection.
var WaitingPlaceholder = Placeholder{Message: "Aguardando coleta (cronjob)"}

package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

// PersonaThroughput represents aggregated completion metrics for one persona type.
type PersonaThroughput struct {
	PersonaType     string  `json:"persona_type"`
	CompletedItems  int64   `json:"completed_items"`
	FailedItems     int64   `json:"failed_items"`
	AvgDurationSecs float64 `json:"avg_duration_seconds"`
}

// QueryService provides methods to query dispatch metrics from Prometheus.
type QueryService struct {
	client   api.Client
	queryAPI v1.API
}

// NewQueryService creates a new metrics query service.
func NewQueryService(prometheusURL string) (*QueryService, error) {
	client, err := api.NewClient(api.Config{
		Address: prometheusURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}

	return &QueryService{
		client:   client,
		queryAPI: v1.NewAPI(client),
	}, nil
}

// GetPersonaThroughput retrieves aggregated completion counts and average
// execution duration for a specific persona type.
func (q *QueryService) GetPersonaThroughput(ctx context.Context, personaType string) (*PersonaThroughput, error) {
	throughput := &PersonaThroughput{
		PersonaType: personaType,
	}

	completedQuery := fmt.Sprintf(`sum(factory_items_completed_total{persona_type=%q, status="completed"})`, personaType)
	completedResult, _, err := q.queryAPI.Query(ctx, completedQuery, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to query completed items: %w", err)
	}

	if vector, ok := completedResult.(model.Vector); ok && len(vector) > 0 {
		throughput.CompletedItems = int64(vector[0].Value)
	}

	failedQuery := fmt.Sprintf(`sum(factory_items_completed_total{persona_type=%q, status="failed"})`, personaType)
	failedResult, _, err := q.queryAPI.Query(ctx, failedQuery, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to query failed items: %w", err)
	}

	if vector, ok := failedResult.(model.Vector); ok && len(vector) > 0 {
		throughput.FailedItems = int64(vector[0].Value)
	}

	durationQuery := fmt.Sprintf(
		`sum(factory_execution_duration_seconds_sum{persona_type=%q}) / sum(factory_execution_duration_seconds_count{persona_type=%q})`,
		personaType, personaType,
	)
	durationResult, _, err := q.queryAPI.Query(ctx, durationQuery, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to query execution duration: %w", err)
	}

	if vector, ok := durationResult.(model.Vector); ok && len(vector) > 0 {
		throughput.AvgDurationSecs = float64(vector[0].Value)
	}

	return throughput, nil
}

// GetAllPersonaThroughput retrieves throughput metrics broken down by persona
// type for every type that has recorded completions.
func (q *QueryService) GetAllPersonaThroughput(ctx context.Context) (map[string]*PersonaThroughput, error) {
	result := make(map[string]*PersonaThroughput)

	typesQuery := `group by (persona_type) (factory_items_completed_total)`
	typesResult, _, err := q.queryAPI.Query(ctx, typesQuery, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to query persona types: %w", err)
	}

	var types []string
	if vector, ok := typesResult.(model.Vector); ok {
		for _, sample := range vector {
			if personaType, ok := sample.Metric["persona_type"]; ok {
				types = append(types, string(personaType))
			}
		}
	}

	for _, personaType := range types {
		throughput, err := q.GetPersonaThroughput(ctx, personaType)
		if err != nil {
			return nil, fmt.Errorf("failed to query throughput for %s: %w", personaType, err)
		}
		result[personaType] = throughput
	}

	return result, nil
}

// internal/audit/elasticsearch.go
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	apperrors "eligibility-engine/internal/common/errors"
	"eligibility-engine/internal/common/logger"
	"eligibility-engine/internal/models"
)

// ElasticsearchSink indexes decisions for search and reporting. It is a
// secondary sink: Postgres stays the system of record, the index only
// serves department dashboards and explanation lookups.
type ElasticsearchSink struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

// NewElasticsearchSink builds the search sink. index defaults to
// "decision-history".
func NewElasticsearchSink(client *elasticsearch.Client, index string, log logger.Logger) *ElasticsearchSink {
	if index == "" {
		index = "decision-history"
	}
	return &ElasticsearchSink{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "history-elasticsearch"}),
	}
}

func (s *ElasticsearchSink) Name() string { return "elasticsearch" }

// Append indexes one decision document keyed by decision id.
func (s *ElasticsearchSink) Append(ctx context.Context, d *models.Decision) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return apperrors.NewHistoryWriteFailedError("elasticsearch", fmt.Errorf("marshal decision %s: %w", d.ID, err))
	}

	req := esapi.IndexRequest{
		Index:      s.index,
		DocumentID: d.ID,
		Body:       bytes.NewReader(payload),
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return apperrors.NewHistoryWriteFailedError("elasticsearch", fmt.Errorf("index decision %s: %w", d.ID, err))
	}
	defer res.Body.Close()

	if res.IsError() {
		return apperrors.NewHistoryWriteFailedError("elasticsearch", fmt.Errorf("index decision %s: %s", d.ID, res.String()))
	}
	return nil
}

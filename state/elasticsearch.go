package state

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	elasticsearch "github.com/elastic/go-elasticsearch/v8"
)

// maxRecords caps GetAll result size. The state index holds one document
// per migration identity, so the realistic count is tens.
const maxRecords = 1000

// ElasticsearchRepository implements Repository over a dedicated
// Elasticsearch index.
type ElasticsearchRepository struct {
	client *elasticsearch.Client
	index  string
	logger *slog.Logger
}

// NewElasticsearchRepository creates a Repository writing to the named
// index.
func NewElasticsearchRepository(client *elasticsearch.Client, index string, logger *slog.Logger) *ElasticsearchRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &ElasticsearchRepository{
		client: client,
		index:  index,
		logger: logger.With("component", "state.elasticsearch", "index", index),
	}
}

// Add upserts a record, keyed by its ID.
func (r *ElasticsearchRepository) Add(ctx context.Context, st MigrationState) error {
	body, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal state %q: %w", st.ID, err)
	}

	res, err := r.client.Index(r.index, bytes.NewReader(body),
		r.client.Index.WithDocumentID(st.ID),
		r.client.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("index state %q: %w", st.ID, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index state %q: %s", st.ID, res.String())
	}

	r.logger.Debug("state record written", "id", st.ID, "completed", st.Completed())
	return nil
}

// GetAll returns every record in the state index.
func (r *ElasticsearchRepository) GetAll(ctx context.Context) ([]MigrationState, error) {
	res, err := r.client.Search(
		r.client.Search.WithIndex(r.index),
		r.client.Search.WithSize(maxRecords),
		r.client.Search.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("search state index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search state index: %s", res.String())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source MigrationState `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]MigrationState, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		out = append(out, hit.Source)
	}
	return out, nil
}

// GetByID returns the record with the given ID, or nil when absent.
func (r *ElasticsearchRepository) GetByID(ctx context.Context, id string) (*MigrationState, error) {
	res, err := r.client.Get(r.index, id,
		r.client.Get.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("get state %q: %w", id, err)
	}
	defer res.Body.Close()

	if res.StatusCode == 404 {
		return nil, nil
	}
	if res.IsError() {
		return nil, fmt.Errorf("get state %q: %s", id, res.String())
	}

	var parsed struct {
		Source MigrationState `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode get response for %q: %w", id, err)
	}
	return &parsed.Source, nil
}

// Refresh makes previously-written records searchable.
func (r *ElasticsearchRepository) Refresh(ctx context.Context) error {
	res, err := r.client.Indices.Refresh(
		r.client.Indices.Refresh.WithIndex(r.index),
		r.client.Indices.Refresh.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("refresh state index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("refresh state index: %s", res.String())
	}
	return nil
}

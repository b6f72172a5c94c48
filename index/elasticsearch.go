package index

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	elasticsearch "github.com/elastic/go-elasticsearch/v8"
)

// ElasticsearchBackend implements Backend against an Elasticsearch cluster.
type ElasticsearchBackend struct {
	client *elasticsearch.Client
	logger *slog.Logger
}

// NewElasticsearchBackend creates a Backend over the given client.
func NewElasticsearchBackend(client *elasticsearch.Client, logger *slog.Logger) *ElasticsearchBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &ElasticsearchBackend{
		client: client,
		logger: logger.With("component", "index.elasticsearch"),
	}
}

// CreateIndex creates the named index when absent, then waits for its
// health to reach at least yellow.
func (b *ElasticsearchBackend) CreateIndex(ctx context.Context, name string, desc Descriptor) error {
	exists, err := b.IndexExists(ctx, name)
	if err != nil {
		return err
	}

	if !exists {
		res, err := b.client.Indices.Create(name,
			b.client.Indices.Create.WithBody(strings.NewReader(desc.Body)),
			b.client.Indices.Create.WithContext(ctx),
		)
		if err != nil {
			return fmt.Errorf("create index %q: %w", name, err)
		}
		defer res.Body.Close()

		// A concurrent creator may have won the race; treat
		// resource_already_exists as success.
		if res.IsError() {
			detail := res.String()
			if res.StatusCode != 400 || !strings.Contains(detail, "resource_already_exists_exception") {
				return fmt.Errorf("create index %q: %s", name, detail)
			}
		}

		b.logger.Info("index created", "index", name)
	}

	return b.awaitHealthy(ctx, name)
}

// DeleteIndex deletes the named index, ignoring absence.
func (b *ElasticsearchBackend) DeleteIndex(ctx context.Context, name string) error {
	res, err := b.client.Indices.Delete([]string{name},
		b.client.Indices.Delete.WithIgnoreUnavailable(true),
		b.client.Indices.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("delete index %q: %w", name, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("delete index %q: %s", name, res.String())
	}
	return nil
}

// IndexExists reports whether the named index exists.
func (b *ElasticsearchBackend) IndexExists(ctx context.Context, name string) (bool, error) {
	res, err := b.client.Indices.Exists([]string{name},
		b.client.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return false, fmt.Errorf("index exists %q: %w", name, err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case 200:
		return true, nil
	case 404:
		return false, nil
	default:
		return false, fmt.Errorf("index exists %q: %s", name, res.String())
	}
}

// Refresh makes previously-written documents in the named index searchable.
func (b *ElasticsearchBackend) Refresh(ctx context.Context, name string) error {
	res, err := b.client.Indices.Refresh(
		b.client.Indices.Refresh.WithIndex(name),
		b.client.Indices.Refresh.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("refresh index %q: %w", name, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("refresh index %q: %s", name, res.String())
	}
	return nil
}

// awaitHealthy blocks until the index health is yellow or green.
func (b *ElasticsearchBackend) awaitHealthy(ctx context.Context, name string) error {
	res, err := b.client.Cluster.Health(
		b.client.Cluster.Health.WithIndex(name),
		b.client.Cluster.Health.WithWaitForStatus("yellow"),
		b.client.Cluster.Health.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("health check for index %q: %w", name, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("health check for index %q: %s", name, res.String())
	}
	return nil
}

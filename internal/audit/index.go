// internal/audit/index.go
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	apperrors "admissions-workflow/internal/common/errors"
	"admissions-workflow/internal/common/logger"
	"admissions-workflow/internal/common/metrics"
	"admissions-workflow/internal/models"
	"admissions-workflow/internal/workflow"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

var ErrSearchQueryFailed = apperrors.Sentinel(apperrors.ErrCodeSearchQueryFailed, "audit search failed")

const (
	defaultSearchSize = 50
	maxSearchSize     = 500
)

// document is the indexed shape of a state change event.
type document struct {
	ID            string  `json:"id"`
	ApplicationID string  `json:"application_id"`
	RecordType    string  `json:"application_type"`
	FromState     *string `json:"from_state"`
	ToState       string  `json:"to_state"`
	ActorID       string  `json:"actor_id"`
	ActorRole     string  `json:"actor_role"`
	Reason        string  `json:"reason,omitempty"`
	CreatedAt     string  `json:"created_at"`
}

const indexMapping = `{
  "mappings": {
    "properties": {
      "id":               {"type": "keyword"},
      "application_id":   {"type": "keyword"},
      "application_type": {"type": "keyword"},
      "from_state":       {"type": "keyword"},
      "to_state":         {"type": "keyword"},
      "actor_id":         {"type": "keyword"},
      "actor_role":       {"type": "keyword"},
      "reason":           {"type": "text"},
      "created_at":       {"type": "date"}
    }
  }
}`

// Index mirrors committed state change events into Elasticsearch for
// cross-application audit search. Postgres stays the source of truth; a
// failed index write is counted and logged only.
type Index struct {
	client  *elasticsearch.Client
	index   string
	timeout time.Duration
	logger  logger.Logger
}

var _ workflow.Observer = (*Index)(nil)

func NewIndex(client *elasticsearch.Client, index string, timeout time.Duration, log logger.Logger) *Index {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Index{
		client:  client,
		index:   index,
		timeout: timeout,
		logger:  log.WithFields(map[string]interface{}{"component": "audit.index"}),
	}
}

// EnsureIndex creates the index with its keyword mapping when missing.
func (x *Index) EnsureIndex(ctx context.Context) error {
	res, err := x.client.Indices.Exists([]string{x.index}, x.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSearchQueryFailed, err)
	}
	res.Body.Close()
	if res.StatusCode == 200 {
		return nil
	}

	res, err = x.client.Indices.Create(x.index,
		x.client.Indices.Create.WithContext(ctx),
		x.client.Indices.Create.WithBody(strings.NewReader(indexMapping)))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSearchQueryFailed, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("%w: create index %s: %s", ErrSearchQueryFailed, x.index, res.Status())
	}
	x.logger.Info("audit index created", map[string]interface{}{"index": x.index})
	return nil
}

func (x *Index) TransitionCommitted(ctx context.Context, app models.Application, event models.StateChangeEvent) error {
	doc := document{
		ID:            event.ID,
		ApplicationID: event.ApplicationID,
		RecordType:    string(event.RecordType),
		ToState:       string(event.ToState),
		ActorID:       event.ActorID,
		ActorRole:     string(event.ActorRole),
		Reason:        event.Reason,
		CreatedAt:     event.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if event.FromState != nil {
		from := string(*event.FromState)
		doc.FromState = &from
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()

	req := esapi.IndexRequest{
		Index:      x.index,
		DocumentID: event.ID,
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, x.client)
	if err != nil {
		metrics.AuditIndexFailures.Inc()
		return fmt.Errorf("%w: index event %s: %v", ErrSearchQueryFailed, event.ID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		metrics.AuditIndexFailures.Inc()
		return fmt.Errorf("%w: index event %s: %s", ErrSearchQueryFailed, event.ID, res.Status())
	}
	return nil
}

// SearchResult is one page of matching events, newest first.
type SearchResult struct {
	Events []models.StateChangeEvent `json:"events"`
	Total  int                       `json:"total"`
}

func buildQuery(q models.AuditQuery) map[string]interface{} {
	filters := []interface{}{}
	term := func(field, value string) {
		filters = append(filters, map[string]interface{}{
			"term": map[string]interface{}{field: value},
		})
	}
	if q.ActorID != "" {
		term("actor_id", q.ActorID)
	}
	if q.ToState != nil {
		term("to_state", string(*q.ToState))
	}
	if q.RecordType != nil {
		term("application_type", string(*q.RecordType))
	}

	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{"filter": filters},
		},
		"sort": []interface{}{
			map[string]interface{}{"created_at": map[string]interface{}{"order": "desc"}},
		},
	}
}

// Search finds events by actor, target status and record type.
func (x *Index) Search(ctx context.Context, q models.AuditQuery) (*SearchResult, error) {
	size := q.Size
	if size <= 0 {
		size = defaultSearchSize
	}
	if size > maxSearchSize {
		size = maxSearchSize
	}

	body, err := json.Marshal(buildQuery(q))
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()

	req := esapi.SearchRequest{
		Index: []string{x.index},
		Body:  bytes.NewReader(body),
		Size:  &size,
	}
	res, err := req.Do(ctx, x.client)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchQueryFailed, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("%w: %s", ErrSearchQueryFailed, res.Status())
	}

	var parsed struct {
		Hits struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrSearchQueryFailed, err)
	}

	result := &SearchResult{Events: []models.StateChangeEvent{}, Total: parsed.Hits.Total.Value}
	for _, hit := range parsed.Hits.Hits {
		ev, err := hit.Source.event()
		if err != nil {
			x.logger.Warn("skipping malformed audit document", map[string]interface{}{
				"id":    hit.Source.ID,
				"error": err,
			})
			continue
		}
		result.Events = append(result.Events, ev)
	}
	return result, nil
}

func (d document) event() (models.StateChangeEvent, error) {
	to, err := models.ParseStatus(d.ToState)
	if err != nil {
		return models.StateChangeEvent{}, err
	}
	created, err := time.Parse(time.RFC3339Nano, d.CreatedAt)
	if err != nil {
		return models.StateChangeEvent{}, err
	}
	ev := models.StateChangeEvent{
		ID:            d.ID,
		ApplicationID: d.ApplicationID,
		RecordType:    models.RecordType(d.RecordType),
		ToState:       to,
		ActorID:       d.ActorID,
		ActorRole:     models.Role(d.ActorRole),
		Reason:        d.Reason,
		CreatedAt:     created,
	}
	if d.FromState != nil {
		from, err := models.ParseStatus(*d.FromState)
		if err != nil {
			return models.StateChangeEvent{}, err
		}
		ev.FromState = &from
	}
	return ev, nil
}

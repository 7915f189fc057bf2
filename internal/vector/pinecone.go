package vector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/hyperjump/concierge/internal/models"
	"github.com/hyperjump/concierge/pkg/utils"
)

// PineconeConfig configures a PineconeIndex.
type PineconeConfig struct {
	APIKey        string
	ControllerURL string
	IndexName     string
	Dimensions    int
	Metric        Metric
	Cloud         string
	Region        string
	// Host is the data-plane host; when empty it is discovered by describing the index.
	Host      string
	Namespace string
	Timeout   time.Duration
}

// pineconeControl is the part of the control plane used to find or create the index.
type pineconeControl interface {
	ListIndexes(ctx context.Context) ([]*pinecone.Index, error)
	DescribeIndex(ctx context.Context, name string) (*pinecone.Index, error)
	CreateServerlessIndex(ctx context.Context, in *pinecone.CreateServerlessIndexRequest) (*pinecone.Index, error)
}

// pineconeData is the part of an index connection used for records.
type pineconeData interface {
	UpsertVectors(ctx context.Context, in []*pinecone.Vector) (uint32, error)
	QueryByVectorValues(ctx context.Context, in *pinecone.QueryByVectorValuesRequest) (*pinecone.QueryVectorsResponse, error)
	DeleteVectorsById(ctx context.Context, ids []string) error
	DescribeIndexStats(ctx context.Context) (*pinecone.DescribeIndexStatsResponse, error)
	Close() error
}

// PineconeIndex stores FAQ vectors in a serverless Pinecone index.
type PineconeIndex struct {
	cfg          PineconeConfig
	control      pineconeControl
	connect      func(host string) (pineconeData, error)
	logger       *zap.Logger
	pollInterval time.Duration

	mu   sync.Mutex
	conn pineconeData
}

// PineconeOption configures a PineconeIndex.
type PineconeOption func(*PineconeIndex)

// WithPineconeLogger sets the logger.
func WithPineconeLogger(l *zap.Logger) PineconeOption {
	return func(p *PineconeIndex) { p.logger = utils.NopIfNil(l) }
}

// WithReadyPollInterval sets how often a newly created index is polled for readiness.
func WithReadyPollInterval(d time.Duration) PineconeOption {
	return func(p *PineconeIndex) { p.pollInterval = d }
}

// withDataPlane replaces how index connections are opened.
func withDataPlane(connect func(host string) (pineconeData, error)) PineconeOption {
	return func(p *PineconeIndex) { p.connect = connect }
}

// withControlPlane replaces the control-plane client.
func withControlPlane(c pineconeControl) PineconeOption {
	return func(p *PineconeIndex) { p.control = c }
}

// NewPineconeIndex returns a client for cfg.IndexName. No request is made until first use.
func NewPineconeIndex(cfg PineconeConfig, opts ...PineconeOption) (*PineconeIndex, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("pinecone: missing API key")
	}
	if cfg.IndexName == "" {
		return nil, errors.New("pinecone: missing index name")
	}
	if cfg.Dimensions <= 0 {
		return nil, errors.New("pinecone: dimensions must be positive")
	}
	if cfg.Metric == "" {
		cfg.Metric = MetricCosine
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	params := pinecone.NewClientParams{
		ApiKey:     cfg.APIKey,
		RestClient: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.ControllerURL != "" {
		params.Host = strings.TrimRight(cfg.ControllerURL, "/")
	}
	client, err := pinecone.NewClient(params)
	if err != nil {
		return nil, fmt.Errorf("pinecone client: %w", err)
	}

	p := &PineconeIndex{
		cfg:          cfg,
		control:      client,
		logger:       zap.NewNop(),
		pollInterval: 2 * time.Second,
	}
	p.connect = func(host string) (pineconeData, error) {
		conn, err := client.Index(pinecone.NewIndexConnParams{Host: host, Namespace: cfg.Namespace})
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// bareHost strips the scheme and trailing slash from a data-plane host.
func bareHost(h string) string {
	h = strings.TrimRight(h, "/")
	if i := strings.Index(h, "://"); i >= 0 {
		h = h[i+3:]
	}
	return h
}

// EnsureIndex connects to the data plane, creating the index with the configured
// dimension, metric and serverless cloud/region if it does not exist.
func (p *PineconeIndex) EnsureIndex(ctx context.Context) error {
	_, err := p.data(ctx)
	return err
}

func (p *PineconeIndex) data(ctx context.Context) (pineconeData, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil {
		return p.conn, nil
	}

	host := bareHost(p.cfg.Host)
	if host == "" {
		idx, err := p.findOrCreate(ctx)
		if err != nil {
			return nil, err
		}
		if int(idx.Dimension) != p.cfg.Dimensions {
			return nil, fmt.Errorf("pinecone index %s has dimension %d, embedder produces %d",
				p.cfg.IndexName, idx.Dimension, p.cfg.Dimensions)
		}
		host = bareHost(idx.Host)
		if host == "" {
			return nil, fmt.Errorf("pinecone index %s has no host yet", p.cfg.IndexName)
		}
	}

	conn, err := p.connect(host)
	if err != nil {
		return nil, fmt.Errorf("pinecone connect %s: %w", host, err)
	}
	p.conn = conn
	return conn, nil
}

func (p *PineconeIndex) findOrCreate(ctx context.Context) (*pinecone.Index, error) {
	indexes, err := p.control.ListIndexes(ctx)
	if err != nil {
		return nil, fmt.Errorf("pinecone list indexes: %w", err)
	}
	for _, idx := range indexes {
		if idx != nil && idx.Name == p.cfg.IndexName {
			return idx, nil
		}
	}

	p.logger.Info("creating pinecone index",
		zap.String("name", p.cfg.IndexName), zap.Int("dimension", p.cfg.Dimensions),
		zap.String("metric", string(p.cfg.Metric)), zap.String("region", p.cfg.Region))
	metric := pinecone.IndexMetric(p.cfg.Metric)
	_, err = p.control.CreateServerlessIndex(ctx, &pinecone.CreateServerlessIndexRequest{
		Name:      p.cfg.IndexName,
		Dimension: int32(p.cfg.Dimensions),
		Metric:    metric,
		Cloud:     pinecone.Cloud(p.cfg.Cloud),
		Region:    p.cfg.Region,
	})
	if err != nil {
		// Another process may have created it in the meantime.
		if _, derr := p.control.DescribeIndex(ctx, p.cfg.IndexName); derr != nil {
			return nil, fmt.Errorf("pinecone create index %s: %w", p.cfg.IndexName, err)
		}
	}
	return p.waitReady(ctx)
}

func (p *PineconeIndex) waitReady(ctx context.Context) (*pinecone.Index, error) {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()
	for {
		idx, err := p.control.DescribeIndex(ctx, p.cfg.IndexName)
		if err != nil {
			return nil, fmt.Errorf("pinecone describe index %s: %w", p.cfg.IndexName, err)
		}
		if idx.Status != nil && idx.Status.Ready && idx.Host != "" {
			return idx, nil
		}
		if idx.Status != nil {
			p.logger.Debug("waiting for pinecone index", zap.String("state", string(idx.Status.State)))
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Upsert writes records in one request. Pinecone replaces vectors with an existing id.
func (p *PineconeIndex) Upsert(ctx context.Context, records []models.IndexRecord) error {
	if len(records) == 0 {
		return nil
	}
	conn, err := p.data(ctx)
	if err != nil {
		return err
	}
	vectors := make([]*pinecone.Vector, len(records))
	for i, r := range records {
		if len(r.Vector) != p.cfg.Dimensions {
			return fmt.Errorf("vector dimension mismatch for %s: got %d, expected %d", r.ID, len(r.Vector), p.cfg.Dimensions)
		}
		v := &pinecone.Vector{Id: r.ID, Values: r.Vector}
		if len(r.Metadata) > 0 {
			fields := make(map[string]interface{}, len(r.Metadata))
			for k, val := range r.Metadata {
				fields[k] = val
			}
			md, err := structpb.NewStruct(fields)
			if err != nil {
				return fmt.Errorf("metadata for %s: %w", r.ID, err)
			}
			v.Metadata = md
		}
		vectors[i] = v
	}
	n, err := conn.UpsertVectors(ctx, vectors)
	if err != nil {
		return fmt.Errorf("pinecone upsert: %w", err)
	}
	p.logger.Debug("pinecone upsert", zap.Int("sent", len(records)), zap.Uint32("upserted", n))
	return nil
}

// Query returns the topK nearest vectors. Non-string metadata values are dropped.
func (p *PineconeIndex) Query(ctx context.Context, vector []float32, topK int, includeMetadata bool) (models.QueryResult, error) {
	if len(vector) != p.cfg.Dimensions {
		return models.QueryResult{}, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(vector), p.cfg.Dimensions)
	}
	if topK <= 0 {
		return models.QueryResult{}, nil
	}
	conn, err := p.data(ctx)
	if err != nil {
		return models.QueryResult{}, err
	}
	resp, err := conn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          vector,
		TopK:            uint32(topK),
		IncludeMetadata: includeMetadata,
	})
	if err != nil {
		return models.QueryResult{}, fmt.Errorf("pinecone query: %w", err)
	}

	out := models.QueryResult{Matches: make([]models.Match, 0, len(resp.Matches))}
	for _, m := range resp.Matches {
		if m == nil || m.Vector == nil {
			continue
		}
		match := models.Match{ID: m.Vector.Id, Score: float64(m.Score)}
		if includeMetadata {
			match.Metadata = stringFields(m.Vector.Metadata)
		}
		out.Matches = append(out.Matches, match)
	}
	return out, nil
}

func stringFields(md *structpb.Struct) map[string]string {
	if md == nil || len(md.GetFields()) == 0 {
		return nil
	}
	out := make(map[string]string, len(md.GetFields()))
	for k, v := range md.GetFields() {
		if s, ok := v.GetKind().(*structpb.Value_StringValue); ok {
			out[k] = s.StringValue
		}
	}
	return out
}

// Delete removes vectors by id.
func (p *PineconeIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	conn, err := p.data(ctx)
	if err != nil {
		return err
	}
	if err := conn.DeleteVectorsById(ctx, ids); err != nil {
		return fmt.Errorf("pinecone delete: %w", err)
	}
	return nil
}

// Size returns the vector count for the configured namespace (or the whole index).
func (p *PineconeIndex) Size(ctx context.Context) (int, error) {
	conn, err := p.data(ctx)
	if err != nil {
		return 0, err
	}
	stats, err := conn.DescribeIndexStats(ctx)
	if err != nil {
		return 0, fmt.Errorf("pinecone index stats: %w", err)
	}
	if p.cfg.Namespace != "" {
		ns, ok := stats.Namespaces[p.cfg.Namespace]
		if !ok || ns == nil {
			return 0, nil
		}
		return int(ns.VectorCount), nil
	}
	return int(stats.TotalVectorCount), nil
}

// Close closes the data-plane connection if one was opened.
func (p *PineconeIndex) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	return err
}

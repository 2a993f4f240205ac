package milvus

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.VectorIndex = (*Index)(nil)

// Field names of every request collection
const (
	fieldID        = "id"
	fieldEmbedding = "embedding"
	fieldChunkID   = "chunk_id"
	fieldContent   = "content"
	fieldPage      = "page"
	fieldPosition  = "position"

	maxContentLength = 65535
)

var outputFields = []string{fieldChunkID, fieldContent, fieldPage, fieldPosition}

// Config holds Milvus connection configuration
type Config struct {
	Address  string
	Username string
	Password string
	Database string
	Timeout  time.Duration
	NList    int
	NProbe   int
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Address: "localhost:19530",
		Timeout: 10 * time.Second,
		NList:   128,
		NProbe:  16,
	}
}

// Index implements VectorIndex on Milvus, one collection per request
type Index struct {
	client *milvusclient.Client
	config Config
}

// Connect creates a Milvus client
func Connect(ctx context.Context, config Config) (*Index, error) {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.NList <= 0 {
		config.NList = 128
	}
	if config.NProbe <= 0 {
		config.NProbe = 16
	}

	ctx, cancel := context.WithTimeout(ctx, config.Timeout)
	defer cancel()

	c, err := milvusclient.New(ctx, &milvusclient.ClientConfig{
		Address:  config.Address,
		Username: config.Username,
		Password: config.Password,
		DBName:   config.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus: %w", err)
	}

	return &Index{client: c, config: config}, nil
}

// CreateCollection creates, indexes and loads the collection if it does not exist
func (x *Index) CreateCollection(ctx context.Context, name string, dimensions int) error {
	exists, err := x.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(name))
	if err != nil {
		return fmt.Errorf("%w: check collection %s: %v", domain.ErrIndex, name, err)
	}
	if exists {
		return nil
	}

	if err := x.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(name, buildSchema(name, dimensions))); err != nil {
		return fmt.Errorf("%w: create collection %s: %v", domain.ErrIndex, name, err)
	}

	idx := index.NewIvfFlatIndex(entity.COSINE, x.config.NList)
	idxTask, err := x.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(name, fieldEmbedding, idx))
	if err != nil {
		return fmt.Errorf("%w: create index on %s: %v", domain.ErrIndex, name, err)
	}
	if err := idxTask.Await(ctx); err != nil {
		return fmt.Errorf("%w: wait for index on %s: %v", domain.ErrIndex, name, err)
	}

	loadTask, err := x.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(name))
	if err != nil {
		return fmt.Errorf("%w: load collection %s: %v", domain.ErrIndex, name, err)
	}
	if err := loadTask.Await(ctx); err != nil {
		return fmt.Errorf("%w: wait for load of %s: %v", domain.ErrIndex, name, err)
	}
	return nil
}

// Insert writes entries and flushes so they are searchable immediately
func (x *Index) Insert(ctx context.Context, collection string, entries []domain.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}

	columns, err := buildColumns(entries)
	if err != nil {
		return err
	}

	if _, err := x.client.Insert(ctx, milvusclient.NewColumnBasedInsertOption(collection, columns...)); err != nil {
		return fmt.Errorf("%w: insert into %s: %v", domain.ErrIndex, collection, err)
	}

	flushTask, err := x.client.Flush(ctx, milvusclient.NewFlushOption(collection))
	if err != nil {
		return fmt.Errorf("%w: flush %s: %v", domain.ErrIndex, collection, err)
	}
	if err := flushTask.Await(ctx); err != nil {
		return fmt.Errorf("%w: wait for flush of %s: %v", domain.ErrIndex, collection, err)
	}
	return nil
}

// Search returns up to k chunks ordered by descending cosine similarity
func (x *Index) Search(ctx context.Context, collection string, embedding []float32, k int) ([]domain.ScoredChunk, error) {
	if k <= 0 {
		return nil, nil
	}

	results, err := x.client.Search(ctx, milvusclient.NewSearchOption(
		collection,
		k,
		[]entity.Vector{entity.FloatVector(embedding)},
	).WithANNSField(fieldEmbedding).
		WithSearchParam("nprobe", strconv.Itoa(x.config.NProbe)).
		WithConsistencyLevel(entity.ClStrong).
		WithOutputFields(outputFields...))
	if err != nil {
		return nil, fmt.Errorf("%w: search %s: %v", domain.ErrIndex, collection, err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	return parseResults(collection, results[0].ResultCount, results[0].Scores, results[0].Fields), nil
}

// DropCollection drops the collection if it exists
func (x *Index) DropCollection(ctx context.Context, name string) error {
	exists, err := x.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(name))
	if err != nil {
		return fmt.Errorf("%w: check collection %s: %v", domain.ErrIndex, name, err)
	}
	if !exists {
		return nil
	}
	if err := x.client.DropCollection(ctx, milvusclient.NewDropCollectionOption(name)); err != nil {
		return fmt.Errorf("%w: drop collection %s: %v", domain.ErrIndex, name, err)
	}
	return nil
}

// HealthCheck lists collections to verify connectivity
func (x *Index) HealthCheck(ctx context.Context) error {
	if _, err := x.client.ListCollections(ctx, milvusclient.NewListCollectionOption()); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, err)
	}
	return nil
}

// Close closes the client connection
func (x *Index) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), x.config.Timeout)
	defer cancel()
	return x.client.Close(ctx)
}

// buildSchema defines an auto-id collection holding chunk text and position
func buildSchema(name string, dimensions int) *entity.Schema {
	return entity.NewSchema().
		WithName(name).
		WithDescription("request-scoped document chunks").
		WithAutoID(true).
		WithField(entity.NewField().
			WithName(fieldID).
			WithDataType(entity.FieldTypeInt64).
			WithIsPrimaryKey(true).
			WithIsAutoID(true)).
		WithField(entity.NewField().
			WithName(fieldEmbedding).
			WithDataType(entity.FieldTypeFloatVector).
			WithDim(int64(dimensions))).
		WithField(entity.NewField().
			WithName(fieldChunkID).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(64)).
		WithField(entity.NewField().
			WithName(fieldContent).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(maxContentLength)).
		WithField(entity.NewField().
			WithName(fieldPage).
			WithDataType(entity.FieldTypeInt64)).
		WithField(entity.NewField().
			WithName(fieldPosition).
			WithDataType(entity.FieldTypeInt64))
}

// buildColumns converts entries to column-based insert data
func buildColumns(entries []domain.IndexEntry) ([]column.Column, error) {
	dim := len(entries[0].Embedding)
	vectors := make([][]float32, len(entries))
	ids := make([]string, len(entries))
	contents := make([]string, len(entries))
	pages := make([]int64, len(entries))
	positions := make([]int64, len(entries))

	for i, e := range entries {
		if e.Chunk == nil {
			return nil, fmt.Errorf("%w: entry %d has no chunk", domain.ErrIndex, i)
		}
		if len(e.Embedding) != dim {
			return nil, fmt.Errorf("%w: entry %d has %d dimensions, want %d", domain.ErrIndex, i, len(e.Embedding), dim)
		}
		if len(e.Chunk.Content) > maxContentLength {
			return nil, fmt.Errorf("%w: chunk %s exceeds %d bytes", domain.ErrIndex, e.Chunk.ID, maxContentLength)
		}
		vectors[i] = e.Embedding
		ids[i] = e.Chunk.ID
		contents[i] = e.Chunk.Content
		pages[i] = int64(e.Chunk.Page)
		positions[i] = int64(e.Chunk.Position)
	}

	return []column.Column{
		column.NewColumnFloatVector(fieldEmbedding, dim, vectors),
		column.NewColumnVarChar(fieldChunkID, ids),
		column.NewColumnVarChar(fieldContent, contents),
		column.NewColumnInt64(fieldPage, pages),
		column.NewColumnInt64(fieldPosition, positions),
	}, nil
}

// parseResults rebuilds chunks from the output field columns of one result set
func parseResults(collection string, count int, scores []float32, fields []column.Column) []domain.ScoredChunk {
	hits := make([]domain.ScoredChunk, 0, count)
	for i := 0; i < count && i < len(scores); i++ {
		chunk := &domain.Chunk{Source: collection}
		for _, field := range fields {
			switch col := field.(type) {
			case *column.ColumnVarChar:
				if i >= col.Len() {
					continue
				}
				switch col.Name() {
				case fieldChunkID:
					chunk.ID = col.Data()[i]
				case fieldContent:
					chunk.Content = col.Data()[i]
				}
			case *column.ColumnInt64:
				if i >= col.Len() {
					continue
				}
				switch col.Name() {
				case fieldPage:
					chunk.Page = int(col.Data()[i])
				case fieldPosition:
					chunk.Position = int(col.Data()[i])
				}
			}
		}
		hits = append(hits, domain.ScoredChunk{Chunk: chunk, Score: float64(scores[i])})
	}
	return hits
}

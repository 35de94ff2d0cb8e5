// Package searchgateway is C8: the search index fed by the entry
// processor and queried by readers, grounded on search.py's
// index_all/refresh/delete_upload trio (original_source) but built on an
// embedded blevesearch/bleve/v2 index instead of Elasticsearch, so the
// core ships without an external search cluster dependency.
package searchgateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/BlackLotus/nomad/internal/apperr"
	"github.com/BlackLotus/nomad/internal/logger"
	"github.com/BlackLotus/nomad/pkg/entryprocessor"
)

// Document is the pruned, flattened projection of an Entry indexed for
// search (search.py's Entry document, minus the Elasticsearch-specific
// multi-field/analyzer plumbing no longer needed with bleve's own default
// text analysis).
type Document struct {
	EntryID       string   `json:"entry_id"`
	UploadID      string   `json:"upload_id"`
	Mainfile      string   `json:"mainfile"`
	ParserName    string   `json:"parser_name"`
	WithEmbargo   bool     `json:"with_embargo"`
	Published     bool     `json:"published"`
	ProcessStatus string   `json:"process_status"`
	Comment       string   `json:"comment"`
	Coauthors     []string `json:"coauthors,omitempty"`
	Datasets      []string `json:"datasets,omitempty"`
	References    []string `json:"references,omitempty"`
}

// Gateway is a bleve-backed SearchGateway/SearchIndexer implementation.
// Writes go straight to the index (bleve has no separate commit step);
// Refresh exists to satisfy the interface contract inherited from
// search.py's explicit refresh() call after a bulk update, and doubles as
// a liveness check against the underlying index.
type Gateway struct {
	mu    sync.Mutex
	index bleve.Index
}

// Open opens (or creates, if path does not yet exist) a bleve index at
// path. An empty path builds a transient in-memory index, used by tests.
func Open(path string) (*Gateway, error) {
	if path == "" {
		idx, err := bleve.NewMemOnly(buildMapping())
		if err != nil {
			return nil, fmt.Errorf("creating in-memory search index: %w", err)
		}
		return &Gateway{index: idx}, nil
	}

	idx, err := bleve.Open(path)
	if err == nil {
		return &Gateway{index: idx}, nil
	}
	idx, err = bleve.New(path, buildMapping())
	if err != nil {
		return nil, fmt.Errorf("creating search index at %s: %w", path, err)
	}
	return &Gateway{index: idx}, nil
}

// Close releases the underlying bleve index.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.index.Close()
}

func buildMapping() mapping.IndexMapping {
	entryMapping := bleve.NewDocumentMapping()

	keyword := bleve.NewTextFieldMapping()
	keyword.Analyzer = "keyword"
	for _, field := range []string{"entry_id", "upload_id", "parser_name", "process_status"} {
		entryMapping.AddFieldMappingsAt(field, keyword)
	}

	text := bleve.NewTextFieldMapping()
	entryMapping.AddFieldMappingsAt("mainfile", text)
	entryMapping.AddFieldMappingsAt("comment", text)

	boolMapping := bleve.NewBooleanFieldMapping()
	entryMapping.AddFieldMappingsAt("with_embargo", boolMapping)
	entryMapping.AddFieldMappingsAt("published", boolMapping)

	m := bleve.NewIndexMapping()
	m.AddDocumentMapping("entry", entryMapping)
	m.DefaultMapping = entryMapping
	return m
}

// Index implements entryprocessor.SearchIndexer (§4.6 step 5): it
// projects the archive into a Document and upserts it under entryID.
// updateMaterials is accepted for interface compatibility with a richer
// future materials-aggregation index; the bleve-backed gateway indexes
// the same flattened document either way.
func (g *Gateway) Index(ctx context.Context, entryID string, archive entryprocessor.Archive, updateMaterials bool) error {
	doc := documentFromArchive(entryID, archive)
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.index.Index(entryID, doc); err != nil {
		return apperr.Wrap(apperr.KindSearchIndexFailure, "indexing entry "+entryID, err)
	}
	return nil
}

// IndexDocument indexes a fully-formed Document directly instead of
// deriving it from an archive. Only the package's tests call it.
func (g *Gateway) IndexDocument(ctx context.Context, doc Document) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.index.Index(doc.EntryID, doc); err != nil {
		return apperr.Wrap(apperr.KindSearchIndexFailure, "indexing entry "+doc.EntryID, err)
	}
	return nil
}

// DeleteByUpload implements search.py's delete_upload: find every
// document carrying upload_id, then delete each by its entry id (bleve
// has no delete-by-query, so this matches then batch-deletes).
func (g *Gateway) DeleteByUpload(ctx context.Context, uploadID string) error {
	query := bleve.NewTermQuery(uploadID)
	query.SetField("upload_id")
	req := bleve.NewSearchRequest(query)
	req.Size = 10000
	req.Fields = nil

	g.mu.Lock()
	defer g.mu.Unlock()

	result, err := g.index.Search(req)
	if err != nil {
		return apperr.Wrap(apperr.KindSearchIndexFailure, "searching upload "+uploadID+" for deletion", err)
	}

	batch := g.index.NewBatch()
	for _, hit := range result.Hits {
		batch.Delete(hit.ID)
	}
	if batch.Size() == 0 {
		return nil
	}
	if err := g.index.Batch(batch); err != nil {
		return apperr.Wrap(apperr.KindSearchIndexFailure, "deleting upload "+uploadID, err)
	}
	return nil
}

// Refresh mirrors search.py's refresh(): bleve commits are synchronous so
// there is no pending-segment flush to perform, but the call still
// round-trips through DocCount to surface a broken index as an error
// rather than silently no-opping.
func (g *Gateway) Refresh(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, err := g.index.DocCount(); err != nil {
		return apperr.Wrap(apperr.KindSearchIndexFailure, "refreshing search index", err)
	}
	logger.InfoCtx(ctx, "search index refreshed")
	return nil
}

func documentFromArchive(entryID string, archive map[string]any) Document {
	doc := Document{EntryID: entryID}
	if v, ok := archive["upload_id"].(string); ok {
		doc.UploadID = v
	}
	if v, ok := archive["mainfile"].(string); ok {
		doc.Mainfile = v
	}
	if v, ok := archive["parser_name"].(string); ok {
		doc.ParserName = v
	}
	if v, ok := archive["with_embargo"].(bool); ok {
		doc.WithEmbargo = v
	}
	if v, ok := archive["published"].(bool); ok {
		doc.Published = v
	}
	if v, ok := archive["comment"].(string); ok {
		doc.Comment = v
	}
	doc.Coauthors = stringSlice(archive["entry_coauthors"])
	doc.Datasets = stringSlice(archive["datasets"])
	doc.References = stringSlice(archive["references"])
	return doc
}

func stringSlice(v any) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, e := range vv {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

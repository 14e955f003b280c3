package store

import (
	"errors"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"go.uber.org/zap"
)

// Record kinds stored in the search index.
const (
	kindWorkItem = "work_item"
	kindNote     = "note"
)

// SearchIndex provides BM25 keyword search over work items and notes.
type SearchIndex struct {
	index bleve.Index
	path  string
}

// NewSearchIndex opens or creates the index at path. An empty path keeps the
// index in memory. A corrupted on-disk index is deleted and recreated empty.
// fresh reports whether the returned index was just created; callers holding
// records must then repopulate it (SQLite.Open does so through Reindex).
func NewSearchIndex(path string, logger *zap.Logger) (*SearchIndex, bool, error) {
	if path == "" {
		idx, err := bleve.NewMemOnly(buildIndexMapping())
		if err != nil {
			return nil, false, fmt.Errorf("failed to create in-memory search index: %w", err)
		}
		return &SearchIndex{index: idx}, true, nil
	}

	fresh := false
	idx, err := bleve.Open(path)
	switch {
	case errors.Is(err, bleve.ErrorIndexPathDoesNotExist):
		idx, err = bleve.New(path, buildIndexMapping())
		if err != nil {
			return nil, false, fmt.Errorf("failed to create search index: %w", err)
		}
		fresh = true
		logger.Debug("search index created", zap.String("path", path))
	case err != nil:
		logger.Warn("search index unreadable, recreating", zap.String("path", path), zap.Error(err))
		if idx != nil {
			_ = idx.Close()
		}
		if rmErr := os.RemoveAll(path); rmErr != nil {
			return nil, false, fmt.Errorf("failed to remove corrupted search index: %w", rmErr)
		}
		idx, err = bleve.New(path, buildIndexMapping())
		if err != nil {
			return nil, false, fmt.Errorf("failed to recreate search index: %w", err)
		}
		fresh = true
	}

	return &SearchIndex{index: idx, path: path}, fresh, nil
}

func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	doc := bleve.NewDocumentMapping()

	for _, field := range []string{"project_id", "kind", "category"} {
		f := bleve.NewTextFieldMapping()
		f.Analyzer = keyword.Name
		f.Store = false
		f.Index = true
		doc.AddFieldMappingsAt(field, f)
	}

	title := bleve.NewTextFieldMapping()
	title.Analyzer = standard.Name
	title.Index = true
	doc.AddFieldMappingsAt("title", title)

	body := bleve.NewTextFieldMapping()
	body.Analyzer = standard.Name
	body.Index = true
	doc.AddFieldMappingsAt("body", body)

	indexMapping.DefaultMapping = doc
	return indexMapping
}

// IndexWorkItem adds or replaces a work item document.
func (s *SearchIndex) IndexWorkItem(projectID, id, title, description string) error {
	return s.index.Index(id, map[string]any{
		"project_id": projectID,
		"kind":       kindWorkItem,
		"title":      title,
		"body":       description,
	})
}

// IndexNote adds or replaces a note document.
func (s *SearchIndex) IndexNote(projectID, id, category, text string) error {
	return s.index.Index(id, map[string]any{
		"project_id": projectID,
		"kind":       kindNote,
		"category":   category,
		"body":       text,
	})
}

// Delete removes a document.
func (s *SearchIndex) Delete(id string) error {
	return s.index.Delete(id)
}

// Search returns ids of the given kind in the project ranked by BM25 score.
func (s *SearchIndex) Search(projectID, kind, query string, k int) ([]string, error) {
	if k <= 0 {
		k = 10
	}

	titleQ := bleve.NewMatchQuery(query)
	titleQ.SetField("title")
	titleQ.SetBoost(2)
	bodyQ := bleve.NewMatchQuery(query)
	bodyQ.SetField("body")
	text := bleve.NewDisjunctionQuery(titleQ, bodyQ)

	projectQ := bleve.NewTermQuery(projectID)
	projectQ.SetField("project_id")
	kindQ := bleve.NewTermQuery(kind)
	kindQ.SetField("kind")

	req := bleve.NewSearchRequest(bleve.NewConjunctionQuery(text, projectQ, kindQ))
	req.Size = k

	res, err := s.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}

	ids := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

// Close closes the index.
func (s *SearchIndex) Close() error {
	return s.index.Close()
}

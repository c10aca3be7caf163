package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ashish9731/email-responder/internal/models"
)

// caseDocument is the on-disk shape of cases.json
type caseDocument struct {
	Seq   int           `json:"seq"`
	Cases []models.Case `json:"cases"`
}

// fileLayout maps collections to their JSON documents under basePath
type fileLayout struct {
	basePath string
}

func (l fileLayout) path(c collection) string {
	return filepath.Join(l.basePath, string(c)+".json")
}

// NewFileStore opens (or creates) a JSON-file backed store under basePath
func NewFileStore(basePath string) (*DocStore, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}

	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	layout := fileLayout{basePath: basePath}
	data, err := layout.load()
	if err != nil {
		return nil, err
	}

	return &DocStore{data: data, persist: layout.save}, nil
}

func (l fileLayout) load() (*dataset, error) {
	data := newDataset()

	var cases caseDocument
	if err := l.read(collCases, &cases); err != nil {
		return nil, err
	}
	data.CaseSeq = cases.Seq
	for i := range cases.Cases {
		c := cases.Cases[i]
		data.Cases[c.ID] = &c
	}

	var keywords []models.Keyword
	if err := l.read(collKeywords, &keywords); err != nil {
		return nil, err
	}
	for i := range keywords {
		k := keywords[i]
		data.Keywords[k.ID] = &k
	}

	if err := l.read(collConfig, &data.Configuration); err != nil {
		return nil, err
	}
	if err := l.read(collStatus, &data.Status); err != nil {
		return nil, err
	}

	return data, nil
}

// read decodes one collection file into v, leaving v untouched if the file is
// missing or empty
func (l fileLayout) read(c collection, v any) error {
	raw, err := os.ReadFile(l.path(c))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s file: %w", c, err)
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to parse %s file: %w", c, err)
	}
	return nil
}

// save rewrites the document of collection c
func (l fileLayout) save(data *dataset, c collection) error {
	var v any
	switch c {
	case collCases:
		doc := caseDocument{Seq: data.CaseSeq, Cases: make([]models.Case, 0, len(data.Cases))}
		for _, cs := range data.Cases {
			doc.Cases = append(doc.Cases, *cs)
		}
		sortCasesNewestFirst(doc.Cases)
		v = doc
	case collKeywords:
		keywords := make([]models.Keyword, 0, len(data.Keywords))
		for _, k := range data.Keywords {
			keywords = append(keywords, *k)
		}
		sortKeywordsNewestFirst(keywords)
		v = keywords
	case collConfig:
		v = data.Configuration
	case collStatus:
		v = data.Status
	default:
		return fmt.Errorf("unknown collection %q", c)
	}

	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize %s: %w", c, err)
	}

	// write then rename so a crash never leaves a truncated document
	tmp := l.path(c) + ".tmp"
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return fmt.Errorf("failed to write %s file: %w", c, err)
	}
	if err := os.Rename(tmp, l.path(c)); err != nil {
		return fmt.Errorf("failed to replace %s file: %w", c, err)
	}
	return nil
}

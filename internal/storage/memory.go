package storage

import (
	"context"
	"sync"

	"github.com/ashish9731/email-responder/internal/models"
)

// dataset is everything a DocStore holds. It is also the on-disk layout of the
// file backend, one JSON document per collection.
type dataset struct {
	Cases         map[string]*models.Case    `json:"cases"`
	Keywords      map[string]*models.Keyword `json:"keywords"`
	Configuration *models.Configuration      `json:"configuration,omitempty"`
	Status        *models.SystemStatus       `json:"status,omitempty"`
	CaseSeq       int                        `json:"case_seq"`
}

func newDataset() *dataset {
	return &dataset{
		Cases:    make(map[string]*models.Case),
		Keywords: make(map[string]*models.Keyword),
	}
}

// collection names a part of the dataset that changed
type collection string

const (
	collCases    collection = "cases"
	collKeywords collection = "keywords"
	collConfig   collection = "configuration"
	collStatus   collection = "status"
)

// DocStore keeps the dataset in memory. With a persist hook it mirrors every
// change to disk (the file backend); without one it is the memory backend.
type DocStore struct {
	mu      sync.RWMutex
	data    *dataset
	persist func(*dataset, collection) error
}

// NewMemoryStore creates an empty in-process store
func NewMemoryStore() *DocStore {
	return &DocStore{data: newDataset()}
}

func (s *DocStore) save(c collection) error {
	if s.persist == nil {
		return nil
	}
	return s.persist(s.data, c)
}

func (s *DocStore) CreateCase(ctx context.Context, nc models.NewCase) (*models.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.CaseSeq++
	c := newCaseRecord(nc, s.data.CaseSeq, now())
	s.data.Cases[c.ID] = &c
	if err := s.save(collCases); err != nil {
		delete(s.data.Cases, c.ID)
		s.data.CaseSeq--
		return nil, err
	}
	out := c
	return &out, nil
}

func (s *DocStore) GetCase(ctx context.Context, id string) (*models.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.data.Cases[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *c
	return &out, nil
}

func (s *DocStore) GetCaseByNumber(ctx context.Context, number string) (*models.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.data.Cases {
		if c.CaseNumber == number {
			out := *c
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (s *DocStore) ListCases(ctx context.Context) ([]models.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cases := make([]models.Case, 0, len(s.data.Cases))
	for _, c := range s.data.Cases {
		cases = append(cases, *c)
	}
	sortCasesNewestFirst(cases)
	return cases, nil
}

func (s *DocStore) UpdateCase(ctx context.Context, id string, u models.CaseUpdate) (*models.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.data.Cases[id]
	if !ok {
		return nil, ErrNotFound
	}
	updated := *c
	if err := applyCaseUpdate(&updated, u, now()); err != nil {
		return nil, err
	}
	s.data.Cases[id] = &updated
	if err := s.save(collCases); err != nil {
		s.data.Cases[id] = c
		return nil, err
	}
	out := updated
	return &out, nil
}

func (s *DocStore) AddKeyword(ctx context.Context, text string, active bool) (*models.Keyword, error) {
	k, err := newKeywordRecord(text, active, now())
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.data.Keywords {
		if existing.Keyword == k.Keyword {
			return nil, ErrDuplicate
		}
	}
	s.data.Keywords[k.ID] = &k
	if err := s.save(collKeywords); err != nil {
		delete(s.data.Keywords, k.ID)
		return nil, err
	}
	out := k
	return &out, nil
}

func (s *DocStore) ListKeywords(ctx context.Context) ([]models.Keyword, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keywords := make([]models.Keyword, 0, len(s.data.Keywords))
	for _, k := range s.data.Keywords {
		keywords = append(keywords, *k)
	}
	sortKeywordsNewestFirst(keywords)
	return keywords, nil
}

func (s *DocStore) GetKeywordByText(ctx context.Context, text string) (*models.Keyword, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, k := range s.data.Keywords {
		if k.Keyword == text {
			out := *k
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (s *DocStore) UpdateKeyword(ctx context.Context, id string, active bool) (*models.Keyword, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.data.Keywords[id]
	if !ok {
		return nil, ErrNotFound
	}
	updated := *k
	updated.IsActive = active
	s.data.Keywords[id] = &updated
	if err := s.save(collKeywords); err != nil {
		s.data.Keywords[id] = k
		return nil, err
	}
	out := updated
	return &out, nil
}

func (s *DocStore) RemoveKeyword(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.data.Keywords[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.data.Keywords, id)
	if err := s.save(collKeywords); err != nil {
		s.data.Keywords[id] = k
		return err
	}
	return nil
}

func (s *DocStore) GetActiveKeywordTexts(ctx context.Context) ([]string, error) {
	keywords, err := s.ListKeywords(ctx)
	if err != nil {
		return nil, err
	}
	var texts []string
	for _, k := range keywords {
		if k.IsActive {
			texts = append(texts, k.Keyword)
		}
	}
	return texts, nil
}

func (s *DocStore) GetConfiguration(ctx context.Context) (*models.Configuration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.data.Configuration == nil {
		return nil, ErrNotFound
	}
	out := *s.data.Configuration
	return &out, nil
}

func (s *DocStore) SaveConfiguration(ctx context.Context, c models.Configuration) (*models.Configuration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.data.Configuration
	c = prepareConfiguration(prev, c)
	s.data.Configuration = &c
	if err := s.save(collConfig); err != nil {
		s.data.Configuration = prev
		return nil, err
	}
	out := c
	return &out, nil
}

func (s *DocStore) GetSystemStatus(ctx context.Context) (*models.SystemStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data.Status == nil {
		st := models.DefaultSystemStatus()
		st.LastUpdated = now()
		s.data.Status = &st
		if err := s.save(collStatus); err != nil {
			s.data.Status = nil
			return nil, err
		}
	}
	out := *s.data.Status
	return &out, nil
}

func (s *DocStore) UpdateSystemStatus(ctx context.Context, u models.StatusUpdate) (*models.SystemStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.data.Status
	st := models.DefaultSystemStatus()
	if prev != nil {
		st = *prev
	}
	u.Apply(&st)
	st.LastUpdated = now()
	s.data.Status = &st
	if err := s.save(collStatus); err != nil {
		s.data.Status = prev
		return nil, err
	}
	out := st
	return &out, nil
}

func (s *DocStore) Close() error {
	return nil
}

package repository

import (
	"context"
	"strings"
	"sync"

	"github.com/proofhub/proof-notify/internal/domain"
)

// MockDirectoryRepository serves principals, customers and templates from
// maps. It implements both DirectoryRepository and TemplateRepository.
type MockDirectoryRepository struct {
	mu         sync.RWMutex
	principals map[string]*domain.Principal
	customers  map[string]*domain.Customer
	templates  map[string]*domain.Template

	// Lookups counts GetPrincipal calls so tests can assert nothing is cached.
	Lookups int

	GetPrincipalErr   error
	RecordSMTPTestErr error

	smtpTests []domain.SMTPTestResult
}

func NewMockDirectoryRepository() *MockDirectoryRepository {
	return &MockDirectoryRepository{
		principals: make(map[string]*domain.Principal),
		customers:  make(map[string]*domain.Customer),
		templates:  make(map[string]*domain.Template),
	}
}

func (m *MockDirectoryRepository) PutPrincipal(p *domain.Principal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *p
	if p.Profile != nil {
		prof := *p.Profile
		clone.Profile = &prof
	}
	m.principals[p.ID] = &clone
}

func (m *MockDirectoryRepository) PutCustomer(c *domain.Customer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *c
	m.customers[c.ID] = &clone
}

func (m *MockDirectoryRepository) PutTemplate(t *domain.Template) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *t
	m.templates[t.Key] = &clone
}

func (m *MockDirectoryRepository) GetPrincipal(_ context.Context, id string) (*domain.Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Lookups++
	if m.GetPrincipalErr != nil {
		return nil, m.GetPrincipalErr
	}
	p, ok := m.principals[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *p
	if p.Profile != nil {
		prof := *p.Profile
		clone.Profile = &prof
	}
	if p.LastSMTPTest != nil {
		last := *p.LastSMTPTest
		clone.LastSMTPTest = &last
	}
	return &clone, nil
}

func (m *MockDirectoryRepository) RecordSMTPTest(_ context.Context, res *domain.SMTPTestResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RecordSMTPTestErr != nil {
		return m.RecordSMTPTestErr
	}
	p, ok := m.principals[res.PrincipalID]
	if !ok {
		return domain.ErrNotFound
	}
	last := *res
	p.LastSMTPTest = &last
	m.smtpTests = append(m.smtpTests, *res)
	return nil
}

// SMTPTests returns every recorded test outcome in order.
func (m *MockDirectoryRepository) SMTPTests() []domain.SMTPTestResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.SMTPTestResult, len(m.smtpTests))
	copy(out, m.smtpTests)
	return out
}

func (m *MockDirectoryRepository) GetCustomer(_ context.Context, id string) (*domain.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.customers[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *c
	return &clone, nil
}

func (m *MockDirectoryRepository) GetCustomerByEmail(_ context.Context, email string) (*domain.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.customers {
		if strings.EqualFold(c.Email, email) {
			clone := *c
			return &clone, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockDirectoryRepository) GetTemplate(_ context.Context, key string) (*domain.Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.templates[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *t
	return &clone, nil
}

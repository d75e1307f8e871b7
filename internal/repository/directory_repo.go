package repository

import (
	"context"

	"github.com/proofhub/proof-notify/internal/domain"
)

// DirectoryRepository reads principals and customers owned by the CRUD
// application. The only write is the SMTP test outcome on a principal row.
type DirectoryRepository interface {
	GetPrincipal(ctx context.Context, id string) (*domain.Principal, error)
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	GetCustomerByEmail(ctx context.Context, email string) (*domain.Customer, error)
	// RecordSMTPTest stores the latest test send outcome for the principal.
	// Returns domain.ErrNotFound when the principal does not exist.
	RecordSMTPTest(ctx context.Context, result *domain.SMTPTestResult) error
}

// TemplateRepository looks up stored templates that override built-ins.
type TemplateRepository interface {
	GetTemplate(ctx context.Context, key string) (*domain.Template, error)
}

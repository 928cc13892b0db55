package firestore

import (
	"context"

	"cloud.google.com/go/firestore"

	domain "github.com/bloom-bouquet/api/internal/domain"
	platform "github.com/bloom-bouquet/api/internal/platform/firestore"
	"github.com/bloom-bouquet/api/internal/repositories"
)

type adminRepository struct {
	base *platform.BaseRepository[adminDoc]
}

func newAdminRepository(provider *platform.Provider) *adminRepository {
	return &adminRepository{
		base: platform.NewBaseRepository[adminDoc](provider, collectionAdmins, nil),
	}
}

var _ repositories.AdminAccountRepository = (*adminRepository)(nil)

func (r *adminRepository) ListActive(ctx context.Context) ([]domain.AdminAccount, error) {
	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("is_active", "==", true)
	})
	if err != nil {
		return nil, err
	}

	admins := make([]domain.AdminAccount, 0, len(docs))
	for _, doc := range docs {
		admins = append(admins, decodeAdmin(doc.ID, doc.Data))
	}
	return admins, nil
}

type customerRepository struct {
	base *platform.BaseRepository[customerDoc]
}

func newCustomerRepository(provider *platform.Provider) *customerRepository {
	return &customerRepository{
		base: platform.NewBaseRepository[customerDoc](provider, collectionCustomers, nil),
	}
}

var _ repositories.CustomerRepository = (*customerRepository)(nil)

func (r *customerRepository) FindByID(ctx context.Context, customerID string) (domain.CustomerProfile, error) {
	doc, err := r.base.Get(ctx, customerID)
	if err != nil {
		return domain.CustomerProfile{}, err
	}
	return decodeCustomer(doc.ID, doc.Data), nil
}

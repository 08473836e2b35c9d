package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/medbill/ledger/internal/cache"
	"github.com/medbill/ledger/internal/domain/catalog"
	"github.com/medbill/ledger/internal/domain/charge"
	ierr "github.com/medbill/ledger/internal/errors"
	"github.com/medbill/ledger/internal/types"
)

// DailyServiceResolver finds the catalog service a stay is charged for each day
type DailyServiceResolver interface {
	// Resolve walks the fallback chain for the stay. It returns nil without error when nothing matches.
	Resolve(ctx context.Context, stay *charge.Stay) (*catalog.Service, error)
}

type dailyServiceResolver struct {
	ServiceParams
}

func NewDailyServiceResolver(params ServiceParams) DailyServiceResolver {
	return &dailyServiceResolver{
		ServiceParams: params,
	}
}

type serviceLookup struct {
	department string
	name       string
}

// lookupChain lists the catalog lookups for a stay, most specific first
func (r *dailyServiceResolver) lookupChain(stay *charge.Stay) []serviceLookup {
	billing := r.Config.Billing

	if stay.Kind == types.StayKindMortuary {
		return []serviceLookup{
			{department: billing.MorgueDepartment, name: billing.StorageService},
		}
	}

	chain := make([]serviceLookup, 0, 4)
	if stay.WardType != "" {
		chain = append(chain, serviceLookup{department: billing.InpatientDepartment, name: string(stay.WardType)})
	}
	if billing.WardBedServiceSuffix != "" {
		chain = append(chain, serviceLookup{
			department: billing.InpatientDepartment,
			name:       strings.TrimSpace(fmt.Sprintf("%s %s", types.WardTypeGeneral, billing.WardBedServiceSuffix)),
		})
	}
	return append(chain,
		serviceLookup{department: billing.InpatientDepartment, name: billing.GenericBedService},
		serviceLookup{department: billing.InpatientDepartment, name: billing.StorageService},
	)
}

func (r *dailyServiceResolver) Resolve(ctx context.Context, stay *charge.Stay) (*catalog.Service, error) {
	for _, lookup := range r.lookupChain(stay) {
		key := cache.GenerateKey(cache.PrefixDailyServiceRule, strings.ToLower(lookup.department), strings.ToLower(lookup.name))
		if cached, ok := r.Cache.Get(ctx, key); ok {
			if svc, ok := cached.(*catalog.Service); ok {
				return svc, nil
			}
		}

		svc, err := r.CatalogRepo.FindService(ctx, lookup.department, lookup.name)
		if err != nil {
			if ierr.IsNotFound(err) {
				continue
			}
			return nil, err
		}

		r.Cache.Set(ctx, key, svc, 0)
		return svc, nil
	}

	r.Logger.Warnw("no daily service resolved for stay",
		"stay_id", stay.ID,
		"stay_kind", stay.Kind,
		"ward_type", stay.WardType,
		"ward_name", stay.WardName,
	)
	return nil, nil
}

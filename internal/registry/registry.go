package registry

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"mempoolScope/internal/abicache"
)

// Resolver returns the contract interface for an address.
type Resolver interface {
	Resolve(ctx context.Context, address common.Address) (*abicache.Interface, error)
}

// Factory is a contract that locates or creates trading pairs.
type Factory struct {
	Address   common.Address
	Interface *abicache.Interface
	Name      string
	Version   uint8
}

// Router receives user swap calls and delegates to its factories. Factories are
// shared between routers that list the same address.
type Router struct {
	Address   common.Address
	Interface *abicache.Interface
	Name      string
	Version   uint8
	Factories []*Factory
}

// Registry maps router addresses to routers. It is never mutated after Build.
type Registry struct {
	routers   map[common.Address]*Router
	order     []*Router
	factories []*Factory
}

// Build resolves every seeded router and factory and assembles the registry.
// Any unresolved seed fails the whole build.
func Build(ctx context.Context, seeds Seeds, resolver Resolver, logger *zap.Logger) (*Registry, error) {
	if resolver == nil {
		return nil, fmt.Errorf("resolver is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := seeds.Validate(); err != nil {
		return nil, err
	}

	factorySeeds := make(map[common.Address]FactorySeed, len(seeds.Factories))
	for _, seed := range seeds.Factories {
		factorySeeds[seed.Address] = seed
	}

	reg := &Registry{
		routers: make(map[common.Address]*Router, len(seeds.Routers)),
		order:   make([]*Router, 0, len(seeds.Routers)),
	}
	factories := make(map[common.Address]*Factory, len(seeds.Factories))

	for _, seed := range seeds.Routers {
		iface, err := resolver.Resolve(ctx, seed.Address)
		if err != nil {
			return nil, fmt.Errorf("router %s: %w", seed.Name, err)
		}

		router := &Router{
			Address:   seed.Address,
			Interface: iface,
			Name:      seed.Name,
			Version:   seed.Version,
			Factories: make([]*Factory, 0, len(seed.Factories)),
		}

		for _, address := range seed.Factories {
			factory, ok := factories[address]
			if !ok {
				factorySeed := factorySeeds[address]
				iface, err := resolver.Resolve(ctx, address)
				if err != nil {
					return nil, fmt.Errorf("factory %s: %w", factorySeed.Name, err)
				}
				factory = &Factory{
					Address:   address,
					Interface: iface,
					Name:      factorySeed.Name,
					Version:   factorySeed.Version,
				}
				factories[address] = factory
				reg.factories = append(reg.factories, factory)
			}
			router.Factories = append(router.Factories, factory)
		}

		reg.routers[router.Address] = router
		reg.order = append(reg.order, router)

		logger.Info("router registered",
			zap.String("name", router.Name),
			zap.String("address", router.Address.Hex()),
			zap.Uint8("version", router.Version),
			zap.Int("methods", len(iface.ABI.Methods)),
			zap.Int("factories", len(router.Factories)),
		)
	}

	return reg, nil
}

// FindByAddress returns the router deployed at address.
func (r *Registry) FindByAddress(address common.Address) (*Router, bool) {
	router, ok := r.routers[address]
	return router, ok
}

// Routers returns routers in seed order.
func (r *Registry) Routers() []*Router {
	out := make([]*Router, len(r.order))
	copy(out, r.order)
	return out
}

// Factories returns each distinct factory once, in first-referenced order.
func (r *Registry) Factories() []*Factory {
	out := make([]*Factory, len(r.factories))
	copy(out, r.factories)
	return out
}

// Len returns the number of routers.
func (r *Registry) Len() int {
	return len(r.order)
}

// Package resolver computes a subscriber's active entitlement set from the
// transaction ledger. Entitlement state is never stored: it is always derived
// from transactions, optionally cached with invalidation on ledger writes.
package resolver

import (
	"context"
	"sort"
	"time"

	"github.com/opencat-io/opencat/internal/domain/catalog"
	"github.com/opencat-io/opencat/internal/domain/subscriber"
	"github.com/opencat-io/opencat/internal/infrastructure/cache"
	"github.com/opencat-io/opencat/internal/shared/logger"
)

// ResolvedEntitlement is one active entitlement with the moment access ends.
// A nil ExpiresAt means no scheduled end (a non-expiring contributor).
type ResolvedEntitlement struct {
	Identifier string
	ExpiresAt  *time.Time
}

// Resolution is the resolver output: the entitlement set active at asOf and
// the next instant the set changes on its own. NextChangeAt is nil when no
// contributing transaction expires.
type Resolution struct {
	Entitlements []ResolvedEntitlement
	NextChangeAt *time.Time
}

// Identifiers returns the sorted entitlement identifiers of the resolution.
func (r *Resolution) Identifiers() []string {
	ids := make([]string, len(r.Entitlements))
	for i, e := range r.Entitlements {
		ids[i] = e.Identifier
	}
	return ids
}

// HasEntitlement reports whether the identifier is in the resolved set.
func (r *Resolution) HasEntitlement(identifier string) bool {
	for _, e := range r.Entitlements {
		if e.Identifier == identifier {
			return true
		}
	}
	return false
}

// SameSet reports whether two resolutions contain the same entitlement
// identifiers, ignoring order and expiry times.
func (r *Resolution) SameSet(other *Resolution) bool {
	if len(r.Entitlements) != len(other.Entitlements) {
		return false
	}
	for _, e := range r.Entitlements {
		if !other.HasEntitlement(e.Identifier) {
			return false
		}
	}
	return true
}

// Service resolves entitlements for subscribers. The cache is optional; a
// nil cache simply computes every time.
type Service struct {
	transactionRepo subscriber.TransactionRepository
	productRepo     catalog.ProductRepository
	cache           cache.EntitlementCache
	logger          logger.Interface
}

// NewService creates a resolver service. cache may be nil.
func NewService(
	transactionRepo subscriber.TransactionRepository,
	productRepo catalog.ProductRepository,
	entitlementCache cache.EntitlementCache,
	logger logger.Interface,
) *Service {
	return &Service{
		transactionRepo: transactionRepo,
		productRepo:     productRepo,
		cache:           entitlementCache,
		logger:          logger,
	}
}

// Resolve computes the entitlement set active at asOf. It never consults the
// cache, so ingestion's before/after comparisons always see fresh state.
//
// A transaction contributes its product's entitlements iff its status grants
// access (active, grace_period, billing_retry) and its expiry, when set, is
// strictly after asOf. Entitlement membership is a union: overlapping grants
// of the same entitlement never double-count. A subscriber with zero
// transactions resolves to the empty set.
func (s *Service) Resolve(ctx context.Context, subscriberID uint, asOf time.Time) (*Resolution, error) {
	txns, err := s.transactionRepo.ListBySubscriber(ctx, subscriberID)
	if err != nil {
		return nil, err
	}

	var granting []*subscriber.Transaction
	for _, t := range txns {
		if t.GrantsAccessAt(asOf) {
			granting = append(granting, t)
		}
	}
	if len(granting) == 0 {
		return &Resolution{}, nil
	}

	productIDs := make([]uint, 0, len(granting))
	seen := make(map[uint]bool, len(granting))
	for _, t := range granting {
		if !seen[t.ProductID()] {
			seen[t.ProductID()] = true
			productIDs = append(productIDs, t.ProductID())
		}
	}

	entsByProduct, err := s.productRepo.GetEntitlementsForProducts(ctx, productIDs)
	if err != nil {
		return nil, err
	}

	// Union the grants. Per entitlement, access ends at the latest expiry
	// among its contributors; any non-expiring contributor removes the end.
	type grant struct {
		expiresAt *time.Time
		unbounded bool
	}
	grants := make(map[string]*grant)
	var nextChangeAt *time.Time
	for _, t := range granting {
		if exp := t.ExpiresAt(); exp != nil {
			if nextChangeAt == nil || exp.Before(*nextChangeAt) {
				e := *exp
				nextChangeAt = &e
			}
		}
		for _, ent := range entsByProduct[t.ProductID()] {
			g, ok := grants[ent.Identifier()]
			if !ok {
				g = &grant{}
				grants[ent.Identifier()] = g
			}
			if t.ExpiresAt() == nil {
				g.unbounded = true
			} else if !g.unbounded {
				if g.expiresAt == nil || t.ExpiresAt().After(*g.expiresAt) {
					e := *t.ExpiresAt()
					g.expiresAt = &e
				}
			}
		}
	}

	resolution := &Resolution{
		Entitlements: make([]ResolvedEntitlement, 0, len(grants)),
		NextChangeAt: nextChangeAt,
	}
	for identifier, g := range grants {
		re := ResolvedEntitlement{Identifier: identifier}
		if !g.unbounded {
			re.ExpiresAt = g.expiresAt
		}
		resolution.Entitlements = append(resolution.Entitlements, re)
	}
	sort.Slice(resolution.Entitlements, func(i, j int) bool {
		return resolution.Entitlements[i].Identifier < resolution.Entitlements[j].Identifier
	})

	return resolution, nil
}

// ResolveCurrent resolves the entitlement set as of now, served from the
// cache when possible. Read paths use this; ingestion uses Resolve.
func (s *Service) ResolveCurrent(ctx context.Context, subscriberID uint) (*Resolution, error) {
	if s.cache != nil {
		cached, err := s.cache.GetResolution(ctx, subscriberID)
		if err != nil {
			s.logger.Warnw("entitlement cache read failed, resolving from ledger",
				"subscriber_id", subscriberID,
				"error", err)
		} else if cached != nil {
			return fromCached(cached), nil
		}
	}

	resolution, err := s.Resolve(ctx, subscriberID, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetResolution(ctx, subscriberID, toCached(resolution)); err != nil {
			s.logger.Warnw("entitlement cache write failed",
				"subscriber_id", subscriberID,
				"error", err)
		}
	}

	return resolution, nil
}

// Invalidate drops the cached resolution for a subscriber and, when the
// fresh resolution has a scheduled change, indexes it for the expiry sweep.
func (s *Service) Invalidate(ctx context.Context, subscriberID uint, next *time.Time) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateResolution(ctx, subscriberID); err != nil {
		s.logger.Warnw("entitlement cache invalidation failed",
			"subscriber_id", subscriberID,
			"error", err)
	}
	if next != nil {
		if err := s.cache.IndexNextChange(ctx, subscriberID, *next); err != nil {
			s.logger.Warnw("failed to index next entitlement change",
				"subscriber_id", subscriberID,
				"error", err)
		}
	}
}

// PopDueSubscribers drains the next-change index up to asOf. Without a cache
// there is no index and the caller scans the ledger directly; an index read
// failure degrades the same way.
func (s *Service) PopDueSubscribers(ctx context.Context, asOf time.Time, limit int) []uint {
	if s.cache == nil {
		return nil
	}
	due, err := s.cache.PopDueSubscribers(ctx, asOf, limit)
	if err != nil {
		s.logger.Warnw("next change index read failed, scanning ledger instead",
			"error", err)
		return nil
	}
	return due
}

func toCached(r *Resolution) *cache.CachedResolution {
	cached := &cache.CachedResolution{
		Entitlements: make([]cache.CachedEntitlement, len(r.Entitlements)),
		NextChangeAt: r.NextChangeAt,
		ComputedAt:   time.Now().UTC(),
	}
	for i, e := range r.Entitlements {
		cached.Entitlements[i] = cache.CachedEntitlement{
			Identifier: e.Identifier,
			ExpiresAt:  e.ExpiresAt,
		}
	}
	return cached
}

func fromCached(c *cache.CachedResolution) *Resolution {
	r := &Resolution{
		Entitlements: make([]ResolvedEntitlement, len(c.Entitlements)),
		NextChangeAt: c.NextChangeAt,
	}
	for i, e := range c.Entitlements {
		r.Entitlements[i] = ResolvedEntitlement{
			Identifier: e.Identifier,
			ExpiresAt:  e.ExpiresAt,
		}
	}
	return r
}

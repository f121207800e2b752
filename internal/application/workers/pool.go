package workers

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/disasterproject/fanout/internal/domain"
	"github.com/disasterproject/fanout/internal/ports"
)

// Account is one credentialed backend connection tracked for load-balancing
// and cost accounting. Accounts are created at pool construction, never
// removed, and mutated only through recordUsage.
type Account struct {
	name    string
	backend ports.Backend

	// tierPrices is the effective USD per-1K-token price per complexity
	// tier, resolved at construction from the catalog and any per-account
	// override.
	tierPrices map[domain.Complexity]float64

	mu       sync.Mutex
	requests int64
	tokens   int64
	cost     float64
}

// Name returns the account name.
func (a *Account) Name() string { return a.name }

// Backend returns the account's backend connection.
func (a *Account) Backend() ports.Backend { return a.backend }

// PricePer1K returns the effective per-1K-token price for a tier.
func (a *Account) PricePer1K(cx domain.Complexity) float64 {
	return a.tierPrices[cx]
}

// Stats returns a snapshot of the account's cumulative usage.
func (a *Account) Stats() domain.AccountStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return domain.AccountStats{
		Name:     a.name,
		Requests: a.requests,
		Tokens:   a.tokens,
		Cost:     a.cost,
	}
}

func (a *Account) recordUsage(tokens int, cost float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.requests++
	a.tokens += int64(tokens)
	a.cost += cost
}

func (a *Account) cumulativeTokens() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tokens
}

// AccountConfig describes one account handed to the pool.
type AccountConfig struct {
	Name       string
	Credential string

	// TierPrices optionally overrides the catalog price per tier, for
	// accounts with different billing terms. Missing tiers fall back to the
	// catalog price of the tier's model.
	TierPrices map[domain.Complexity]float64
}

// Pool manages the set of worker accounts. The load-balancing policy is
// fixed for the pool's lifetime; ties are always broken by insertion order.
type Pool struct {
	strategy domain.BalanceStrategy
	accounts []*Account
	byName   map[string]*Account
	logger   *zap.Logger

	mu     sync.Mutex
	cursor int
}

// NewPool builds a pool from the ordered account list, creating one backend
// connection per credential. An empty account list is a configuration
// error.
func NewPool(
	configs []AccountConfig,
	strategy domain.BalanceStrategy,
	catalog domain.Catalog,
	factory ports.BackendFactory,
	logger *zap.Logger,
) (*Pool, error) {
	if len(configs) == 0 {
		return nil, fmt.Errorf("worker pool: %w", domain.ErrNoWorkersAvailable)
	}

	pool := &Pool{
		strategy: strategy,
		accounts: make([]*Account, 0, len(configs)),
		byName:   make(map[string]*Account, len(configs)),
		logger:   logger,
	}

	tiers := []domain.Complexity{domain.ComplexitySimple, domain.ComplexityMedium, domain.ComplexityComplex}
	for _, cfg := range configs {
		if _, exists := pool.byName[cfg.Name]; exists {
			return nil, fmt.Errorf("duplicate account name %q", cfg.Name)
		}

		backend, err := factory(cfg.Credential)
		if err != nil {
			return nil, fmt.Errorf("create backend for account %q: %w", cfg.Name, err)
		}

		prices := make(map[domain.Complexity]float64, len(tiers))
		for _, cx := range tiers {
			if override, ok := cfg.TierPrices[cx]; ok {
				prices[cx] = override
				continue
			}
			prices[cx] = catalog.PricePer1K(catalog.ModelFor(cx))
		}

		account := &Account{
			name:       cfg.Name,
			backend:    backend,
			tierPrices: prices,
		}
		pool.accounts = append(pool.accounts, account)
		pool.byName[cfg.Name] = account
	}

	logger.Info("worker pool created",
		zap.Int("accounts", len(pool.accounts)),
		zap.String("balancing", string(strategy)))

	return pool, nil
}

// Acquire selects an account for a request at the given complexity tier
// under the pool's balancing policy. It fails only when the pool is empty.
func (p *Pool) Acquire(cx domain.Complexity) (*Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.accounts) == 0 {
		return nil, domain.ErrNoWorkersAvailable
	}

	switch p.strategy {
	case domain.BalanceRoundRobin:
		account := p.accounts[p.cursor%len(p.accounts)]
		p.cursor = (p.cursor + 1) % len(p.accounts)
		return account, nil

	case domain.BalanceLeastLoaded:
		return p.leastLoadedLocked(p.accounts), nil

	case domain.BalanceCostOptimized:
		cheapest := p.accounts[:0:0]
		best := p.accounts[0].PricePer1K(cx)
		for _, a := range p.accounts {
			price := a.PricePer1K(cx)
			switch {
			case price < best:
				best = price
				cheapest = append(cheapest[:0], a)
			case price == best:
				cheapest = append(cheapest, a)
			}
		}
		return p.leastLoadedLocked(cheapest), nil

	default:
		// Closed enum; config validation rejects anything else.
		return nil, fmt.Errorf("unknown balancing strategy: %q", p.strategy)
	}
}

// leastLoadedLocked picks the candidate with the fewest cumulative tokens,
// earliest-registered first on ties. Candidates preserve insertion order.
func (p *Pool) leastLoadedLocked(candidates []*Account) *Account {
	selected := candidates[0]
	min := selected.cumulativeTokens()
	for _, a := range candidates[1:] {
		if tokens := a.cumulativeTokens(); tokens < min {
			selected = a
			min = tokens
		}
	}
	return selected
}

// RecordUsage appends tokens and cost to the named account. Safe to call
// concurrently from multiple in-flight executions.
func (p *Pool) RecordUsage(accountName string, tokens int, cost float64) error {
	account, ok := p.byName[accountName]
	if !ok {
		return fmt.Errorf("unknown account %q", accountName)
	}
	account.recordUsage(tokens, cost)
	return nil
}

// Stats returns per-account usage snapshots in registration order.
func (p *Pool) Stats() []domain.AccountStats {
	stats := make([]domain.AccountStats, 0, len(p.accounts))
	for _, a := range p.accounts {
		stats = append(stats, a.Stats())
	}
	return stats
}

// Size returns the number of accounts in the pool.
func (p *Pool) Size() int {
	return len(p.accounts)
}

// Package credentials manages the process-wide set of interchangeable API
// keys per provider. Keys rotate round-robin; quota failures impose an
// exponentially growing cooldown, and invalid keys are retired permanently
// until an operator replaces them.
package credentials

import (
	"fmt"
	"os"
	"sync"
	"time"

	"vidqa/internal/domain"
	"vidqa/internal/metrics"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// State is the lifecycle state of a single credential.
type State string

const (
	StateAvailable   State = "available"
	StateCoolingDown State = "cooling_down"
	StateExhausted   State = "exhausted"
)

// Outcome is what a caller observed when using a credential.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeQuotaExceeded
	OutcomeInvalidCredential
)

// Credential is the handle handed to callers. The secret is carried by
// value; callers never mutate pool state directly.
type Credential struct {
	ID       string
	Provider string
	Secret   string
}

type entry struct {
	id            string
	secret        string
	state         State
	cooldownUntil time.Time
	streak        int
	inUse         bool
}

type providerSet struct {
	mu        sync.Mutex
	exclusive bool
	next      int
	creds     []*entry
}

// Pool holds credentials for all providers. Initialized once at process
// start; mutated only through Acquire/Report.
type Pool struct {
	mu           sync.RWMutex
	providers    map[string]*providerSet
	baseCooldown time.Duration
	maxCooldown  time.Duration
	now          func() time.Time
}

// Option tweaks pool construction.
type Option func(*Pool)

// WithCooldown overrides the base and cap of the quota cooldown schedule.
func WithCooldown(base, max time.Duration) Option {
	return func(p *Pool) {
		p.baseCooldown = base
		p.maxCooldown = max
	}
}

// WithClock injects the time source. Tests use this.
func WithClock(now func() time.Time) Option {
	return func(p *Pool) { p.now = now }
}

// NewPool constructs an empty pool with a 30s base cooldown capped at 15m.
func NewPool(opts ...Option) *Pool {
	p := &Pool{
		providers:    make(map[string]*providerSet),
		baseCooldown: 30 * time.Second,
		maxCooldown:  15 * time.Minute,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Register adds a provider with its ordered secrets. exclusive forbids
// handing one credential to two concurrent callers.
func (p *Pool) Register(provider string, secrets []string, exclusive bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	set := &providerSet{exclusive: exclusive}
	for i, secret := range secrets {
		if secret == "" {
			continue
		}
		set.creds = append(set.creds, &entry{
			id:     fmt.Sprintf("%s-%d", provider, i),
			secret: secret,
			state:  StateAvailable,
		})
	}
	p.providers[provider] = set
}

// Size returns how many credentials are registered for a provider.
func (p *Pool) Size(provider string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	set, ok := p.providers[provider]
	if !ok {
		return 0
	}
	return len(set.creds)
}

// Acquire hands out the next usable credential for a provider in
// round-robin order, reviving cooled-down credentials whose window has
// elapsed. It fails with domain.ErrPoolExhausted when nothing is usable.
func (p *Pool) Acquire(provider string) (Credential, error) {
	p.mu.RLock()
	set, ok := p.providers[provider]
	p.mu.RUnlock()
	if !ok || len(set.creds) == 0 {
		return Credential{}, fmt.Errorf("provider %s: %w", provider, domain.ErrPoolExhausted)
	}

	set.mu.Lock()
	defer set.mu.Unlock()
	now := p.now()
	n := len(set.creds)
	for i := 0; i < n; i++ {
		idx := (set.next + i) % n
		c := set.creds[idx]
		if c.state == StateCoolingDown && !now.Before(c.cooldownUntil) {
			c.state = StateAvailable
		}
		if c.state != StateAvailable {
			continue
		}
		if set.exclusive && c.inUse {
			continue
		}
		c.inUse = true
		set.next = (idx + 1) % n
		return Credential{ID: c.id, Provider: provider, Secret: c.secret}, nil
	}
	return Credential{}, fmt.Errorf("provider %s: %w", provider, domain.ErrPoolExhausted)
}

// Report feeds the outcome of using a credential back into the pool.
func (p *Pool) Report(cred Credential, outcome Outcome) {
	p.mu.RLock()
	set, ok := p.providers[cred.Provider]
	p.mu.RUnlock()
	if !ok {
		return
	}
	set.mu.Lock()
	defer set.mu.Unlock()
	for _, c := range set.creds {
		if c.id != cred.ID {
			continue
		}
		c.inUse = false
		switch outcome {
		case OutcomeSuccess:
			c.streak = 0
			if c.state == StateCoolingDown {
				c.state = StateAvailable
			}
		case OutcomeQuotaExceeded:
			c.streak++
			cooldown := p.baseCooldown << (c.streak - 1)
			if cooldown > p.maxCooldown || cooldown <= 0 {
				cooldown = p.maxCooldown
			}
			c.state = StateCoolingDown
			c.cooldownUntil = p.now().Add(cooldown)
			metrics.CredentialCooldowns.WithLabelValues(cred.Provider).Inc()
		case OutcomeInvalidCredential:
			// Requires operator intervention; never auto-recovered.
			c.state = StateExhausted
		}
		return
	}
}

// CooldownUntil exposes a credential's cooldown deadline for inspection.
func (p *Pool) CooldownUntil(cred Credential) (time.Time, bool) {
	p.mu.RLock()
	set, ok := p.providers[cred.Provider]
	p.mu.RUnlock()
	if !ok {
		return time.Time{}, false
	}
	set.mu.Lock()
	defer set.mu.Unlock()
	for _, c := range set.creds {
		if c.id == cred.ID {
			return c.cooldownUntil, c.state == StateCoolingDown
		}
	}
	return time.Time{}, false
}

// SecretsFromEnv collects the secrets for one provider from the
// environment: NAME, NAME_1, NAME_2, ... stopping at the first gap.
func SecretsFromEnv(name string) []string {
	var secrets []string
	if v := os.Getenv(name); v != "" {
		secrets = append(secrets, v)
	}
	for i := 1; ; i++ {
		v := os.Getenv(fmt.Sprintf("%s_%d", name, i))
		if v == "" {
			break
		}
		secrets = append(secrets, v)
	}
	return secrets
}

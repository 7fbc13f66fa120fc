package remote

import (
	"sync"
)

// Pool caches Hosts by target identity so callers driving a fleet get one
// shared master session per machine.
type Pool struct {
	mu    sync.Mutex
	opts  []Option
	hosts map[string]*Host
}

// NewPool returns a pool whose Hosts are constructed with opts.
func NewPool(opts ...Option) *Pool {
	return &Pool{
		opts:  opts,
		hosts: make(map[string]*Host),
	}
}

// Get returns the Host for target, creating it on first use.
func (p *Pool) Get(target Target) (*Host, error) {
	key := target.WithDefaults().Addr()

	p.mu.Lock()
	defer p.mu.Unlock()
	if h, ok := p.hosts[key]; ok {
		return h, nil
	}

	h, err := New(target, p.opts...)
	if err != nil {
		return nil, err
	}
	p.hosts[key] = h
	return h, nil
}

// CloseAll tears down every cached host's master session and empties the
// pool.
func (p *Pool) CloseAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for _, h := range p.hosts {
		if err := h.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.hosts = make(map[string]*Host)
	return firstErr
}

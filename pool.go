package openpose

import (
	"context"
	"fmt"
	"sync"
)

// PoolPolicy defines how a RequestPool behaves when all slots are busy
type PoolPolicy int

const (
	// PoolBlock makes Acquire wait until a slot becomes idle
	PoolBlock PoolPolicy = 0
	// PoolFailFast makes Acquire return ErrPoolExhausted immediately
	PoolFailFast PoolPolicy = 1
)

// String returns a readable description of the PoolPolicy
func (p PoolPolicy) String() string {
	switch p {
	case PoolBlock:
		return "block"
	case PoolFailFast:
		return "failfast"
	default:
		return fmt.Sprintf("unknown policy %d", int(p))
	}
}

// ParsePoolPolicy converts a policy name into a PoolPolicy
func ParsePoolPolicy(s string) (PoolPolicy, error) {
	switch s {
	case "", "block":
		return PoolBlock, nil
	case "failfast":
		return PoolFailFast, nil
	default:
		return PoolBlock, fmt.Errorf("unknown pool policy %q", s)
	}
}

// Slot is a reusable request handed out by a RequestPool
type Slot struct {
	// index of the slot in the pool
	index int
	// Request is the executor request owned by the slot
	Request Request
}

// RequestPool is a fixed size pool of reusable executor requests.  Each slot
// moves between the Idle and Busy states.
type RequestPool struct {
	// mu guards busy and inUse.  It may be shared with the owning Pipeline
	mu *sync.Mutex
	// idleCond is broadcast when a slot returns to idle
	idleCond *sync.Cond
	// idle slots ready to be handed out
	idle chan *Slot
	// all slots in the pool
	slots []*Slot
	// busy bitmap indexed by slot index
	busy  []bool
	inUse int
	// policy when no slot is idle
	policy PoolPolicy
	closed bool
	close  sync.Once
}

// NewRequestPool creates a pool of size requests from the executor
func NewRequestPool(exec Executor, size int, policy PoolPolicy) (*RequestPool, error) {
	return newRequestPool(exec, size, policy, &sync.Mutex{})
}

// newRequestPool creates a pool guarded by the given mutex
func newRequestPool(exec Executor, size int, policy PoolPolicy,
	mu *sync.Mutex) (*RequestPool, error) {

	if size <= 0 {
		return nil, fmt.Errorf("request pool size must be positive, got %d", size)
	}

	p := &RequestPool{
		mu:       mu,
		idleCond: sync.NewCond(mu),
		idle:     make(chan *Slot, size),
		slots:    make([]*Slot, 0, size),
		busy:     make([]bool, size),
		policy:   policy,
	}

	for i := 0; i < size; i++ {
		req, err := exec.NewRequest()

		if err != nil {
			// close any requests that may have been created before receiving
			// the error
			p.Close()
			return nil, fmt.Errorf("error creating request %d: %w", i, err)
		}

		slot := &Slot{index: i, Request: req}
		p.slots = append(p.slots, slot)
		p.idle <- slot
	}

	return p, nil
}

// Acquire an idle slot and mark it busy.  With the PoolBlock policy it waits
// until a slot is released or ctx is done, with PoolFailFast it returns
// ErrPoolExhausted if no slot is idle.
func (p *RequestPool) Acquire(ctx context.Context) (*Slot, error) {

	var slot *Slot
	var ok bool

	if p.policy == PoolFailFast {
		select {
		case slot, ok = <-p.idle:
		default:
			return nil, ErrPoolExhausted
		}

	} else {
		select {
		case slot, ok = <-p.idle:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if !ok {
		return nil, ErrPoolClosed
	}

	p.mu.Lock()

	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}

	p.busy[slot.index] = true
	p.inUse++
	p.mu.Unlock()

	return slot, nil
}

// Release a busy slot back to the pool
func (p *RequestPool) Release(slot *Slot) {
	p.mu.Lock()
	p.releaseLocked(slot)
	p.mu.Unlock()
}

// releaseLocked moves the slot to idle, mu must be held
func (p *RequestPool) releaseLocked(slot *Slot) {

	if !p.busy[slot.index] {
		return
	}

	p.busy[slot.index] = false
	p.inUse--

	if !p.closed {
		select {
		case p.idle <- slot:
		default:
			// pool is full
		}
	}

	p.idleCond.Broadcast()
}

// InUse returns the number of busy slots
func (p *RequestPool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inUse
}

// inUseLocked returns the number of busy slots, mu must be held
func (p *RequestPool) inUseLocked() int {
	return p.inUse
}

// Size returns the number of slots in the pool
func (p *RequestPool) Size() int {
	return len(p.slots)
}

// WaitForTotalCompletion blocks until all slots are idle or ctx is done
func (p *RequestPool) WaitForTotalCompletion(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		p.mu.Lock()
		p.idleCond.Broadcast()
		p.mu.Unlock()
	})
	defer stop()

	for p.inUse > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		p.idleCond.Wait()
	}

	return nil
}

// Close the pool and all requests in it.  Requests still running are closed
// as well so callers should WaitForTotalCompletion first.
func (p *RequestPool) Close() error {

	var firstErr error

	p.close.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.idle)
		p.mu.Unlock()

		// drain idle slots so no further Acquire can succeed
		for range p.idle {
		}

		for _, slot := range p.slots {
			if err := slot.Request.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	})

	return firstErr
}

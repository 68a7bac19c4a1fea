package optimistic

import "context"

// Pending is the outcome of one mutation. It completes exactly once,
// after the store has been reconciled.
type Pending struct {
	done chan struct{}
	err  error
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

func completed(err error) *Pending {
	p := newPending()
	p.finish(err)
	return p
}

func (p *Pending) finish(err error) {
	p.err = err
	close(p.done)
}

// Done is closed when the mutation has been committed or rolled back.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Err returns the remote error after Done is closed, nil on success.
func (p *Pending) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Wait blocks until the mutation completes or ctx is done. Cancelling
// ctx does not cancel the mutation.
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

package resilience

import "context"

// First runs ops concurrently, each on its own child token, and returns the
// first successful outcome. The remaining ops are cancelled as soon as one
// succeeds. If every op fails, First returns the error of the last one to
// finish. If ctx ends first, it returns a cancelled outcome.
//
// The losing ops are signalled, not awaited: First returns without waiting
// for them to observe their cancelled tokens.
func First[O any](ctx context.Context, ops ...Operation[O]) Outcome[O] {
	if len(ops) == 0 {
		return Fail[O](invalidConfig("first needs at least one operation"))
	}

	tok, release := acquireToken(ctx)
	defer release()

	if err := tok.Check(); err != nil {
		return Fail[O](err)
	}

	children := make([]*Token, len(ops))
	for i := range ops {
		children[i] = tok.Child()
	}
	defer func() {
		for _, child := range children {
			child.release()
		}
	}()

	results := make(chan Outcome[O], len(ops))
	for i, op := range ops {
		child := children[i]
		go func() {
			results <- protect(child, op)
		}()
	}

	var last Outcome[O]
	for range ops {
		select {
		case out := <-results:
			if out.OK() {
				return out
			}
			last = out
		case <-tok.Done():
			return Fail[O](cancelledError(tok))
		}
	}
	return last
}

// internal/login/firstmatch.go
package login

import "context"

// Probe evaluates one candidate. ok=false with a nil error means "no match,
// try the next one"; a non-nil error stops the evaluation.
type Probe[C any, R any] func(ctx context.Context, candidate C) (result R, ok bool, err error)

// FirstMatch evaluates candidates strictly in order and returns the result of
// the first probe that matches. Later candidates are never evaluated once a
// match is found. matched is the index of the winning candidate, or -1.
func FirstMatch[C any, R any](ctx context.Context, candidates []C, probe Probe[C, R]) (result R, matched int, err error) {
	for i, c := range candidates {
		if err := ctx.Err(); err != nil {
			return result, -1, err
		}
		r, ok, err := probe(ctx, c)
		if err != nil {
			return result, -1, err
		}
		if ok {
			return r, i, nil
		}
	}
	return result, -1, nil
}

package temporal

import "go.temporal.io/sdk/workflow"

type barrierMember struct {
	name   string
	future workflow.Future
	out    any
}

type memberFailure struct {
	name string
	err  error
}

// barrier is a fan-in over futures that were all dispatched before wait is
// called. It waits for every member, successful or not, and reports the
// failures in registration order.
type barrier struct {
	members []barrierMember
}

func (b *barrier) add(name string, f workflow.Future, out any) {
	b.members = append(b.members, barrierMember{name: name, future: f, out: out})
}

func (b *barrier) wait(ctx workflow.Context) []memberFailure {
	var failures []memberFailure
	for _, m := range b.members {
		if err := m.future.Get(ctx, m.out); err != nil {
			failures = append(failures, memberFailure{name: m.name, err: err})
		}
	}
	return failures
}

// failure returns the error of the named member, or nil if it succeeded.
func failure(failures []memberFailure, name string) error {
	for _, f := range failures {
		if f.name == name {
			return f.err
		}
	}
	return nil
}

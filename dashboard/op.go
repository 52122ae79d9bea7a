package dashboard

// Op tracks the remote side of a command whose local effect is already
// committed.
type Op struct {
	done    chan struct{}
	err     error
	summary *ImportSummary
}

func newOp() *Op {
	return &Op{done: make(chan struct{})}
}

func (op *Op) finish(err error) {
	op.err = err
	close(op.done)
}

// Done is closed once every remote call and any follow-up refresh finished.
func (op *Op) Done() <-chan struct{} { return op.done }

// Wait blocks until Done and returns the first remote error, if any.
func (op *Op) Wait() error {
	<-op.done
	return op.err
}

// Summary waits for the operation and reports the outcome of its file
// imports. ok is false for operations that imported nothing.
func (op *Op) Summary() (s ImportSummary, ok bool) {
	<-op.done
	if op.summary == nil {
		return ImportSummary{}, false
	}
	return *op.summary, true
}

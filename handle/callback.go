package handle

import (
	"github.com/google/uuid"

	"github.com/sage-x-project/sage-vault/crypto/aead"
	"github.com/sage-x-project/sage-vault/internal/logger"
	"github.com/sage-x-project/sage-vault/internal/metrics"
)

// Callback guarantees an async operation's completion function runs
// exactly once, even if the operation returns early on a panic or an
// unhandled code path. Grounded on the original implementation's
// EnsureCallback/Drop pair: resolve() there consumes self and forgets the
// value so Drop never fires; an un-resolved value's Drop invokes the
// callback with Unexpected. Go has no destructors, so Finalize plays the
// role Drop played there and must be deferred by the goroutine that runs
// the operation; spawn in async.go does this for every *Async method.
//
// id is a correlation id minted once per callback and carried through
// every log line this callback emits, so a dropped callback's log entry
// can be matched back to the task that created it.
type Callback[T any] struct {
	complete func(T, error)
	resolved bool
	id       string
}

// NewCallback wraps complete so it is guaranteed to run exactly once.
// Whoever runs the operation must `defer cb.Finalize()`; passing cb to an
// *Async method leaves that to spawn.
func NewCallback[T any](complete func(T, error)) *Callback[T] {
	return &Callback[T]{complete: complete, id: uuid.NewString()}
}

// Resolve runs the completion function with (value, nil). A second call
// is a no-op, matching the move-only consumption of the original type.
func (c *Callback[T]) Resolve(value T) {
	c.resolveOnce(value, nil)
}

// Reject runs the completion function with (zero value, err).
func (c *Callback[T]) Reject(err error) {
	var zero T
	c.resolveOnce(zero, err)
}

func (c *Callback[T]) resolveOnce(value T, err error) {
	if c.resolved {
		return
	}
	c.resolved = true
	metrics.CallbacksResolved.WithLabelValues("resolved").Inc()
	c.complete(value, err)
}

// Finalize must be deferred by the goroutine that runs the operation. If Resolve or
// Reject already ran, this is a no-op; otherwise it reports KindUnexpected,
// the same fate an un-resolved EnsureCallback gets from its Drop impl, and
// logs the drop under this callback's correlation id.
func (c *Callback[T]) Finalize() {
	if c.resolved {
		return
	}
	logger.Warn("async callback dropped without resolving", logger.String("correlation_id", c.id))
	metrics.CallbacksResolved.WithLabelValues("dropped").Inc()
	c.resolved = true
	var zero T
	c.complete(zero, aead.Err(aead.KindUnexpected))
}

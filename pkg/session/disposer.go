package session

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/extrepo/pkg/ledger"
	"github.com/matzehuels/extrepo/pkg/observability"
	"github.com/matzehuels/extrepo/pkg/sandbox"
)

// Disposer tears sessions down.
//
// Disposal runs after the resolution work has completed, so it never fails
// the surrounding operation: sandbox removal and ledger errors are logged and
// reported to observability.Session().OnDisposeError instead of returned.
// A Disposer is safe for concurrent use; sessions may be disposed in any order.
type Disposer struct {
	store  *sandbox.Store
	ledger ledger.Ledger
	logger *log.Logger
}

// NewDisposer creates a Disposer. store must be the store the sessions'
// sandboxes were allocated from; ledger may be nil.
func NewDisposer(store *sandbox.Store, l ledger.Ledger, logger *log.Logger) *Disposer {
	if store == nil {
		store = sandbox.NewStore("")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Disposer{store: store, ledger: l, logger: logger}
}

// Dispose removes the session's sandbox and releases its ledger entry.
//
// Dispose is idempotent: a nil session, or a session that was already
// disposed successfully, is a no-op. Disposing again after a failed removal
// retries the removal. Concurrent calls on one session are serialized, so
// OnDispose fires once per successful removal.
func (d *Disposer) Dispose(ctx context.Context, s *Session) {
	if s == nil {
		return
	}
	s.disposeMu.Lock()
	defer s.disposeMu.Unlock()
	if s.disposed.Load() && !s.removeFailed {
		return
	}
	s.disposed.Store(true)
	ctx = context.WithoutCancel(ctx)
	hooks := observability.Session()

	err := d.store.Destroy(ctx, s.LocalRepository)
	s.removeFailed = err != nil
	if err != nil {
		d.logger.Warn("dispose session: remove sandbox",
			"session", s.ID,
			"path", s.LocalRepository,
			"err", err)
		hooks.OnDisposeError(ctx, s.ID, s.LocalRepository, err)
	}

	if d.ledger != nil {
		if err := d.ledger.Release(ctx, s.ID); err != nil {
			d.logger.Warn("dispose session: release ledger entry", "session", s.ID, "err", err)
			hooks.OnDisposeError(ctx, s.ID, s.LocalRepository, err)
		}
	}

	hooks.OnDispose(ctx, s.ID, s.LocalRepository)
	d.logger.Debug("session disposed", "session", s.ID, "path", s.LocalRepository)
}

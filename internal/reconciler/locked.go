package reconciler

import (
	"context"

	pkgerrors "github.com/crmbridge/crmbridge-backend/pkg/errors"
)

// RunLock coordinates exclusive reconciliation runs across triggers.
type RunLock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type lockedService struct {
	inner Service
	lock  RunLock
}

// NewLockedService wraps a reconciler so on-demand runs share the overlap
// lock with the scheduled ones. A run that finds the lock held is rejected,
// not queued.
func NewLockedService(inner Service, lock RunLock) Service {
	return &lockedService{inner: inner, lock: lock}
}

func (s *lockedService) Reconcile(ctx context.Context) (*Summary, error) {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquiring sync lock")
	}
	if !locked {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "a stock sync is already running")
	}
	defer s.lock.Release(ctx)

	return s.inner.Reconcile(ctx)
}

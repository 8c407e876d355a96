package flows

import (
	"context"

	"github.com/MrEthical07/goSession/api"
)

// RestoreStore is the part of session.Store the restore flow needs.
type RestoreStore interface {
	IsAuthenticated(ctx context.Context) bool
	Resume(ctx context.Context) error
}

// RestoreDeps captures start-up restore dependencies.
type RestoreDeps struct {
	Store     RestoreStore
	FetchUser func(ctx context.Context) (*api.User, error)
}

// RestoreResult carries the restored user. HadCredential is false when nothing was
// persisted, which is a valid signed-out resting state rather than a failure.
type RestoreResult struct {
	Failure       FailureKind
	Err           error
	User          *api.User
	HadCredential bool
}

// RunRestore resumes a persisted session: it re-arms the refresh timer and fetches the
// user through the authenticated path.
func RunRestore(ctx context.Context, deps RestoreDeps) RestoreResult {
	if !deps.Store.IsAuthenticated(ctx) {
		return RestoreResult{}
	}
	if err := deps.Store.Resume(ctx); err != nil {
		return RestoreResult{Failure: FailureStore, Err: err, HadCredential: true}
	}

	user, err := deps.FetchUser(ctx)
	if err != nil {
		return RestoreResult{Failure: Classify(err), Err: err, HadCredential: true}
	}
	return RestoreResult{User: user, HadCredential: true}
}

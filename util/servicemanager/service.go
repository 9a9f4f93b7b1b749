package servicemanager

import (
	"context"
)

// Service is a long running component managed by a ServiceManager.
type Service interface {
	Init(ctx context.Context) error

	// Start runs the service until ctx is done. It closes readyCh once the
	// service accepts work.
	Start(ctx context.Context, readyCh chan<- struct{}) error

	Stop(ctx context.Context) error
	Health(ctx context.Context, checkLiveness bool) (int, string, error)
}

// Package system provides the lifecycle-managed Service contract and the
// Manager the Supervisor owns. Components are explicitly constructed and
// injected rather than reached through an ambient singleton.
package system

import "context"

// Service represents a lifecycle-managed component that a Manager starts
// and stops deterministically. The agents and the TransactionEngine do not
// implement it.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

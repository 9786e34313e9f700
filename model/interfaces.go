package model

import "context"

// Store is the durable punishment history, keyed by target identity.
type Store interface {
	// Load returns every record of the target ordered by AppliedAt.
	Load(ctx context.Context, targetID string) ([]Punishment, error)
	Save(ctx context.Context, p Punishment) error
	// Update persists the reversal fields of an existing record.
	Update(ctx context.Context, p Punishment) error
	// Supersede persists the reversed prior records and inserts their
	// replacement atomically. Either every write lands or none does.
	Supersede(ctx context.Context, reversed []Punishment, next Punishment) error
}

// IdentityResolver maps a display name to a stable identity.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, name string) (string, error)
}

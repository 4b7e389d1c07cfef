package bootstrap

import "context"

// Seeder loads reference data once the schema is migrated.
type Seeder interface {
	Name() string
	Seed(ctx context.Context) error
}

// SeederFunc adapts a bare function to the Seeder interface.
type SeederFunc struct {
	Label string
	Fn    func(ctx context.Context) error
}

func (f SeederFunc) Name() string { return f.Label }

func (f SeederFunc) Seed(ctx context.Context) error { return f.Fn(ctx) }

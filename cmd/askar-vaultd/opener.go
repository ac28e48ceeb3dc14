package main

import (
	"fmt"

	"github.com/sage-x-project/sage-vault/storage"
	"github.com/sage-x-project/sage-vault/storage/memory"
	"github.com/sage-x-project/sage-vault/storage/postgres"
)

// newOpener picks the storage.Opener implementation the --backend flag
// names. memory is the reference driver used by tests and local runs;
// postgres expects --uri to carry a postgres:// DSN.
func newOpener() (storage.Opener, error) {
	switch backend {
	case "", "memory":
		return memory.NewOpener(), nil
	case "postgres":
		return postgres.NewOpener(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q (valid: memory, postgres)", backend)
	}
}

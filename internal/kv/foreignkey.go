package kv

import (
	"fmt"

	"github.com/pbinitiative/resourced/internal/profile"
)

// CheckForeignKey verifies that key resolves to a row in referenced,
// returning ErrForeignKeyViolation if it doesn't. The check only runs
// outside production: in a correctly functioning system every foreign key
// write is guaranteed valid by the writer that produced it, so paying for
// the extra lookup on every write is only worth it while developing and
// testing against that assumption.
func CheckForeignKey[K, V any](tx *Transaction, referenced *ColumnFamily[K, V], key K) error {
	if !profile.Current.ValidatesForeignKeys() {
		return nil
	}
	found, err := referenced.Exists(tx, key)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("foreign key %v not found in %s: %w", key, referenced.name, ErrForeignKeyViolation)
	}
	return nil
}

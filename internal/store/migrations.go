package store

import "fmt"

func (s *SQLStore) migrate() error {
	for _, m := range s.dialect.Migrations() {
		if _, err := s.db.Exec(m); err != nil {
			// Dialects without IF NOT EXISTS report the object as already
			// present; treat that as a no-op so migrations stay idempotent.
			if s.dialect.IsAlreadyExists(err) {
				continue
			}
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

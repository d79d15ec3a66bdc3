package store

// ExecForTest runs a raw statement against the underlying database,
// for tests that need to corrupt a row directly (e.g. to exercise
// recoverJSON). This file only compiles during `go test`.
func ExecForTest(s *Store, query string, args ...any) error {
	_, err := s.db.Exec(query, args...)
	return err
}

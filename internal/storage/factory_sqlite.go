//go:build sqlite

package storage

// DefaultStoreKind prefers sqlite when the backend is compiled in.
func DefaultStoreKind() string {
	return "sqlite"
}

func newSQLiteStore(path string) (Store, error) {
	if path == "" {
		path = "bioevo.db"
	}
	return NewSQLiteStore(path), nil
}

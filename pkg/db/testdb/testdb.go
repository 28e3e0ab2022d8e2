// Package testdb opens throwaway SQLite databases with the full schema for
// repository and engine tests.
package testdb

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/khatabill/khatabill-backend/pkg/db"
	"github.com/khatabill/khatabill-backend/pkg/db/models"
)

// Open returns a migrated client backed by a file database in t.TempDir().
// File databases (not shared memory) are used so concurrent transactions
// contend on a real lock.
func Open(t testing.TB) *db.Client {
	t.Helper()

	path := filepath.Join(t.TempDir(), "khatabill_"+uuid.NewString()+".db")
	conn, err := gorm.Open(sqlite.Open(db.SQLiteDSN(path)), db.GormConfig(nil, 0))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}

	client := db.NewFromGorm(conn)
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

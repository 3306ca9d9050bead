package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
)

func TestSQLiteKVSetGetDelete(t *testing.T) {
	ctx := context.Background()
	kv, err := NewSQLiteKV(filepath.Join(t.TempDir(), "sub", "togpt.db"))
	if err != nil {
		t.Fatalf("NewSQLiteKV: %v", err)
	}
	defer kv.Close()

	if _, ok, err := kv.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get(missing) ok=%v err=%v", ok, err)
	}

	if err := kv.Set(ctx, "k", []byte{0x00, 0xff, 'a'}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := kv.Set(ctx, "k", []byte("v2")); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	got, ok, err := kv.Get(ctx, "k")
	if err != nil || !ok || string(got) != "v2" {
		t.Fatalf("Get = %q, %v, %v", got, ok, err)
	}

	if err := kv.Set(ctx, "other", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := kv.Delete(ctx, "k", "other", "never-set"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := kv.Get(ctx, "k"); ok {
		t.Fatal("k still present after delete")
	}
}

func TestSQLiteKVPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "togpt.db")

	kv, err := NewSQLiteKV(path)
	if err != nil {
		t.Fatal(err)
	}
	store := NewStore(kv, nil)
	store.SaveChats(ctx, sampleChats())
	store.SaveActiveChat(ctx, "c2")
	kv.Close()

	kv2, err := NewSQLiteKV(path)
	if err != nil {
		t.Fatal(err)
	}
	defer kv2.Close()
	store2 := NewStore(kv2, nil)
	if got := len(store2.LoadChats(ctx)); got != 2 {
		t.Fatalf("got %d chats after reopen, want 2", got)
	}
	if got := store2.LoadActiveChat(ctx); got != "c2" {
		t.Fatalf("active=%q after reopen", got)
	}
}

func TestSQLiteKVMigratesPreVersionDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`CREATE TABLE kv (key TEXT PRIMARY KEY, value BLOB NOT NULL)`); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`INSERT INTO kv (key, value) VALUES ('togpt-active-chat', 'legacy')`); err != nil {
		t.Fatal(err)
	}
	db.Close()

	kv, err := NewSQLiteKV(path)
	if err != nil {
		t.Fatalf("NewSQLiteKV on old db: %v", err)
	}
	defer kv.Close()

	ctx := context.Background()
	got, ok, err := kv.Get(ctx, KeyActiveChat)
	if err != nil || !ok || string(got) != "legacy" {
		t.Fatalf("legacy value = %q, %v, %v", got, ok, err)
	}
	if err := kv.Set(ctx, "new", []byte("v")); err != nil {
		t.Fatalf("Set after migration: %v", err)
	}

	var version int
	if err := kv.db.QueryRow("SELECT version FROM schema_version").Scan(&version); err != nil {
		t.Fatal(err)
	}
	if version != schemaVersion {
		t.Fatalf("schema version=%d, want %d", version, schemaVersion)
	}
}

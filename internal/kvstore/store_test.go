package kvstore

import (
	"path/filepath"
	"testing"

	dbmodel "deskchat/cli/internal/db"
)

func newGORMStore(t *testing.T) *GORM {
	t.Helper()
	gdb, err := dbmodel.Open(filepath.Join(t.TempDir(), "deskchat.db"))
	if err != nil {
		t.Fatalf("open db failed: %v", err)
	}
	t.Cleanup(func() { _ = dbmodel.Close(gdb) })
	st, err := NewGORM(gdb)
	if err != nil {
		t.Fatalf("new store failed: %v", err)
	}
	return st
}

func TestStores_PutGetDelete(t *testing.T) {
	stores := map[string]Store{
		"gorm":   newGORMStore(t),
		"memory": NewMemory(),
	}
	for name, st := range stores {
		t.Run(name, func(t *testing.T) {
			if _, ok, err := st.Get("chat-history"); err != nil || ok {
				t.Fatalf("expected missing key, ok=%v err=%v", ok, err)
			}
			if err := st.Put("chat-history", `[1]`); err != nil {
				t.Fatalf("put failed: %v", err)
			}
			if err := st.Put("chat-history", `[1,2]`); err != nil {
				t.Fatalf("overwrite failed: %v", err)
			}
			got, ok, err := st.Get(" chat-history ")
			if err != nil || !ok {
				t.Fatalf("get failed ok=%v err=%v", ok, err)
			}
			if got != `[1,2]` {
				t.Fatalf("unexpected value %q", got)
			}
			if err := st.Delete("chat-history"); err != nil {
				t.Fatalf("delete failed: %v", err)
			}
			if _, ok, _ := st.Get("chat-history"); ok {
				t.Fatal("expected key removed")
			}
		})
	}
}

func TestStores_RejectEmptyKey(t *testing.T) {
	for name, st := range map[string]Store{"gorm": newGORMStore(t), "memory": NewMemory()} {
		if err := st.Put("  ", "x"); err == nil {
			t.Fatalf("%s: expected error for empty key", name)
		}
	}
}

func TestNewGORM_RequiresDB(t *testing.T) {
	if _, err := NewGORM(nil); err == nil {
		t.Fatal("expected error")
	}
}

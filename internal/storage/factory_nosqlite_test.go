//go:build !sqlite

package storage

import "testing"

func TestNewStoreSQLiteUnavailableWithoutTag(t *testing.T) {
	if _, err := NewStore("sqlite", "ignored.db"); err == nil {
		t.Fatal("expected sqlite to be unavailable without the sqlite build tag")
	}
}

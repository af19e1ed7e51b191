package logger

import (
	"reflect"
	"testing"
)

func TestSanitizeKVs(t *testing.T) {
	in := []interface{}{"serial", "B09-001", "admin_password", "hunter2", "Access_Token", "abc", "dangling"}
	want := []interface{}{"serial", "B09-001", "admin_password", "[REDACTED]", "Access_Token", "[REDACTED]", "dangling"}
	if got := sanitizeKVs(in); !reflect.DeepEqual(got, want) {
		t.Fatalf("sanitizeKVs = %v, want %v", got, want)
	}
}

func TestNopLogger(t *testing.T) {
	l := Nop().With("run_id", "r1")
	l.Info("ingest document", "records", 3)
	l.Sync()
}

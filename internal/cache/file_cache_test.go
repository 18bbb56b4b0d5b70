package cache

import (
	"bytes"
	"testing"
)

func TestFileCacheRoundTrip(t *testing.T) {
	c := &FileCache{Dir: t.TempDir()}
	id := "course-v1:edX+DemoX+Demo_Course"

	if c.Exists(id) {
		t.Fatal("empty cache reports entry")
	}
	if _, err := c.Get(id); err == nil {
		t.Fatal("expected error for missing entry")
	}

	want := []byte(`{"root":"r"}`)
	if err := c.Put(id, want); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !c.Exists(id) {
		t.Fatal("entry missing after Put")
	}
	got, err := c.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("Get = %s, want %s", got, want)
	}

	if err := c.Delete(id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := c.Delete(id); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	if c.Exists(id) {
		t.Fatal("entry still present after Delete")
	}
}

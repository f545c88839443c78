package tokens

import (
	"testing"

	"github.com/driftbase/driftbase/ref"
)

type fakeStore struct{}

func (f *fakeStore) Get(ref.Ref) (string, bool) { return "", false }
func (f *fakeStore) Set(ref.Ref, string)        {}
func (f *fakeStore) Clear(ref.Ref)              {}
func (f *fakeStore) ClearTree(ref.Ref)          {}
func (f *fakeStore) Snapshot() map[string]string {
	return nil
}
func (f *fakeStore) Shutdown() error { return nil }

func TestRegistry(t *testing.T) {
	factory := func(string) (Store, error) { return &fakeStore{}, nil }

	if err := Register("fake", factory); err != nil {
		t.Fatal(err)
	}
	if err := Register("fake", factory); err == nil {
		t.Fatal("duplicate registration should fail")
	}

	store, err := Start("fake", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := store.(*fakeStore); !ok {
		t.Fatalf("unexpected store type: %T", store)
	}

	if _, err := Start("unregistered", ""); err == nil {
		t.Fatal("unknown backend should fail")
	}
}

func TestKeys(t *testing.T) {
	t.Parallel()

	key, ok := Key(ref.RecordRef("b", "c", "r"))
	if !ok || key != "/buckets/b/collections/c/records/r" {
		t.Fatalf("unexpected key: %q %v", key, ok)
	}
	if _, ok := Key(ref.Root()); ok {
		t.Fatal("root scope must not have a key")
	}
	if _, ok := Key(ref.Ref{Record: "orphan"}); ok {
		t.Fatal("invalid ref must not have a key")
	}
	if TreePrefix("/buckets/b") != "/buckets/b/" {
		t.Fatal("unexpected tree prefix")
	}
}

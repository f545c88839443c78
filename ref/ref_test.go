package ref

import (
	"errors"
	"testing"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := []Ref{
		Root(),
		BucketRef("blog"),
		CollectionRef("blog", "articles"),
		RecordRef("blog", "articles", "a1"),
		RecordRef("b-1", "c_2", "0b949155-d7ae-48f9-8c4f-28e4942cf85c"),
	}
	for _, r := range valid {
		if err := r.Validate(); err != nil {
			t.Errorf("%v: unexpected error: %s", r, err)
		}
	}

	invalid := []Ref{
		{Collection: "articles"},                    // skipped bucket
		{Record: "a1"},                              // skipped bucket and collection
		{Bucket: "blog", Record: "a1"},              // skipped collection
		BucketRef("_starts-bad"),                    // bad first char
		CollectionRef("blog", "has space"),          // bad char
		RecordRef("blog", "articles", "semi;colon"), // bad char
		RecordRef("blog", "articles", "a/b"),        // path char
	}
	for _, r := range invalid {
		err := r.Validate()
		if err == nil {
			t.Errorf("%v: expected validation error", r)
			continue
		}
		if !errors.Is(err, ErrInvalid) {
			t.Errorf("%v: error does not wrap ErrInvalid: %s", r, err)
		}
	}
}

func TestPaths(t *testing.T) {
	t.Parallel()

	cases := []struct {
		ref      Ref
		path     string
		children string
	}{
		{Root(), "", "/buckets"},
		{BucketRef("blog"), "/buckets/blog", "/buckets/blog/collections"},
		{CollectionRef("blog", "articles"), "/buckets/blog/collections/articles", "/buckets/blog/collections/articles/records"},
		{RecordRef("blog", "articles", "a1"), "/buckets/blog/collections/articles/records/a1", ""},
	}
	for _, c := range cases {
		path, err := c.ref.Path()
		if c.path == "" {
			if err == nil {
				t.Errorf("%v: expected Path error", c.ref)
			}
		} else if err != nil {
			t.Errorf("%v: Path: %s", c.ref, err)
		} else if path != c.path {
			t.Errorf("%v: Path = %q, expected %q", c.ref, path, c.path)
		}

		children, err := c.ref.ChildrenPath()
		if c.children == "" {
			if err == nil {
				t.Errorf("%v: expected ChildrenPath error", c.ref)
			}
		} else if err != nil {
			t.Errorf("%v: ChildrenPath: %s", c.ref, err)
		} else if children != c.children {
			t.Errorf("%v: ChildrenPath = %q, expected %q", c.ref, children, c.children)
		}
	}
}

func TestHierarchy(t *testing.T) {
	t.Parallel()

	r := RecordRef("blog", "articles", "a1")
	if r.Kind() != KindRecord {
		t.Errorf("unexpected kind: %s", r.Kind())
	}

	coll := r.Parent()
	if coll != CollectionRef("blog", "articles") {
		t.Errorf("unexpected parent: %v", coll)
	}
	if coll.Kind() != KindCollection {
		t.Errorf("unexpected kind: %s", coll.Kind())
	}

	bucket := coll.Parent()
	if bucket != BucketRef("blog") {
		t.Errorf("unexpected parent: %v", bucket)
	}
	if !bucket.Parent().IsRoot() {
		t.Error("bucket parent should be the root scope")
	}
	if !Root().Parent().IsRoot() {
		t.Error("root parent should remain the root scope")
	}

	back, err := coll.Child("a1")
	if err != nil {
		t.Fatalf("Child: %s", err)
	}
	if back != r {
		t.Errorf("unexpected child: %v", back)
	}

	if _, err := r.Child("nope"); err == nil {
		t.Error("records must not have children")
	}
	if _, err := coll.Child("bad id"); err == nil {
		t.Error("expected invalid child id to be rejected")
	}
}

func TestValidID(t *testing.T) {
	t.Parallel()

	for _, id := range []string{"a", "A1", "0day", "with-dash", "with_underscore", "0b949155-d7ae-48f9-8c4f-28e4942cf85c"} {
		if !ValidID(id) {
			t.Errorf("%q should be valid", id)
		}
	}
	for _, id := range []string{"", "-leading", "_leading", "white space", "slash/", "dot.dot", "ünïcödé"} {
		if ValidID(id) {
			t.Errorf("%q should be invalid", id)
		}
	}
}

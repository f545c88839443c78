package ref

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind describes the level of the resource hierarchy a Ref points to.
type Kind uint8

// Resource hierarchy levels.
const (
	KindRoot Kind = iota
	KindBucket
	KindCollection
	KindRecord
)

func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindBucket:
		return "bucket"
	case KindCollection:
		return "collection"
	case KindRecord:
		return "record"
	default:
		return "invalid"
	}
}

var idExpr = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]{0,254}$`)

// ValidID reports whether s may be used as a bucket, collection or record
// identifier. Identifiers must start with an alphanumeric character and may
// only contain alphanumerics, underscores and dashes.
func ValidID(s string) bool {
	return idExpr.MatchString(s)
}

// Ref identifies a resource on a storage server: a bucket, a collection
// within a bucket, or a record within a collection. The zero Ref is the root
// scope, which is only valid as a container for listing buckets.
//
// Refs are plain values and safe to copy and compare with ==.
type Ref struct {
	Bucket     string
	Collection string
	Record     string
}

// Root returns the root scope.
func Root() Ref {
	return Ref{}
}

// BucketRef returns a Ref pointing to a bucket.
func BucketRef(bucket string) Ref {
	return Ref{Bucket: bucket}
}

// CollectionRef returns a Ref pointing to a collection within a bucket.
func CollectionRef(bucket, collection string) Ref {
	return Ref{Bucket: bucket, Collection: collection}
}

// RecordRef returns a Ref pointing to a record within a collection.
func RecordRef(bucket, collection, record string) Ref {
	return Ref{Bucket: bucket, Collection: collection, Record: record}
}

// Kind returns the hierarchy level of the deepest set component.
func (r Ref) Kind() Kind {
	switch {
	case r.Record != "":
		return KindRecord
	case r.Collection != "":
		return KindCollection
	case r.Bucket != "":
		return KindBucket
	default:
		return KindRoot
	}
}

// IsRoot reports whether r is the root scope.
func (r Ref) IsRoot() bool {
	return r == Ref{}
}

// Validate checks that r describes a well-formed position in the hierarchy:
// every set component must be a valid identifier and no level may be skipped.
// The root scope is valid.
func (r Ref) Validate() error {
	switch r.Kind() {
	case KindRecord:
		if r.Collection == "" || r.Bucket == "" {
			return fmt.Errorf("%w: record reference requires bucket and collection", ErrInvalid)
		}
	case KindCollection:
		if r.Bucket == "" {
			return fmt.Errorf("%w: collection reference requires a bucket", ErrInvalid)
		}
	case KindRoot:
		return nil
	}

	for _, part := range []struct {
		level string
		id    string
	}{
		{"bucket", r.Bucket},
		{"collection", r.Collection},
		{"record", r.Record},
	} {
		if part.id != "" && !ValidID(part.id) {
			return fmt.Errorf("%w: invalid %s id %q", ErrInvalid, part.level, part.id)
		}
	}
	return nil
}

// Parent returns the Ref one level up the hierarchy. The parent of the root
// scope is the root scope itself.
func (r Ref) Parent() Ref {
	switch r.Kind() {
	case KindRecord:
		return Ref{Bucket: r.Bucket, Collection: r.Collection}
	case KindCollection:
		return Ref{Bucket: r.Bucket}
	default:
		return Ref{}
	}
}

// Child returns a Ref pointing to the child resource with the given id:
// a bucket below the root, a collection below a bucket, or a record below a
// collection. Records have no children.
func (r Ref) Child(id string) (Ref, error) {
	if !ValidID(id) {
		return Ref{}, fmt.Errorf("%w: invalid child id %q", ErrInvalid, id)
	}
	if err := r.Validate(); err != nil {
		return Ref{}, err
	}

	switch r.Kind() {
	case KindRoot:
		return Ref{Bucket: id}, nil
	case KindBucket:
		return Ref{Bucket: r.Bucket, Collection: id}, nil
	case KindCollection:
		return Ref{Bucket: r.Bucket, Collection: r.Collection, Record: id}, nil
	default:
		return Ref{}, fmt.Errorf("%w: records have no children", ErrInvalid)
	}
}

// Path returns the canonical resource path for r, without any server path
// prefix, eg. "/buckets/dict/collections/words/records/a1". The root scope
// has no resource path.
func (r Ref) Path() (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}
	if r.IsRoot() {
		return "", fmt.Errorf("%w: the root scope has no resource path", ErrInvalid)
	}

	b := strings.Builder{}
	b.WriteString("/buckets/")
	b.WriteString(r.Bucket)
	if r.Collection != "" {
		b.WriteString("/collections/")
		b.WriteString(r.Collection)
	}
	if r.Record != "" {
		b.WriteString("/records/")
		b.WriteString(r.Record)
	}
	return b.String(), nil
}

// ChildrenPath returns the canonical plural path listing the children of r:
// buckets for the root scope, collections for a bucket, records for a
// collection. Records have no children path.
func (r Ref) ChildrenPath() (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}

	switch r.Kind() {
	case KindRoot:
		return "/buckets", nil
	case KindBucket:
		return "/buckets/" + r.Bucket + "/collections", nil
	case KindCollection:
		return "/buckets/" + r.Bucket + "/collections/" + r.Collection + "/records", nil
	default:
		return "", fmt.Errorf("%w: records have no children", ErrInvalid)
	}
}

// String returns a compact representation for logging. It does not validate.
func (r Ref) String() string {
	if r.IsRoot() {
		return "/"
	}
	parts := make([]string, 0, 3)
	for _, id := range []string{r.Bucket, r.Collection, r.Record} {
		if id == "" {
			break
		}
		parts = append(parts, id)
	}
	return strings.Join(parts, "/")
}

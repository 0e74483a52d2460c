package assetdb

import "fmt"

// OpenError aborts the whole open operation: malformed or absent root,
// unreadable top-level document.
type OpenError struct {
	Reason string
}

func (e *OpenError) Error() string {
	return "assetdb: open failed: " + e.Reason
}

// IndexError reports a reference beyond its table. It is fatal for the
// asset being built but does not abort unrelated assets.
type IndexError struct {
	Kind  string
	Index int
	Bound int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("assetdb: %s index %d out of range [0,%d)", e.Kind, e.Index, e.Bound)
}

// UnsupportedError reports an unexpected primitive, track or component
// shape. Fatal for that one asset only.
type UnsupportedError struct {
	Kind   string
	Detail string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("assetdb: unsupported %s: %s", e.Kind, e.Detail)
}

// ResourceError reports an on-demand asset the loader could not
// provide. The failure is cached so repeated queries do not re-attempt
// the load.
type ResourceError struct {
	Key string
}

func (e *ResourceError) Error() string {
	return "assetdb: resource unavailable: " + e.Key
}

func indexErr(kind string, index, bound int) error {
	return &IndexError{Kind: kind, Index: index, Bound: bound}
}

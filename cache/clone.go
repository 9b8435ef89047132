package cache

import (
	"github.com/vmihailenco/msgpack/v5"
)

// Cloner copies src into dst, where dst is a non-nil pointer to a value of
// the same type as src. Stores use it to keep callers from aliasing stored
// values.
type Cloner interface {
	Clone(dst, src any) error
}

// ClonerFunc adapts a plain function to Cloner.
type ClonerFunc func(dst, src any) error

// Clone calls f(dst, src).
func (f ClonerFunc) Clone(dst, src any) error { return f(dst, src) }

// MsgpackCloner deep-copies values by round-tripping them through msgpack.
// Only exported fields survive the copy.
type MsgpackCloner struct{}

// Clone implements Cloner.
func (MsgpackCloner) Clone(dst, src any) error {
	data, err := msgpack.Marshal(src)
	if err != nil {
		return err
	}
	return msgpack.Unmarshal(data, dst)
}

var _ Cloner = MsgpackCloner{}

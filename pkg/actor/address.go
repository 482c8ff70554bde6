package actor

import (
	"fmt"
	"path"
	"strings"
)

// Address is the slash-separated path of an actor, rooted at "/". Addresses are comparable and
// are used as map keys by the system.
type Address struct {
	path string
}

var rootAddress = Address{path: "/"}

func segment(raw interface{}) string {
	s := fmt.Sprint(raw)
	if s == "" || strings.Contains(s, "/") {
		panic(fmt.Sprintf("invalid actor address segment %q", s))
	}
	return s
}

// Addr returns the address made of the segments, starting at the root. Segments are formatted
// with fmt.Sprint and may neither be empty nor contain a slash.
func Addr(segments ...interface{}) Address {
	if len(segments) == 0 {
		panic("an address needs at least one segment")
	}
	a := rootAddress
	for _, s := range segments {
		a = a.Child(s)
	}
	return a
}

func (a Address) String() string {
	return a.path
}

// Parent returns the address one segment up. The parent of the root is the root.
func (a Address) Parent() Address {
	return Address{path: path.Dir(a.path)}
}

// Child returns the address of a child with the given local ID.
func (a Address) Child(id interface{}) Address {
	return Address{path: path.Join(a.path, segment(id))}
}

// Local returns the last segment of the address.
func (a Address) Local() string {
	return path.Base(a.path)
}

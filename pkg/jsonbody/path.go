package jsonbody

import (
	"strconv"
	"strings"
)

// Segment is one step of a Path: either an object member or an array element.
type Segment struct {
	Key   string
	Index int
	Array bool
}

func (s Segment) String() string {
	if s.Array {
		return "[" + strconv.Itoa(s.Index) + "]"
	}
	return s.Key
}

// Path locates one node inside a JSON document, from the root down.
type Path []Segment

// String renders the dot/bracket form used in diagnostics: member names are
// joined with dots and array elements append a bracketed index, for example
// user.addresses[2].zip or [0].name for a root-level array.
func (p Path) String() string {
	var b strings.Builder
	for _, s := range p {
		if s.Array {
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(s.Index))
			b.WriteByte(']')
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(s.Key)
	}
	return b.String()
}

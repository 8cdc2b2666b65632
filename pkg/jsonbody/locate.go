package jsonbody

import (
	"bytes"
	"encoding/json"
)

// frame tracks the position inside one open container while walking tokens.
// For objects, key holds the member currently being decoded; keySet
// distinguishes "between members" from "inside a value". For arrays, index
// counts completed elements.
type frame struct {
	array  bool
	index  int
	key    string
	keySet bool
}

type walker struct {
	dec   *json.Decoder
	stack []frame
}

func (w *walker) top() *frame {
	if len(w.stack) == 0 {
		return nil
	}
	return &w.stack[len(w.stack)-1]
}

func (w *walker) push(f frame) { w.stack = append(w.stack, f) }

func (w *walker) pop() {
	if len(w.stack) > 0 {
		w.stack = w.stack[:len(w.stack)-1]
	}
}

// crossed reports whether the walker has consumed input up to offset.
func (w *walker) crossed(offset int64) bool {
	return w.dec.InputOffset() >= offset
}

// valueDone advances the enclosing container past one completed value.
func (w *walker) valueDone() {
	f := w.top()
	if f == nil {
		return
	}
	if f.array {
		f.index++
		return
	}
	f.key, f.keySet = "", false
}

// path snapshots the current position as a Path. Frames still waiting for a
// member key contribute nothing.
func (w *walker) path() Path {
	p := make(Path, 0, len(w.stack))
	for _, f := range w.stack {
		switch {
		case f.array:
			p = append(p, Segment{Index: f.index, Array: true})
		case f.keySet:
			p = append(p, Segment{Key: f.key})
		}
	}
	return p
}

// locateOffset replays data token by token and returns the path of the node
// that ends at or spans the given byte offset. Offsets produced by
// encoding/json point just past the offending value, so the walk stops at
// the first token whose end reaches the offset. If tokenization itself fails
// before the offset is reached (malformed input), the path reflects how far
// the parser got, which is exactly where the syntax error sits.
func locateOffset(data []byte, offset int64) Path {
	if offset <= 0 {
		return nil
	}
	w := walker{dec: json.NewDecoder(bytes.NewReader(data))}
	for {
		tok, err := w.dec.Token()
		if err != nil {
			return w.path()
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '{', '[':
				if w.crossed(offset) {
					return w.path()
				}
				w.push(frame{array: d == '['})
			case '}', ']':
				w.pop()
				if w.crossed(offset) {
					return w.path()
				}
				w.valueDone()
			}
			continue
		}
		if f := w.top(); f != nil && !f.array && !f.keySet {
			f.key, _ = tok.(string)
			f.keySet = true
			if w.crossed(offset) {
				return w.path()
			}
			continue
		}
		if w.crossed(offset) {
			return w.path()
		}
		w.valueDone()
	}
}

// locateKey returns the path of the first occurrence of an object member
// named key. It backs the unknown-field diagnostic, where encoding/json
// reports the member name but no offset.
func locateKey(data []byte, key string) Path {
	w := walker{dec: json.NewDecoder(bytes.NewReader(data))}
	for {
		tok, err := w.dec.Token()
		if err != nil {
			return nil
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '{', '[':
				w.push(frame{array: d == '['})
			case '}', ']':
				w.pop()
				w.valueDone()
			}
			continue
		}
		if f := w.top(); f != nil && !f.array && !f.keySet {
			f.key, _ = tok.(string)
			f.keySet = true
			if f.key == key {
				return w.path()
			}
			continue
		}
		w.valueDone()
	}
}

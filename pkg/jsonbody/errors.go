package jsonbody

// ReadError reports a transport failure while draining the request body.
// The body never arrived in full, so there is no document to point into.
type ReadError struct {
	Cause error
}

func (e *ReadError) Error() string {
	return "Failed to read request body: " + e.Cause.Error()
}

func (e *ReadError) Unwrap() error { return e.Cause }

// Diagnostic reports a decode failure together with the path of the node
// that was rejected. An empty path means the root value itself was rejected
// or the document was malformed before any structure could be entered.
type Diagnostic struct {
	Path  Path
	Cause error
}

func (d *Diagnostic) Error() string {
	if len(d.Path) == 0 {
		return "Invalid JSON: " + d.Cause.Error()
	}
	return "Invalid JSON at " + d.Path.String() + ": " + d.Cause.Error()
}

func (d *Diagnostic) Unwrap() error { return d.Cause }

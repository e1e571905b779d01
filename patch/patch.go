// Package patch applies JSON Patch (RFC 6902) documents to the flat update
// views of entities. Operations run in order against a JSON rendering of the
// view; the first failing operation aborts the whole document and the view is
// left untouched.
package patch

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	jsonpatch "github.com/evanphx/json-patch/v5"
)

var (
	ErrEmptyDocument   = errors.New("no patch document provided")
	ErrUnsupportedOp   = errors.New("unsupported operation")
	ErrInvalidPath     = errors.New("path does not name an updatable field")
	ErrMissingValue    = errors.New("operation requires a value")
	ErrMissingFrom     = errors.New("operation requires a from path")
	ErrTypeMismatch    = errors.New("value has the wrong type for the field")
	ErrOperationFailed = errors.New("operation could not be applied")
)

const (
	OpAdd     = "add"
	OpRemove  = "remove"
	OpReplace = "replace"
	OpMove    = "move"
	OpCopy    = "copy"
	OpTest    = "test"
)

// Operation is one entry of a patch document.
type Operation struct {
	Op    string          `json:"op"`
	Path  string          `json:"path"`
	From  string          `json:"from,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
}

// Document is an ordered list of operations.
type Document []Operation

// OperationError reports which operation of a document failed and why.
type OperationError struct {
	Index int
	Op    string
	Path  string
	Err   error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("patch operation %d (%s %s): %v", e.Index, e.Op, e.Path, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

// Apply runs doc against view. view must point to a struct whose exported
// fields carry json tags; only those top-level fields are addressable.
// A nil document is an error, an empty one leaves view as it is.
func Apply[T any](doc Document, view *T) error {
	if doc == nil {
		return ErrEmptyDocument
	}
	if len(doc) == 0 {
		return nil
	}

	fields := Fields(view)
	current, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("render update view: %w", err)
	}

	for i, op := range doc {
		opErr := func(err error) error {
			return &OperationError{Index: i, Op: op.Op, Path: op.Path, Err: err}
		}

		if err := op.check(fields); err != nil {
			return opErr(err)
		}
		if op.Op == OpTest {
			op.Value = canonicalValue[T](current, fieldName(op.Path), op.Value)
		}

		single, err := json.Marshal([]Operation{op})
		if err != nil {
			return opErr(err)
		}
		p, err := jsonpatch.DecodePatch(single)
		if err != nil {
			return opErr(err)
		}
		next, err := p.Apply(current)
		if err != nil {
			return opErr(fmt.Errorf("%w: %v", ErrOperationFailed, err))
		}

		// Decoding after every step attributes type errors to the operation
		// that introduced them.
		if err := decodeStrict(next, new(T)); err != nil {
			return opErr(fmt.Errorf("%w: %v", ErrTypeMismatch, err))
		}
		current = next
	}

	var result T
	if err := decodeStrict(current, &result); err != nil {
		return fmt.Errorf("decode patched view: %w", err)
	}
	*view = result
	return nil
}

func (op Operation) check(fields map[string]struct{}) error {
	switch op.Op {
	case OpAdd, OpReplace, OpTest:
		if len(op.Value) == 0 {
			return ErrMissingValue
		}
	case OpRemove:
	case OpMove, OpCopy:
		if op.From == "" {
			return ErrMissingFrom
		}
		if !validPath(op.From, fields) {
			return fmt.Errorf("%w: from %q", ErrInvalidPath, op.From)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedOp, op.Op)
	}
	if !validPath(op.Path, fields) {
		return fmt.Errorf("%w: %q", ErrInvalidPath, op.Path)
	}
	return nil
}

// validPath accepts single-segment JSON pointers naming a known field.
func validPath(path string, fields map[string]struct{}) bool {
	if !strings.HasPrefix(path, "/") || strings.Contains(path[1:], "/") {
		return false
	}
	_, ok := fields[fieldName(path)]
	return ok
}

func fieldName(path string) string {
	return strings.NewReplacer("~1", "/", "~0", "~").Replace(strings.TrimPrefix(path, "/"))
}

// canonicalValue renders raw the way the view itself renders the named field,
// so a test value given in any accepted input form (a short date, say)
// compares equal to the stored one. Values the field cannot hold are
// returned unchanged and fail the comparison.
func canonicalValue[T any](current []byte, name string, raw json.RawMessage) json.RawMessage {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(current, &doc); err != nil {
		return raw
	}
	doc[name] = raw
	candidate, err := json.Marshal(doc)
	if err != nil {
		return raw
	}

	var v T
	if err := decodeStrict(candidate, &v); err != nil {
		return raw
	}
	rendered, err := json.Marshal(&v)
	if err != nil {
		return raw
	}
	var out map[string]json.RawMessage
	if err := json.Unmarshal(rendered, &out); err != nil {
		return raw
	}
	if value, ok := out[name]; ok {
		return value
	}
	return raw
}

// Fields returns the JSON names of the exported top-level fields of v.
func Fields(v interface{}) map[string]struct{} {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	fields := make(map[string]struct{})
	if t.Kind() != reflect.Struct {
		return fields
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			continue
		}
		if name == "" {
			name = f.Name
		}
		fields[name] = struct{}{}
	}
	return fields
}

func decodeStrict(data []byte, dst interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

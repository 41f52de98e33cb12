package unitofwork

import (
	"bytes"
	"math"
	"reflect"

	jsoniter "github.com/json-iterator/go"
)

// canonicalJSON sorts map keys, so equal content always encodes to equal bytes.
var canonicalJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// collectionRef is the observable identity of a reference-typed value: the slice header or the map pointer.
type collectionRef struct {
	kind reflect.Kind
	ptr  uintptr
	len  int
	cap  int
}

func refOf(value any) (collectionRef, bool) {
	rv := reflect.ValueOf(value)
	if !rv.IsValid() {
		return collectionRef{kind: reflect.Invalid}, true
	}

	switch rv.Kind() {
	case reflect.Slice:
		return collectionRef{kind: rv.Kind(), ptr: rv.Pointer(), len: rv.Len(), cap: rv.Cap()}, true
	case reflect.Map, reflect.Pointer:
		return collectionRef{kind: rv.Kind(), ptr: rv.Pointer()}, true
	default:
		return collectionRef{}, false // arrays and other values have no reference identity
	}
}

// fieldSnapshot is the baseline of one field.
type fieldSnapshot struct {
	value       any // scalars only
	ref         collectionRef
	hasRef      bool
	fingerprint []byte        // collections, only with structural diff or without a reference identity
	content     reflect.Value // deep copy, for collections that can't be fingerprinted
	hasContent  bool
}

// baseline is the last known persisted state of an entity. A nil baseline means nothing is persisted yet.
type baseline map[string]fieldSnapshot

func (t *Tracker) snapshot(schema Schema, values FieldValues) baseline {
	b := make(baseline, schema.Len())

	for _, field := range schema.Fields() {
		value, ok := values[field.Name()]
		if !ok {
			continue // missing in the persisted state, so it's dirty until flushed
		}

		b[field.Name()] = t.snapshotField(field, value)
	}

	return b
}

func (t *Tracker) snapshotField(field Field, value any) fieldSnapshot {
	if field.Kind() == ScalarField {
		return fieldSnapshot{value: value}
	}

	snap := fieldSnapshot{}
	snap.ref, snap.hasRef = refOf(value)

	if t.structuralDiff || !snap.hasRef {
		snap.fingerprint = t.fingerprint(field, value)

		if snap.fingerprint == nil {
			snap.content = cloneValue(reflect.ValueOf(value))
			snap.hasContent = true
		}
	}

	return snap
}

// fingerprint encodes collection content canonically. It returns nil if the value can't be encoded,
// e.g. because it holds NaN or infinite floats.
func (t *Tracker) fingerprint(field Field, value any) []byte {
	encoded, err := canonicalJSON.Marshal(value)
	if err != nil {
		t.logDebug(logMsgFingerprintFailed, logAttrField, field.Name(), logAttrError, err.Error())
		return nil
	}

	return encoded
}

// changed reports whether the current value of a field differs from its baseline.
func (t *Tracker) changed(field Field, snap fieldSnapshot, current any) bool {
	if field.Kind() == ScalarField {
		return !scalarEqual(snap.value, current)
	}

	if t.structuralDiff || !snap.hasRef {
		if snap.hasContent {
			return !contentEqual(snap.content, reflect.ValueOf(current))
		}

		currentFingerprint, err := canonicalJSON.Marshal(current)
		if err != nil {
			return true // the baseline could be encoded, so the content differs
		}

		return !bytes.Equal(snap.fingerprint, currentFingerprint)
	}

	ref, _ := refOf(current)

	return ref != snap.ref
}

// scalarEqual compares scalar values without panicking on non-comparable dynamic types.
// NaN equals NaN, otherwise a field holding NaN would never become clean.
func scalarEqual(a, b any) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}

	if ta == nil {
		return true
	}

	switch ta.Kind() {
	case reflect.Float32, reflect.Float64:
		return floatEqual(reflect.ValueOf(a).Float(), reflect.ValueOf(b).Float())
	case reflect.Interface, reflect.Struct, reflect.Array, reflect.Complex64, reflect.Complex128:
		return contentEqual(reflect.ValueOf(a), reflect.ValueOf(b))
	}

	if ta.Comparable() {
		return a == b
	}

	return contentEqual(reflect.ValueOf(a), reflect.ValueOf(b))
}

func floatEqual(a, b float64) bool {
	return a == b || (math.IsNaN(a) && math.IsNaN(b))
}

// contentEqual is a deep equality where NaN equals NaN. Pointers, channels and funcs compare by identity.
func contentEqual(a, b reflect.Value) bool {
	if !a.IsValid() || !b.IsValid() {
		return a.IsValid() == b.IsValid()
	}

	if a.Type() != b.Type() {
		return false
	}

	switch a.Kind() {
	case reflect.Bool:
		return a.Bool() == b.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return a.Int() == b.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return a.Uint() == b.Uint()
	case reflect.Float32, reflect.Float64:
		return floatEqual(a.Float(), b.Float())
	case reflect.Complex64, reflect.Complex128:
		ca, cb := a.Complex(), b.Complex()
		return floatEqual(real(ca), real(cb)) && floatEqual(imag(ca), imag(cb))
	case reflect.String:
		return a.String() == b.String()
	case reflect.Slice:
		if a.IsNil() != b.IsNil() {
			return false
		}

		return elementsEqual(a, b)
	case reflect.Array:
		return elementsEqual(a, b)
	case reflect.Map:
		if a.IsNil() != b.IsNil() || a.Len() != b.Len() {
			return false
		}

		iter := a.MapRange()
		for iter.Next() {
			other := b.MapIndex(iter.Key())
			if !other.IsValid() || !contentEqual(iter.Value(), other) {
				return false
			}
		}

		return true
	case reflect.Struct:
		for i := range a.NumField() {
			if !contentEqual(a.Field(i), b.Field(i)) {
				return false
			}
		}

		return true
	case reflect.Interface:
		if a.IsNil() || b.IsNil() {
			return a.IsNil() == b.IsNil()
		}

		return contentEqual(a.Elem(), b.Elem())
	default:
		return a.Pointer() == b.Pointer()
	}
}

func elementsEqual(a, b reflect.Value) bool {
	if a.Len() != b.Len() {
		return false
	}

	for i := range a.Len() {
		if !contentEqual(a.Index(i), b.Index(i)) {
			return false
		}
	}

	return true
}

// cloneValue copies slices, arrays and maps recursively, so in-place mutation of the original can't reach the copy.
func cloneValue(rv reflect.Value) reflect.Value {
	switch rv.Kind() {
	case reflect.Slice:
		if rv.IsNil() {
			return rv
		}

		clone := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		for i := range rv.Len() {
			clone.Index(i).Set(cloneValue(rv.Index(i)))
		}

		return clone

	case reflect.Array:
		clone := reflect.New(rv.Type()).Elem()
		for i := range rv.Len() {
			clone.Index(i).Set(cloneValue(rv.Index(i)))
		}

		return clone

	case reflect.Map:
		if rv.IsNil() {
			return rv
		}

		clone := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			clone.SetMapIndex(iter.Key(), cloneValue(iter.Value()))
		}

		return clone

	case reflect.Interface:
		if rv.IsNil() {
			return rv
		}

		clone := reflect.New(rv.Type()).Elem()
		clone.Set(cloneValue(rv.Elem()))

		return clone

	default:
		return rv
	}
}

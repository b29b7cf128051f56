package extract

import (
	"fmt"
	"reflect"
)

// symbol is the reflect-backed Executable shared by the interpreter and by
// Wrap. For KindClass, ctor holds an optional New<Name> constructor and
// proto a zero value of the type.
type symbol struct {
	kind  Kind
	name  string
	value reflect.Value // func for KindFunc, instance for KindValue
	ctor  reflect.Value // KindClass only, may be invalid
	proto reflect.Value // KindClass only

	// attrFallback resolves interpreted methods that host reflection cannot
	// see (set by the yaegi extractor).
	attrFallback func(recv reflect.Value, attr string) (any, error)
}

// Wrap turns an already materialized Go value into an Executable. Used for
// instances produced by invokeOnLoad and by tests.
func Wrap(name string, v any) Executable {
	rv := reflect.ValueOf(v)
	if rv.IsValid() && rv.Kind() == reflect.Func {
		return &symbol{kind: KindFunc, name: name, value: rv}
	}
	return &symbol{kind: KindValue, name: name, value: rv}
}

func (s *symbol) Kind() Kind     { return s.kind }
func (s *symbol) Symbol() string { return s.name }

func (s *symbol) Invoke(args ...any) (any, error) {
	switch s.kind {
	case KindFunc:
		return callFunc(s.name, s.value, args)
	case KindClass:
		if s.ctor.IsValid() {
			return callFunc("New"+s.name, s.ctor, args)
		}
		if len(args) > 0 {
			return nil, fmt.Errorf("%w: type %s has no New%s constructor but got %d args",
				ErrBadArgs, s.name, s.name, len(args))
		}
		// Zero-value instance; a pointer so pointer-receiver methods bind.
		inst := reflect.New(s.proto.Type())
		inst.Elem().Set(s.proto)
		return inst.Interface(), nil
	case KindValue:
		if s.value.IsValid() && s.value.Kind() == reflect.Func {
			return callFunc(s.name, s.value, args)
		}
		return nil, fmt.Errorf("%w: %s wraps a %s", ErrNotInvocable, s.name, s.kind)
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotInvocable, s.name)
	}
}

func (s *symbol) Attr(name string) (any, error) {
	var target reflect.Value
	switch s.kind {
	case KindClass:
		target = s.proto
	default:
		target = s.value
	}
	if !target.IsValid() {
		return nil, fmt.Errorf("%w: %s has no value", ErrNoAttr, s.name)
	}
	v, err := attrLookup(s.name, target, name)
	if err != nil && s.attrFallback != nil {
		if fv, ferr := s.attrFallback(target, name); ferr == nil {
			return fv, nil
		}
	}
	return v, err
}

// Instantiate implements Instantiator for class executables. The produced
// executable wraps the instance and inherits the method fallback.
func (s *symbol) Instantiate(args ...any) (Executable, error) {
	if s.kind != KindClass {
		return nil, fmt.Errorf("%w: %s is a %s, not a class", ErrNotInvocable, s.name, s.kind)
	}
	inst, err := s.Invoke(args...)
	if err != nil {
		return nil, err
	}
	return &symbol{
		kind:         KindValue,
		name:         s.name,
		value:        reflect.ValueOf(inst),
		attrFallback: s.attrFallback,
	}, nil
}

// attrLookup resolves a method first, then an exported struct field.
func attrLookup(owner string, v reflect.Value, name string) (any, error) {
	if m := v.MethodByName(name); m.IsValid() {
		return m.Interface(), nil
	}
	// Methods with pointer receivers need an addressable value.
	if v.Kind() != reflect.Pointer && v.CanInterface() {
		pv := reflect.New(v.Type())
		pv.Elem().Set(v)
		if m := pv.MethodByName(name); m.IsValid() {
			return m.Interface(), nil
		}
	}
	ev := v
	for ev.Kind() == reflect.Pointer {
		if ev.IsNil() {
			return nil, fmt.Errorf("%w: %s is nil", ErrNoAttr, owner)
		}
		ev = ev.Elem()
	}
	if ev.Kind() == reflect.Struct {
		if f := ev.FieldByName(name); f.IsValid() && f.CanInterface() {
			return f.Interface(), nil
		}
	}
	return nil, fmt.Errorf("%w: %s.%s", ErrNoAttr, owner, name)
}

// callFunc invokes fn with coerced args, recovering interpreter panics into
// errors so a misbehaving extension cannot take down a refresh pass.
func callFunc(name string, fn reflect.Value, args []any) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s panicked: %v", ErrBadArgs, name, r)
		}
	}()

	t := fn.Type()
	in, err := coerceArgs(name, t, args)
	if err != nil {
		return nil, err
	}

	results := fn.Call(in)
	var vals []any
	for i, r := range results {
		// A trailing error result propagates as the call error.
		if i == len(results)-1 && t.Out(i) == reflect.TypeOf((*error)(nil)).Elem() {
			if !r.IsNil() {
				return nil, r.Interface().(error)
			}
			continue
		}
		vals = append(vals, r.Interface())
	}
	switch len(vals) {
	case 0:
		return nil, nil
	case 1:
		return vals[0], nil
	default:
		return vals, nil
	}
}

func coerceArgs(name string, t reflect.Type, args []any) ([]reflect.Value, error) {
	fixed := t.NumIn()
	if t.IsVariadic() {
		fixed--
		if len(args) < fixed {
			return nil, fmt.Errorf("%w: %s wants at least %d args, got %d", ErrBadArgs, name, fixed, len(args))
		}
	} else if len(args) != fixed {
		return nil, fmt.Errorf("%w: %s wants %d args, got %d", ErrBadArgs, name, fixed, len(args))
	}

	in := make([]reflect.Value, 0, len(args))
	for i, arg := range args {
		var pt reflect.Type
		if i < fixed {
			pt = t.In(i)
		} else {
			pt = t.In(t.NumIn() - 1).Elem()
		}
		v, err := coerceValue(arg, pt)
		if err != nil {
			return nil, fmt.Errorf("%w: %s arg %d: %v", ErrBadArgs, name, i, err)
		}
		in = append(in, v)
	}
	return in, nil
}

// coerceValue converts arg to pt. JSON round-trips widen numbers to float64,
// so integral floats are allowed back into integer parameters.
func coerceValue(arg any, pt reflect.Type) (reflect.Value, error) {
	if arg == nil {
		switch pt.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map, reflect.Chan, reflect.Func:
			return reflect.Zero(pt), nil
		}
		return reflect.Value{}, fmt.Errorf("nil is not a %s", pt)
	}
	v := reflect.ValueOf(arg)
	if v.Type().AssignableTo(pt) {
		return v, nil
	}
	if f, ok := arg.(float64); ok && f == float64(int64(f)) {
		switch pt.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return reflect.ValueOf(int64(f)).Convert(pt), nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			if f >= 0 {
				return reflect.ValueOf(uint64(f)).Convert(pt), nil
			}
		}
	}
	if v.Type().ConvertibleTo(pt) && compatibleKinds(v.Kind(), pt.Kind()) {
		return v.Convert(pt), nil
	}
	return reflect.Value{}, fmt.Errorf("%s is not a %s", v.Type(), pt)
}

// compatibleKinds keeps Convert from doing surprising lossy conversions
// (string <-> int and the like).
func compatibleKinds(from, to reflect.Kind) bool {
	numeric := func(k reflect.Kind) bool {
		return k >= reflect.Int && k <= reflect.Float64
	}
	if numeric(from) && numeric(to) {
		return true
	}
	return from == to
}

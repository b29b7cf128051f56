package extract

import (
	"fmt"
	"go/parser"
	"go/token"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// Interpreter resolves symbols by interpreting Go source text with yaegi.
// Each Resolve runs in a fresh interpreter so extensions cannot bleed state
// into each other. Sources may only import whitelisted stdlib packages:
// interpreted code gets no filesystem, network, or exec access.
type Interpreter struct {
	reader  SourceReader
	allowed map[string]bool
}

var defaultAllowed = map[string]bool{
	"bytes":           true,
	"encoding/base64": true,
	"encoding/json":   true,
	"errors":          true,
	"fmt":             true,
	"math":            true,
	"path":            true,
	"regexp":          true,
	"sort":            true,
	"strconv":         true,
	"strings":         true,
	"time":            true,
	"unicode":         true,
}

// NewInterpreter returns an Interpreter reading source text through reader.
func NewInterpreter(reader SourceReader) *Interpreter {
	allowed := make(map[string]bool, len(defaultAllowed))
	for k, v := range defaultAllowed {
		allowed[k] = v
	}
	return &Interpreter{reader: reader, allowed: allowed}
}

var packageClauseRe = regexp.MustCompile(`(?m)^\s*package\s+(\w+)`)

// Resolve implements Extractor.
func (x *Interpreter) Resolve(spec Spec, source string) (Executable, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	src, err := x.reader.ReadSource(source)
	if err != nil {
		return nil, fmt.Errorf("%w: source %q: %v", ErrExtraction, source, err)
	}

	pkg := "main"
	if m := packageClauseRe.FindStringSubmatch(src); m != nil {
		pkg = m[1]
	} else {
		// Bare snippets are allowed; wrap them.
		src = "package main\n\n" + src
	}
	if err := x.validateImports(src); err != nil {
		return nil, fmt.Errorf("%w: source %q: %v", ErrExtraction, source, err)
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("%w: loading stdlib symbols: %v", ErrExtraction, err)
	}
	if _, err := i.Eval(src); err != nil {
		return nil, fmt.Errorf("%w: evaluating source %q: %v", ErrExtraction, source, err)
	}

	name := spec.Symbol()
	if !spec.IsClass() {
		v, err := i.Eval(pkg + "." + name)
		if err != nil {
			return nil, fmt.Errorf("%w: function %q not found in %q: %v", ErrExtraction, name, source, err)
		}
		if v.Kind() != reflect.Func {
			return nil, fmt.Errorf("%w: %q in %q is a %s, not a function", ErrExtraction, name, source, v.Kind())
		}
		return &symbol{kind: KindFunc, name: name, value: v}, nil
	}

	// Class resolution: prefer a New<Name> constructor, keep a zero-value
	// prototype for attribute lookups and zero-arg construction.
	ctor, ctorErr := i.Eval(pkg + ".New" + name)
	if ctorErr == nil && ctor.Kind() != reflect.Func {
		ctorErr = fmt.Errorf("New%s is not a function", name)
		ctor = reflect.Value{}
	}
	proto, protoErr := i.Eval(pkg + "." + name + "{}")
	if protoErr != nil && ctorErr != nil {
		return nil, fmt.Errorf("%w: class %q not found in %q: %v", ErrExtraction, name, source, protoErr)
	}
	if protoErr != nil {
		// Constructor only; derive the prototype from its return type.
		rt := ctor.Type()
		if rt.NumOut() == 0 {
			return nil, fmt.Errorf("%w: New%s in %q returns nothing", ErrExtraction, name, source)
		}
		out := rt.Out(0)
		for out.Kind() == reflect.Pointer {
			out = out.Elem()
		}
		proto = reflect.New(out).Elem()
	}
	s := &symbol{kind: KindClass, name: name, proto: proto, attrFallback: methodFallback(i, pkg, name)}
	if ctorErr == nil {
		s.ctor = ctor
	}
	return s, nil
}

// methodFallback resolves interpreted methods through method expressions,
// then binds the receiver. Host reflection cannot see methods declared in
// interpreted code, so this is the working path for class behaviors.
func methodFallback(i *interp.Interpreter, pkg, typeName string) func(recv reflect.Value, attr string) (any, error) {
	return func(recv reflect.Value, attr string) (any, error) {
		exprs := []string{
			pkg + "." + typeName + "." + attr,
			"(*" + pkg + "." + typeName + ")." + attr,
		}
		for _, expr := range exprs {
			m, err := i.Eval(expr)
			if err != nil || m.Kind() != reflect.Func {
				continue
			}
			return bindReceiver(m, recv)
		}
		return nil, fmt.Errorf("%w: %s.%s", ErrNoAttr, typeName, attr)
	}
}

// bindReceiver partially applies recv as the first argument of the method
// expression m, returning a plain func value.
func bindReceiver(m, recv reflect.Value) (any, error) {
	mt := m.Type()
	if mt.NumIn() == 0 {
		return nil, fmt.Errorf("%w: method expression takes no receiver", ErrNoAttr)
	}
	rv, err := adaptReceiver(recv, mt.In(0))
	if err != nil {
		return nil, err
	}
	in := make([]reflect.Type, 0, mt.NumIn()-1)
	for i := 1; i < mt.NumIn(); i++ {
		in = append(in, mt.In(i))
	}
	out := make([]reflect.Type, 0, mt.NumOut())
	for i := 0; i < mt.NumOut(); i++ {
		out = append(out, mt.Out(i))
	}
	bt := reflect.FuncOf(in, out, mt.IsVariadic())
	bound := reflect.MakeFunc(bt, func(args []reflect.Value) []reflect.Value {
		return m.Call(append([]reflect.Value{rv}, args...))
	})
	return bound.Interface(), nil
}

// adaptReceiver moves recv between T and *T to fit the receiver type.
func adaptReceiver(recv reflect.Value, want reflect.Type) (reflect.Value, error) {
	if recv.Type() == want {
		return recv, nil
	}
	if recv.Kind() == reflect.Pointer && recv.Type().Elem() == want {
		return recv.Elem(), nil
	}
	if want.Kind() == reflect.Pointer && want.Elem() == recv.Type() {
		pv := reflect.New(recv.Type())
		pv.Elem().Set(recv)
		return pv, nil
	}
	return reflect.Value{}, fmt.Errorf("%w: receiver %s does not fit %s", ErrNoAttr, recv.Type(), want)
}

// validateImports rejects sources importing anything off the whitelist.
func (x *Interpreter) validateImports(src string) error {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "source.go", src, parser.ImportsOnly)
	if err != nil {
		return fmt.Errorf("parsing imports: %v", err)
	}
	var blocked []string
	for _, imp := range f.Imports {
		p, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			return fmt.Errorf("bad import path %s", imp.Path.Value)
		}
		if !x.allowed[p] {
			blocked = append(blocked, p)
		}
	}
	if len(blocked) > 0 {
		return fmt.Errorf("disallowed imports: %s", strings.Join(blocked, ", "))
	}
	return nil
}

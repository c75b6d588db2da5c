package lifecycle

import (
	"errors"
	"reflect"
	"runtime"

	"go.mongodb.org/mongo-driver/bson"

	"docmapper/internal/common"
)

var (
	ErrIsNotAListener         = errors.New("provided function is not a recognizable listener")
	ErrListenerIsNotAFunction = errors.New("provided listener is not a function")
	ErrNotStructPointer       = errors.New("listener must accept a pointer to a struct")
)

var (
	contextPtrType = reflect.TypeOf((*Context)(nil))
	documentType   = reflect.TypeOf(bson.D(nil))
	errorType      = reflect.TypeOf((*error)(nil)).Elem()
)

// Listener is a typed hook function recognised by ParseListener.
type Listener struct {
	// Type is the struct type the listener is registered for.
	Type         reflect.Type
	PackageAlias string
	Name         string
	HasContext   bool
	HasDocument  bool
	HasErr       bool

	fn reflect.Value
}

// ParseListener inspects fn and returns a Listener if it has one of the
// supported shapes:
//   - func(v *T)
//   - func(v *T) error
//   - func(ctx *Context, v *T) error
//   - func(ctx *Context, v *T, doc bson.D) (bson.D, error)
func ParseListener(fn any) (Listener, error) {
	fnVal := reflect.ValueOf(fn)
	if !fnVal.IsValid() || fnVal.Kind() != reflect.Func {
		return Listener{}, ErrListenerIsNotAFunction
	}

	fnType := fnVal.Type()
	fnPC := runtime.FuncForPC(fnVal.Pointer())

	var name string
	if fnPC != nil {
		name = fnPC.Name()
	}

	alias, short := common.SplitFuncName(name)

	l := Listener{
		Name:         short,
		PackageAlias: alias,
		fn:           fnVal,
	}

	in := make([]reflect.Type, fnType.NumIn())
	for i := range in {
		in[i] = fnType.In(i)
	}

	if len(in) > 0 && in[0] == contextPtrType {
		l.HasContext = true
		in = in[1:]
	}

	switch {
	case len(in) == 1:
	case len(in) == 2 && l.HasContext && in[1] == documentType:
		l.HasDocument = true
	default:
		return Listener{}, ErrIsNotAListener
	}

	if in[0].Kind() != reflect.Ptr || in[0].Elem().Kind() != reflect.Struct {
		return Listener{}, ErrNotStructPointer
	}
	l.Type = in[0].Elem()

	switch fnType.NumOut() {
	case 0:
		if l.HasContext {
			return Listener{}, ErrIsNotAListener
		}
	case 1:
		if fnType.Out(0) != errorType || l.HasDocument {
			return Listener{}, ErrIsNotAListener
		}
		l.HasErr = true
	case 2:
		if !l.HasDocument || fnType.Out(0) != documentType || fnType.Out(1) != errorType {
			return Listener{}, ErrIsNotAListener
		}
		l.HasErr = true
	default:
		return Listener{}, ErrIsNotAListener
	}

	return l, nil
}

// Hook adapts the listener to the untyped Hook signature.
func (l Listener) Hook() Hook {
	ptrType := reflect.PointerTo(l.Type)

	return func(ctx *Context, instance any, doc bson.D) (bson.D, error) {
		target := reflect.Zero(ptrType)
		if instance != nil {
			target = reflect.ValueOf(instance)
		}

		args := make([]reflect.Value, 0, 3)
		if l.HasContext {
			args = append(args, reflect.ValueOf(ctx))
		}
		args = append(args, target)
		if l.HasDocument {
			args = append(args, reflect.ValueOf(doc))
		}

		out := l.fn.Call(args)

		switch len(out) {
		case 1:
			err, _ := out[0].Interface().(error)
			return nil, err
		case 2:
			err, _ := out[1].Interface().(error)
			replacement, _ := out[0].Interface().(bson.D)
			return replacement, err
		default:
			return nil, nil
		}
	}
}

// Listen parses fn with ParseListener and registers it for ev.
func (r *Registry) Listen(ev Event, fn any) error {
	l, err := ParseListener(fn)
	if err != nil {
		return err
	}

	r.On(l.Type, ev, l.Hook())

	return nil
}

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"sync"
)

// Handler runs a job.
type Handler interface {
	Handle(ctx context.Context, job *Job, data json.RawMessage) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, job *Job, data json.RawMessage) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, job *Job, data json.RawMessage) error {
	return f(ctx, job, data)
}

// Failer is implemented by handlers that want to be told about a job
// that will not be retried anymore.
type Failer interface {
	Failed(ctx context.Context, job *Job, data json.RawMessage) error
}

// Resolved is a handler ready to be dispatched.
// Failer is nil when the handler has no failure callback.
type Resolved struct {
	Handler Handler
	Failer  Failer
}

// Resolver turns descriptors into handlers.
type Resolver interface {
	Resolve(d Descriptor) (Resolved, error)
}

// Factory builds a handler for a named descriptor.
// It is called once per resolution.
type Factory func() (Handler, error)

// Registry is the default Resolver. It is safe for concurrent use.
type Registry struct {
	closures  map[string]Handler
	instances map[string]any
	funcs     map[string]HandlerFunc
	named     map[string]Factory
	mu        sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		closures:  make(map[string]Handler),
		instances: make(map[string]any),
		funcs:     make(map[string]HandlerFunc),
		named:     make(map[string]Factory),
	}
}

// RegisterClosure registers fn under key for Closure(key) descriptors.
func (r *Registry) RegisterClosure(key string, fn HandlerFunc) error {
	if key == "" || fn == nil {
		return fmt.Errorf("%w: closure needs a key and a function", ErrInvalidDescriptor)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.closures[key]; ok {
		return fmt.Errorf("%w: closure %s", ErrDuplicateHandler, key)
	}
	r.closures[key] = fn
	return nil
}

// RegisterInstance registers an already built object for Method(name, method)
// descriptors. Dispatched methods must have the signature
// func(context.Context, *Job, json.RawMessage) error.
// If target implements Failer, it receives failure callbacks.
func (r *Registry) RegisterInstance(name string, target any) error {
	if name == "" || target == nil {
		return fmt.Errorf("%w: instance needs a name and a target", ErrInvalidDescriptor)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.instances[name]; ok {
		return fmt.Errorf("%w: instance %s", ErrDuplicateHandler, name)
	}
	r.instances[name] = target
	return nil
}

// RegisterFunc registers a free function for Func(typ, name) descriptors.
func (r *Registry) RegisterFunc(typ, name string, fn HandlerFunc) error {
	if typ == "" || name == "" || fn == nil {
		return fmt.Errorf("%w: func needs a type, a name and a function", ErrInvalidDescriptor)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := funcKey(typ, name)
	if _, ok := r.funcs[key]; ok {
		return fmt.Errorf("%w: func %s", ErrDuplicateHandler, key)
	}
	r.funcs[key] = fn
	return nil
}

// RegisterNamed registers a factory for Named(name) descriptors.
func (r *Registry) RegisterNamed(name string, factory Factory) error {
	if name == "" || factory == nil {
		return fmt.Errorf("%w: named handler needs a name and a factory", ErrInvalidDescriptor)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.named[name]; ok {
		return fmt.Errorf("%w: named %s", ErrDuplicateHandler, name)
	}
	r.named[name] = factory
	return nil
}

// Names returns the registered named handlers, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.named))
}

// Resolve implements Resolver.
func (r *Registry) Resolve(d Descriptor) (Resolved, error) {
	if err := d.Validate(); err != nil {
		return Resolved{}, errors.Join(ErrHandlerResolution, err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	switch d.Kind {
	case KindClosure:
		h, ok := r.closures[d.Target]
		if !ok {
			return Resolved{}, fmt.Errorf("%w: unknown closure %s", ErrHandlerResolution, d.Target)
		}
		return resolved(h), nil

	case KindMethod:
		target, ok := r.instances[d.Target]
		if !ok {
			return Resolved{}, fmt.Errorf("%w: unknown instance %s", ErrHandlerResolution, d.Target)
		}
		fn, err := boundMethod(target, d.Method)
		if err != nil {
			return Resolved{}, errors.Join(ErrHandlerResolution, err)
		}
		res := Resolved{Handler: fn}
		if f, ok := target.(Failer); ok {
			res.Failer = f
		}
		return res, nil

	case KindFunc:
		fn, ok := r.funcs[funcKey(d.Target, d.Method)]
		if !ok {
			return Resolved{}, fmt.Errorf("%w: unknown func %s.%s", ErrHandlerResolution, d.Target, d.Method)
		}
		return resolved(fn), nil

	default: // KindNamed, Validate rejects anything else
		factory, ok := r.named[d.Target]
		if !ok {
			return Resolved{}, fmt.Errorf("%w: unknown handler %s", ErrHandlerResolution, d.Target)
		}
		h, err := factory()
		if err != nil {
			return Resolved{}, errors.Join(ErrHandlerResolution, err)
		}
		if h == nil {
			return Resolved{}, fmt.Errorf("%w: factory for %s returned nil", ErrHandlerResolution, d.Target)
		}
		return resolved(h), nil
	}
}

func resolved(h Handler) Resolved {
	res := Resolved{Handler: h}
	if f, ok := h.(Failer); ok {
		res.Failer = f
	}
	return res
}

func boundMethod(target any, name string) (HandlerFunc, error) {
	m := reflect.ValueOf(target).MethodByName(name)
	if !m.IsValid() {
		return nil, fmt.Errorf("%T has no method %s", target, name)
	}
	fn, ok := m.Interface().(func(context.Context, *Job, json.RawMessage) error)
	if !ok {
		return nil, fmt.Errorf("%T.%s has signature %s", target, name, m.Type())
	}
	return fn, nil
}

func funcKey(typ, name string) string {
	return typ + "." + name
}

// RegisterTask registers a typed task as a named handler.
// The task must implement Name() and Handle(ctx, P); the job data is decoded
// into P before Handle is called. A task that also implements
// Failed(ctx, P) error receives failure callbacks.
//
// Example:
//
//	type SendWelcome struct{ mailer Mailer }
//
//	func (t *SendWelcome) Name() string { return "send_welcome" }
//	func (t *SendWelcome) Handle(ctx context.Context, p WelcomePayload) error {
//	    return t.mailer.Send(ctx, p.Email)
//	}
//
//	queue.RegisterTask[WelcomePayload](registry, &SendWelcome{mailer: m})
func RegisterTask[P any, T interface {
	Name() string
	Handle(context.Context, P) error
}](r *Registry, task T) error {
	w := &taskWrapper[P, T]{task: task}
	return r.RegisterNamed(task.Name(), func() (Handler, error) {
		if _, ok := any(task).(interface {
			Failed(context.Context, P) error
		}); ok {
			return &failingTaskWrapper[P, T]{taskWrapper: w}, nil
		}
		return w, nil
	})
}

// taskWrapper adapts a typed task to Handler.
type taskWrapper[P any, T interface {
	Name() string
	Handle(context.Context, P) error
}] struct {
	task T
}

func (w *taskWrapper[P, T]) Handle(ctx context.Context, _ *Job, raw json.RawMessage) error {
	p, err := decodeTaskPayload[P](raw)
	if err != nil {
		return err
	}
	return w.task.Handle(ctx, p)
}

type failingTaskWrapper[P any, T interface {
	Name() string
	Handle(context.Context, P) error
}] struct {
	*taskWrapper[P, T]
}

func (w *failingTaskWrapper[P, T]) Failed(ctx context.Context, _ *Job, raw json.RawMessage) error {
	p, err := decodeTaskPayload[P](raw)
	if err != nil {
		return err
	}
	f := any(w.task).(interface {
		Failed(context.Context, P) error
	})
	return f.Failed(ctx, p)
}

func decodeTaskPayload[P any](raw json.RawMessage) (P, error) {
	var p P
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p); err != nil {
			return p, errors.Join(ErrSerialization, err)
		}
	}
	return p, nil
}

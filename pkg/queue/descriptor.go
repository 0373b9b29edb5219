package queue

import "fmt"

// Kind identifies how a handler descriptor is resolved.
type Kind string

const (
	// KindClosure refers to a function registered under a key.
	KindClosure Kind = "closure"
	// KindMethod refers to a method on a registered instance.
	KindMethod Kind = "method"
	// KindFunc refers to a free function grouped under a type name.
	KindFunc Kind = "func"
	// KindNamed refers to a handler built by a registered factory.
	KindNamed Kind = "named"
)

// Descriptor tells a worker which handler runs a job.
// It is stored inside the payload, so it only carries names.
type Descriptor struct {
	Kind   Kind   `json:"kind"`
	Target string `json:"target"`
	Method string `json:"method,omitempty"`
}

// Closure describes a handler registered with Registry.RegisterClosure.
// State captured by the closure travels in the job data.
func Closure(key string) Descriptor {
	return Descriptor{Kind: KindClosure, Target: key}
}

// Method describes a method on an instance registered with Registry.RegisterInstance.
func Method(target, method string) Descriptor {
	return Descriptor{Kind: KindMethod, Target: target, Method: method}
}

// Func describes a free function registered with Registry.RegisterFunc.
func Func(typ, name string) Descriptor {
	return Descriptor{Kind: KindFunc, Target: typ, Method: name}
}

// Named describes a handler registered with Registry.RegisterNamed or RegisterTask.
func Named(name string) Descriptor {
	return Descriptor{Kind: KindNamed, Target: name}
}

// Validate reports whether the descriptor can be resolved at all.
func (d Descriptor) Validate() error {
	switch d.Kind {
	case KindClosure, KindNamed:
		if d.Target == "" {
			return fmt.Errorf("%w: %s handler without target", ErrInvalidDescriptor, d.Kind)
		}
	case KindMethod, KindFunc:
		if d.Target == "" || d.Method == "" {
			return fmt.Errorf("%w: %s handler needs target and method", ErrInvalidDescriptor, d.Kind)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidDescriptor, d.Kind)
	}
	return nil
}

// String returns a compact form used in logs, e.g. "method:mailer.Send".
func (d Descriptor) String() string {
	if d.Method == "" {
		return string(d.Kind) + ":" + d.Target
	}
	return string(d.Kind) + ":" + d.Target + "." + d.Method
}

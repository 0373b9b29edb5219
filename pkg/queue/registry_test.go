package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type greeter struct {
	greeted []string
}

func (g *greeter) Greet(_ context.Context, _ *Job, data json.RawMessage) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	g.greeted = append(g.greeted, name)
	return nil
}

func (g *greeter) WrongSignature(string) {}

type welcomePayload struct {
	Email string `json:"email"`
}

type sendWelcome struct {
	sent   []string
	failed []string
}

func (t *sendWelcome) Name() string { return "send_welcome" }

func (t *sendWelcome) Handle(_ context.Context, p welcomePayload) error {
	t.sent = append(t.sent, p.Email)
	return nil
}

func (t *sendWelcome) Failed(_ context.Context, p welcomePayload) error {
	t.failed = append(t.failed, p.Email)
	return nil
}

type plainTask struct{}

func (plainTask) Name() string { return "plain" }
func (plainTask) Handle(context.Context, welcomePayload) error { return nil }

func TestRegistry_ResolveKinds(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	g := &greeter{}
	var calls []string

	require.NoError(t, registry.RegisterClosure("closure", func(context.Context, *Job, json.RawMessage) error {
		calls = append(calls, "closure")
		return nil
	}))
	require.NoError(t, registry.RegisterInstance("greeter", g))
	require.NoError(t, registry.RegisterFunc("reports", "Daily", func(context.Context, *Job, json.RawMessage) error {
		calls = append(calls, "func")
		return nil
	}))
	require.NoError(t, registry.RegisterNamed("named", func() (Handler, error) {
		return HandlerFunc(func(context.Context, *Job, json.RawMessage) error {
			calls = append(calls, "named")
			return nil
		}), nil
	}))

	for _, d := range []Descriptor{Closure("closure"), Func("reports", "Daily"), Named("named")} {
		res, err := registry.Resolve(d)
		require.NoError(t, err, d.String())
		require.NoError(t, res.Handler.Handle(context.Background(), nil, nil))
		assert.Nil(t, res.Failer)
	}
	assert.Equal(t, []string{"closure", "func", "named"}, calls)

	res, err := registry.Resolve(Method("greeter", "Greet"))
	require.NoError(t, err)
	require.NoError(t, res.Handler.Handle(context.Background(), nil, json.RawMessage(`"ann"`)))
	assert.Equal(t, []string{"ann"}, g.greeted)
}

func TestRegistry_ResolveErrors(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	require.NoError(t, registry.RegisterInstance("greeter", &greeter{}))
	require.NoError(t, registry.RegisterNamed("broken", func() (Handler, error) {
		return nil, errors.New("no database")
	}))

	tests := []struct {
		name string
		d    Descriptor
	}{
		{"unknown closure", Closure("nope")},
		{"unknown instance", Method("nobody", "Greet")},
		{"missing method", Method("greeter", "Wave")},
		{"wrong signature", Method("greeter", "WrongSignature")},
		{"unknown func", Func("reports", "Weekly")},
		{"unknown named", Named("nope")},
		{"factory error", Named("broken")},
		{"invalid kind", Descriptor{Kind: "lambda", Target: "x"}},
		{"missing method name", Descriptor{Kind: KindMethod, Target: "greeter"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := registry.Resolve(tt.d)
			assert.ErrorIs(t, err, ErrHandlerResolution)
		})
	}
}

func TestRegistry_Duplicates(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	noop := HandlerFunc(func(context.Context, *Job, json.RawMessage) error { return nil })

	require.NoError(t, registry.RegisterClosure("a", noop))
	assert.ErrorIs(t, registry.RegisterClosure("a", noop), ErrDuplicateHandler)

	require.NoError(t, registry.RegisterInstance("a", &greeter{}))
	assert.ErrorIs(t, registry.RegisterInstance("a", &greeter{}), ErrDuplicateHandler)

	require.NoError(t, registry.RegisterFunc("t", "a", noop))
	assert.ErrorIs(t, registry.RegisterFunc("t", "a", noop), ErrDuplicateHandler)

	require.NoError(t, RegisterTask[welcomePayload](registry, &sendWelcome{}))
	assert.ErrorIs(t, RegisterTask[welcomePayload](registry, &sendWelcome{}), ErrDuplicateHandler)

	assert.ErrorIs(t, registry.RegisterClosure("", noop), ErrInvalidDescriptor)
	assert.ErrorIs(t, registry.RegisterInstance("x", nil), ErrInvalidDescriptor)
	assert.ErrorIs(t, registry.RegisterNamed("x", nil), ErrInvalidDescriptor)
}

func TestRegisterTask(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	task := &sendWelcome{}
	require.NoError(t, RegisterTask[welcomePayload](registry, task))
	require.NoError(t, RegisterTask[welcomePayload](registry, plainTask{}))
	assert.Equal(t, []string{"plain", "send_welcome"}, registry.Names())

	res, err := registry.Resolve(Named("send_welcome"))
	require.NoError(t, err)
	require.NotNil(t, res.Failer)

	ctx := context.Background()
	require.NoError(t, res.Handler.Handle(ctx, nil, json.RawMessage(`{"email":"a@b.c"}`)))
	require.NoError(t, res.Failer.Failed(ctx, nil, json.RawMessage(`{"email":"x@y.z"}`)))
	assert.Equal(t, []string{"a@b.c"}, task.sent)
	assert.Equal(t, []string{"x@y.z"}, task.failed)

	err = res.Handler.Handle(ctx, nil, json.RawMessage(`[1,2]`))
	assert.ErrorIs(t, err, ErrSerialization)

	res, err = registry.Resolve(Named("plain"))
	require.NoError(t, err)
	assert.Nil(t, res.Failer)
}

func TestDescriptor_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "closure:resize", Closure("resize").String())
	assert.Equal(t, "method:mailer.Send", Method("mailer", "Send").String())
	assert.Equal(t, "func:reports.Daily", Func("reports", "Daily").String())
	assert.Equal(t, "named:send_welcome", Named("send_welcome").String())
}

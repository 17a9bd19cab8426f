package agent

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/stepgraph/pkg/api"
)

// ---------------------------------------------------------------------------
// Registry tests
// ---------------------------------------------------------------------------

func TestNewRegistry(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	require.NotNil(t, r)
	assert.Empty(t, r.List())
}

func TestRegistry_Register_Get_RoundTrip(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	mock := NewMockAgent("writer")

	require.NoError(t, r.Register(mock))

	got, err := r.Get("writer")
	require.NoError(t, err)
	assert.Equal(t, mock, got)
	assert.True(t, r.Has("writer"))
}

func TestRegistry_Register_DuplicateName(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	require.NoError(t, r.Register(NewMockAgent("writer")))

	err := r.Register(NewMockAgent("writer"))
	assert.ErrorIs(t, err, ErrDuplicateName)
}

func TestRegistry_Register_InvalidNames(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		agentName string
	}{
		{name: "empty name", agentName: ""},
		{name: "starts with hyphen", agentName: "-writer"},
		{name: "contains space", agentName: "my agent"},
		{name: "contains slash", agentName: "writer/3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := NewRegistry().Register(NewMockAgent(tt.agentName))
			assert.ErrorIs(t, err, ErrInvalidName)
		})
	}

	assert.ErrorIs(t, NewRegistry().Register(nil), ErrInvalidName)
}

func TestRegistry_Get_NotFound(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry().Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Panics(t, func() { NewRegistry().MustGet("missing") })
}

func TestRegistry_List_Sorted(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	for _, n := range []string{"zeta", "alpha", "mid.v2"} {
		require.NoError(t, r.Register(NewMockAgent(n)))
	}
	assert.Equal(t, []string{"alpha", "mid.v2", "zeta"}, r.List())
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	require.NoError(t, r.Register(NewMockAgent("shared")))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Get("shared")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

// ---------------------------------------------------------------------------
// Generate tests
// ---------------------------------------------------------------------------

func TestGenerate_DefaultEcho(t *testing.T) {
	t.Parallel()

	mock := NewMockAgent("echo")
	resp, err := Generate(context.Background(), mock, Request{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "mock: hi", resp.Value())
	assert.Positive(t, resp.Duration)
	require.Len(t, mock.Calls(), 1)
	assert.Equal(t, "hi", mock.Calls()[0].Prompt)
}

func TestGenerate_ScriptedResponsesInOrder(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	mock := NewMockAgent("scripted").WithText("first").WithError(boom)

	resp, err := Generate(context.Background(), mock, Request{Prompt: "1"})
	require.NoError(t, err)
	assert.Equal(t, "first", resp.Text)

	_, err = Generate(context.Background(), mock, Request{Prompt: "2"})
	assert.ErrorIs(t, err, boom)

	resp, err = Generate(context.Background(), mock, Request{Prompt: "3"})
	require.NoError(t, err)
	assert.Equal(t, "mock: 3", resp.Text)
}

func TestGenerate_EmptyPrompt(t *testing.T) {
	t.Parallel()

	mock := NewMockAgent("x")
	_, err := Generate(context.Background(), mock, Request{})
	assert.ErrorIs(t, err, ErrEmptyPrompt)
	assert.Empty(t, mock.Calls())
}

func TestGenerate_StructuredResponseValidated(t *testing.T) {
	t.Parallel()

	schema := api.Object(api.Required("summary", api.String()))

	ok := NewMockAgent("ok").WithObject(map[string]any{"summary": "short"})
	resp, err := Generate(context.Background(), ok, Request{Prompt: "p", OutputSchema: schema})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"summary": "short"}, resp.Value())

	bad := NewMockAgent("bad").WithObject(map[string]any{"other": 1})
	_, err = Generate(context.Background(), bad, Request{Prompt: "p", OutputSchema: schema})
	assert.ErrorIs(t, err, api.ErrContractViolation)
}

func TestGenerate_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Generate(ctx, NewMockAgent("x"), Request{Prompt: "p"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFuncAdapter(t *testing.T) {
	t.Parallel()

	f := NewFunc("upper", func(_ context.Context, req Request) (*Response, error) {
		return &Response{Text: req.System + ":" + req.Prompt}, nil
	})
	resp, err := Generate(context.Background(), f, Request{Prompt: "p", System: "s"})
	require.NoError(t, err)
	assert.Equal(t, "upper", f.Name())
	assert.Equal(t, "s:p", resp.Text)
}

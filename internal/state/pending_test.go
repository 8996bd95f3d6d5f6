package state

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPending_SettleOnce(t *testing.T) {
	p, settle := NewPending()
	assert.False(t, p.IsSettled())
	_, err := p.Result()
	require.ErrorIs(t, err, ErrNotSettled)

	settle("first", nil)
	settle("second", errors.New("ignored"))

	v, err := p.Result()
	require.NoError(t, err)
	assert.Equal(t, "first", v)
}

func TestPending_HooksRunBeforeDone(t *testing.T) {
	p, settle := NewPending()
	var seen []string
	p.OnSettle(func(v any, _ error) { seen = append(seen, "hook:"+v.(string)) })

	go settle("x", nil)
	<-p.Done()
	assert.Equal(t, []string{"hook:x"}, seen)

	p.OnSettle(func(v any, _ error) { seen = append(seen, "late:"+v.(string)) })
	assert.Equal(t, []string{"hook:x", "late:x"}, seen)
}

func TestPending_HookPanicIsolated(t *testing.T) {
	p, settle := NewPending()
	ran := false
	p.OnSettle(func(any, error) { panic("boom") })
	p.OnSettle(func(any, error) { ran = true })

	settle(nil, nil)
	assert.True(t, ran)
	assert.True(t, p.IsSettled())
}

func TestPending_HookOnlyWhileUnsettled(t *testing.T) {
	p, settle := NewPending()
	calls := 0
	require.True(t, p.Hook(func(any, error) { calls++ }))

	settle(nil, nil)
	assert.Equal(t, 1, calls)

	assert.False(t, p.Hook(func(any, error) { calls++ }))
	assert.Equal(t, 1, calls)
}

func TestPending_Go(t *testing.T) {
	p := Go(context.Background(), func(context.Context) (any, error) {
		return 42, nil
	})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, err := p.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

// File: internal/executor/selector_test.go
package executor

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/uxprobe/internal/agenttest"
)

func TestResolveTarget_ExactSelectorWins(t *testing.T) {
	adapter := agenttest.NewFakeAdapter()
	adapter.AddElement("#login-form input[type=submit]", "input", "Log in")

	selector, handle, err := resolveTarget(context.Background(), adapter, "#login-form input[type=submit]")
	require.NoError(t, err)
	assert.Equal(t, "#login-form input[type=submit]", selector)
	assert.Equal(t, "input", handle.Tag)
}

func TestResolveTarget_BareWordShorthand(t *testing.T) {
	adapter := agenttest.NewFakeAdapter()
	adapter.AddElement("#submit", "button", "Submit")

	selector, _, err := resolveTarget(context.Background(), adapter, "submit")
	require.NoError(t, err)
	assert.Equal(t, "#submit", selector, "bare words must try the id shorthand first")
}

func TestResolveTarget_NameShorthand(t *testing.T) {
	adapter := agenttest.NewFakeAdapter()
	adapter.AddElement(`[name="email"]`, "input", "")

	selector, _, err := resolveTarget(context.Background(), adapter, "email")
	require.NoError(t, err)
	assert.Equal(t, `[name="email"]`, selector)
}

func TestResolveTarget_FuzzyTextFallback(t *testing.T) {
	adapter := agenttest.NewFakeAdapter()
	xpath := fmt.Sprintf(
		`//*[self::a or self::button or self::input][contains(normalize-space(.), "%s")]`, "Log in")
	adapter.AddElement(xpath, "a", "Log in")

	selector, handle, err := resolveTarget(context.Background(), adapter, "Log in")
	require.NoError(t, err)
	assert.Equal(t, xpath, selector)
	assert.Equal(t, "a", handle.Tag)
}

func TestResolveTarget_NoMatch(t *testing.T) {
	adapter := agenttest.NewFakeAdapter()

	_, _, err := resolveTarget(context.Background(), adapter, "ghost-button")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrElementNotFound)
}

func TestResolveTarget_EmptyTarget(t *testing.T) {
	adapter := agenttest.NewFakeAdapter()

	_, _, err := resolveTarget(context.Background(), adapter, "   ")
	assert.ErrorIs(t, err, ErrElementNotFound)
}

func TestResolveTarget_AdapterErrorAborts(t *testing.T) {
	adapter := agenttest.NewFakeAdapter()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := resolveTarget(ctx, adapter, "anything")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

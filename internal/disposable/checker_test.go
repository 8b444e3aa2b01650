package disposable_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mailprobe/mailprobe/internal/disposable"
)

func TestIsDisposable(t *testing.T) {
	assert.True(t, disposable.IsDisposable("mailinator.com"))
	assert.True(t, disposable.IsDisposable("MAILINATOR.COM"))
	assert.True(t, disposable.IsDisposable("yopmail.com"))
	assert.False(t, disposable.IsDisposable("gmail.com"))
	assert.False(t, disposable.IsDisposable("example.com"))
}

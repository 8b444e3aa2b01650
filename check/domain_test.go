package check_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mailprobe/mailprobe/check"
	"github.com/mailprobe/mailprobe/internal/parse"
)

func TestDomainChecker_Allowlist(t *testing.T) {
	c := check.NewDomainChecker(check.DomainConfig{
		AllowedDomains: []string{"gmail.com", "Example.COM "},
	})
	ctx := context.Background()

	result := c.Check(ctx, parse.NewEmail("user@gmail.com"))
	assert.True(t, result.Passed)

	// Entries are normalized, so case and whitespace in the list don't matter.
	result = c.Check(ctx, parse.NewEmail("user@example.com"))
	assert.True(t, result.Passed)

	result = c.Check(ctx, parse.NewEmail("user@other.com"))
	assert.False(t, result.Passed)
	assert.Contains(t, result.Details, "not in the allowed list")
}

func TestDomainChecker_EmptyAllowlistAllowsAll(t *testing.T) {
	c := check.NewDomainChecker(check.DomainConfig{})
	result := c.Check(context.Background(), parse.NewEmail("user@whatever.example"))
	assert.True(t, result.Passed)
}

func TestDomainChecker_Disposable(t *testing.T) {
	c := check.NewDomainChecker(check.DomainConfig{CheckDisposable: true})

	result := c.Check(context.Background(), parse.NewEmail("user@mailinator.com"))
	assert.False(t, result.Passed)
	assert.Contains(t, result.Details, "disposable")

	result = c.Check(context.Background(), parse.NewEmail("user@example.com"))
	assert.True(t, result.Passed)
}

func TestDomainChecker_TypoSuggestion(t *testing.T) {
	c := check.NewDomainChecker(check.DomainConfig{CheckTypos: true, TypoThreshold: 2})

	result := c.Check(context.Background(), parse.NewEmail("user@gmial.com"))
	assert.True(t, result.Passed) // suggestion only, never fails
	assert.Equal(t, "gmail.com", result.Suggestion)

	result = c.Check(context.Background(), parse.NewEmail("user@gmail.com"))
	assert.True(t, result.Passed)
	assert.Empty(t, result.Suggestion)
}

func TestDomainChecker_InvalidEmail(t *testing.T) {
	c := check.NewDomainChecker(check.DomainConfig{})
	result := c.Check(context.Background(), parse.NewEmail("invalid"))
	assert.False(t, result.Passed)
	assert.Contains(t, result.Details, "skipped")
}

package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	t.Parallel()

	got := String()

	assert.Contains(t, got, "commit: "+Commit)
	assert.Contains(t, got, "built: "+Date)
	assert.NotEmpty(t, resolvedVersion())
}

package codegen

import (
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_Format(t *testing.T) {
	re := regexp.MustCompile(fmt.Sprintf(`^FARM-%d-[A-Z0-9]{6}$`, time.Now().Year()))
	for i := 0; i < 20; i++ {
		assert.Regexp(t, re, Generate("FARM"))
	}
}

func TestUnique_RetriesThenSucceeds(t *testing.T) {
	calls := 0
	code, err := Unique("VISIT", func(string) (bool, error) {
		calls++
		return calls < 3, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, code, "VISIT-")
}

func TestUnique_Exhausted(t *testing.T) {
	calls := 0
	_, err := Unique("FARM", func(string) (bool, error) {
		calls++
		return true, nil
	})
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, MaxAttempts, calls)
}

package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseIntDefault(t *testing.T) {
	assert.Equal(t, 3, ParseIntDefault("3", 0))
	assert.Equal(t, 7, ParseIntDefault("", 7))
	assert.Equal(t, 7, ParseIntDefault("not a number", 7))
	assert.Equal(t, 7, ParseIntDefault("1.5", 7))
}

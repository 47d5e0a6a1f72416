package fraud

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundScore(t *testing.T) {
	assert.Equal(t, 0.13, roundScore(0.125))
	assert.Equal(t, 0.38, roundScore(0.375))
	assert.Equal(t, 0.4, roundScore(0.3999))
	assert.Equal(t, 1.0, roundScore(1.7))
	assert.Equal(t, 0.0, roundScore(0))
}

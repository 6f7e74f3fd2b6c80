package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedAndToday(t *testing.T) {
	c := Fixed(time.Date(2024, 3, 10, 14, 30, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 3, 10, 14, 30, 0, 0, time.UTC), c.Now())
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), Today(c))

	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), FixedDate(2024, time.March, 1, nil).Now())
}

func TestNewSystem(t *testing.T) {
	c, err := NewSystem("America/Sao_Paulo")
	require.NoError(t, err)
	assert.Equal(t, "America/Sao_Paulo", c.Now().Location().String())

	_, err = NewSystem("Mars/Olympus")
	assert.Error(t, err)
}

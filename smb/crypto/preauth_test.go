package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPreauthHashDeterministic(t *testing.T) {
	a := NewPreauthHashState()
	a.Update([]byte("negotiate request"))
	a.Update([]byte("negotiate response"))

	b := NewPreauthHashState()
	b.Update([]byte("negotiate request"))
	b.Update([]byte("negotiate response"))

	assert.Equal(t, a.Sum(), b.Sum())
}

func TestPreauthHashOrderSensitive(t *testing.T) {
	a := NewPreauthHashState()
	a.Update([]byte("one"))
	a.Update([]byte("two"))

	b := NewPreauthHashState()
	b.Update([]byte("two"))
	b.Update([]byte("one"))

	assert.NotEqual(t, a.Sum(), b.Sum())
}

func TestPreauthHashFinish(t *testing.T) {
	p := NewPreauthHashState()
	p.Update([]byte("x"))
	p.Finish()
	assert.True(t, p.Finished())

	assert.Panics(t, func() { p.Update([]byte("y")) })
	assert.Panics(t, func() { p.Finish() })
}

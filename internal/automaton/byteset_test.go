package automaton

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_ByteSet_AddAndHas(t *testing.T) {
	assert := assert.New(t)

	var s ByteSet
	assert.True(s.Empty())

	s.Add('a')
	assert.True(s.Has('a'))
	assert.False(s.Has('b'))
	assert.False(s.Empty())
}

func Test_ByteSet_AddRange(t *testing.T) {
	assert := assert.New(t)

	var s ByteSet
	s.AddRange('a', 'z')

	assert.True(s.Has('a'))
	assert.True(s.Has('m'))
	assert.True(s.Has('z'))
	assert.False(s.Has('A'))
	assert.False(s.Has('0'))
}

func Test_ByteSet_Union(t *testing.T) {
	assert := assert.New(t)

	var a, b ByteSet
	a.Add('x')
	b.Add('y')

	u := a.Union(b)
	assert.True(u.Has('x'))
	assert.True(u.Has('y'))
	assert.False(u.Has('z'))
}

func Test_ByteSet_Equal(t *testing.T) {
	assert := assert.New(t)

	var a, b ByteSet
	a.AddRange('0', '9')
	b.AddRange('0', '9')
	assert.True(a.Equal(b))

	b.Add('x')
	assert.False(a.Equal(b))
}

func Test_ByteSet_Bytes_AscendingOrder(t *testing.T) {
	assert := assert.New(t)

	var s ByteSet
	s.Add('c')
	s.Add('a')
	s.Add('b')

	assert.Equal([]byte{'a', 'b', 'c'}, s.Bytes())
}

func Test_ByteSet_Bytes_SpansWordBoundary(t *testing.T) {
	assert := assert.New(t)

	// 64 and 63 straddle the underlying uint64 words (b/64 == 0 vs 1).
	var s ByteSet
	s.Add(63)
	s.Add(64)

	assert.Equal([]byte{63, 64}, s.Bytes())
}

package ribose

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFieldAppendAndBytes(t *testing.T) {
	var f Field
	assert.Equal(t, 0, f.Len())
	assert.Nil(t, f.Bytes())

	f.Append([]byte("hel"))
	f.AppendByte('l')
	f.Append([]byte("o"))
	assert.Equal(t, "hello", string(f.Bytes()))
	assert.Equal(t, 5, f.Len())
}

func TestFieldSetOverwritesInPlace(t *testing.T) {
	var f Field
	f.Append([]byte("first"))
	f.Set([]byte("x"))
	assert.Equal(t, "x", string(f.Bytes()))
	assert.Equal(t, 1, f.Len())
}

func TestFieldClear(t *testing.T) {
	var f Field
	f.Append([]byte("data"))
	f.Clear()
	assert.Equal(t, 0, f.Len())
	assert.Equal(t, "", string(f.Bytes()))
}

func TestNilFieldBytesIsNil(t *testing.T) {
	var f *Field
	assert.Nil(t, f.Bytes())
}

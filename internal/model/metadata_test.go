package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataScan(t *testing.T) {
	var m Metadata
	require.NoError(t, m.Scan([]byte(`{"endpoint_id":"abc","duration":30}`)))
	assert.Equal(t, "abc", m["endpoint_id"])
	assert.Equal(t, float64(30), m["duration"])

	require.NoError(t, m.Scan(nil))
	assert.Nil(t, m)

	assert.Error(t, m.Scan(42))
}

func TestMetadataValueOfNilIsNull(t *testing.T) {
	var m Metadata
	v, err := m.Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestMetadataMerge(t *testing.T) {
	base := Metadata{"a": 1, "b": 2}
	merged := base.Merge(Metadata{"b": 3, "c": 4})

	assert.Equal(t, Metadata{"a": 1, "b": 3, "c": 4}, merged)
	assert.Equal(t, 2, base["b"])
}

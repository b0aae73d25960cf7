package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagAcceptsEveryBackendForm(t *testing.T) {
	var row struct {
		A Flag `json:"a"`
		B Flag `json:"b"`
		C Flag `json:"c"`
		D Flag `json:"d"`
		E Flag `json:"e"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":1,"b":"1","c":true,"d":"false","e":null}`), &row))
	assert.True(t, bool(row.A))
	assert.True(t, bool(row.B))
	assert.True(t, bool(row.C))
	assert.False(t, bool(row.D))
	assert.False(t, bool(row.E))

	var bad Flag
	assert.Error(t, json.Unmarshal([]byte(`"maybe"`), &bad))
}

func TestFlagMarshalsAsInteger(t *testing.T) {
	out, err := json.Marshal(map[string]Flag{"isChecked": true, "urgent": false})
	require.NoError(t, err)
	assert.JSONEq(t, `{"isChecked":1,"urgent":0}`, string(out))
	assert.Equal(t, 1, Flag(true).Int())
}

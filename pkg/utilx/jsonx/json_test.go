package jsonx_test

import (
	"testing"

	"github.com/marcodd23/go-micro-dbcmd/pkg/utilx/jsonx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToRawMessage(t *testing.T) {
	raw, err := jsonx.ToRawMessage(map[string]interface{}{"status": "shipped"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"shipped"}`, string(raw))

	raw, err = jsonx.ToRawMessage(`{"n":1}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":1}`, string(raw))

	raw, err = jsonx.ToRawMessage(nil)
	require.NoError(t, err)
	assert.Nil(t, raw)

	_, err = jsonx.ToRawMessage([]byte("{not json"))
	assert.Error(t, err)
}

func TestParseJSON(t *testing.T) {
	m, err := jsonx.ParseJSON([]byte(`{"a":"b"}`))
	require.NoError(t, err)
	assert.Equal(t, "b", m["a"])

	_, err = jsonx.ParseJSON([]byte(`[`))
	assert.Error(t, err)
}

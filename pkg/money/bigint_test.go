package money

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmount_UnmarshalJSON_String(t *testing.T) {
	var a Amount
	require.NoError(t, json.Unmarshal([]byte(`"1.5"`), &a))
	assert.Equal(t, "1.5", a.String())
}

func TestAmount_UnmarshalJSON_Null(t *testing.T) {
	var a Amount
	require.NoError(t, json.Unmarshal([]byte(`null`), &a))
	assert.True(t, a.IsNil())
}

func TestAmount_UnmarshalJSON_RejectsNumber(t *testing.T) {
	var a Amount
	assert.Error(t, json.Unmarshal([]byte(`1.5`), &a))
}

func TestAmount_UnmarshalJSON_RejectsNegative(t *testing.T) {
	var a Amount
	assert.Error(t, json.Unmarshal([]byte(`"-1"`), &a))
}

func TestAmount_MarshalJSON(t *testing.T) {
	a, err := ParseAmount("0.2500")
	require.NoError(t, err)

	data, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Equal(t, `"0.25"`, string(data))
}

func TestAmount_MarshalJSON_Nil(t *testing.T) {
	var a *Amount
	data, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))
}

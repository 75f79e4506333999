// SPDX-License-Identifier: MIT

package civil

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateJSON(t *testing.T) {
	type doc struct {
		Fecha Date `json:"fecha"`
	}
	var d doc
	require.NoError(t, json.Unmarshal([]byte(`{"fecha":"2024-11-05"}`), &d))
	assert.Equal(t, NewDate(2024, time.November, 5), d.Fecha)

	b, err := json.Marshal(doc{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"fecha":null}`, string(b))

	require.Error(t, json.Unmarshal([]byte(`{"fecha":"05/11/2024"}`), &d))
}

func TestDateScanValue(t *testing.T) {
	d := NewDate(2023, time.March, 9)
	v, err := d.Value()
	require.NoError(t, err)
	assert.Equal(t, "2023-03-09", v)

	var got Date
	require.NoError(t, got.Scan("2023-03-09"))
	assert.Equal(t, d, got)
	require.NoError(t, got.Scan(nil))
	assert.True(t, got.IsZero())

	p, err := Parse("2023-03-09T15:04:05Z")
	require.NoError(t, err)
	assert.Equal(t, d, p)
	assert.True(t, NewDate(2023, 1, 1).Before(d))
}

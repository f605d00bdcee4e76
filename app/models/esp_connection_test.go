package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectedPublicationIDs(t *testing.T) {
	tests := []struct {
		name   string
		conn   EspConnection
		expect []string
	}{
		{
			name:   "multi-value selection",
			conn:   EspConnection{SelectedPublicationsJSON: `["list-a","list-b"]`},
			expect: []string{"list-a", "list-b"},
		},
		{
			name:   "entries are trimmed and blanks dropped",
			conn:   EspConnection{SelectedPublicationsJSON: `[" list-a ",""," "]`},
			expect: []string{"list-a"},
		},
		{
			name:   "legacy single publication fallback",
			conn:   EspConnection{PublicationID: "legacy-list"},
			expect: []string{"legacy-list"},
		},
		{
			name:   "empty json array falls back to legacy",
			conn:   EspConnection{SelectedPublicationsJSON: `[]`, PublicationID: "legacy-list"},
			expect: []string{"legacy-list"},
		},
		{
			name:   "malformed json falls back to legacy",
			conn:   EspConnection{SelectedPublicationsJSON: `{broken`, PublicationID: "legacy-list"},
			expect: []string{"legacy-list"},
		},
		{
			name:   "no selection at all",
			conn:   EspConnection{},
			expect: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, tt.conn.SelectedPublicationIDs())
		})
	}
}

func TestSetSelectedPublicationIDs(t *testing.T) {
	var conn EspConnection
	require.NoError(t, conn.SetSelectedPublicationIDs([]string{" list-a ", "", "list-b"}))
	assert.Equal(t, []string{"list-a", "list-b"}, conn.SelectedPublicationIDs())

	// Overwriting with an empty selection clears the multi-value list.
	require.NoError(t, conn.SetSelectedPublicationIDs(nil))
	assert.Nil(t, conn.SelectedPublicationIDs())
}

func TestIsOAuth(t *testing.T) {
	assert.True(t, (&EspConnection{AuthMethod: AuthMethodOAuth}).IsOAuth())
	assert.False(t, (&EspConnection{AuthMethod: AuthMethodAPIKey}).IsOAuth())
	assert.False(t, (&EspConnection{}).IsOAuth())
}

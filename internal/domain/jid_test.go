package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParseJID(t *testing.T) {
	tests := []struct {
		input   string
		want    JID
		wantErr bool
	}{
		{"15551234567@s.whatsapp.net", JID{User: "15551234567", Server: UserServer}, false},
		{"120363000000000000@g.us", JID{User: "120363000000000000", Server: GroupServer}, false},
		{"1234@lid", JID{User: "1234", Server: "lid"}, false},
		{"no-separator", JID{}, true},
		{"@s.whatsapp.net", JID{}, true},
		{"1234@", JID{}, true},
		{"", JID{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseJID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, KindInvalidArgument, KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJIDPredicates(t *testing.T) {
	user := MustParseJID("15551234567@s.whatsapp.net")
	group := MustParseJID("120363000000000000@g.us")

	assert.True(t, user.IsUser())
	assert.False(t, user.IsGroup())
	assert.Equal(t, "15551234567", user.PhoneNumber())

	assert.True(t, group.IsGroup())
	assert.False(t, group.IsUser())
	assert.Empty(t, group.PhoneNumber())
}

func TestJIDString(t *testing.T) {
	assert.Equal(t, "1234@s.whatsapp.net", JID{User: "1234", Server: UserServer}.String())
	assert.Equal(t, GroupServer, JID{Server: GroupServer}.String())
}

// Round-trip: parse(format(jid)) == jid for every well-formed jid.
func TestJIDRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		user := rapid.StringMatching(`[0-9]{6,15}`).Draw(t, "user")
		server := rapid.SampledFrom([]string{UserServer, GroupServer, "lid", "broadcast"}).Draw(t, "server")

		jid := JID{User: user, Server: server}
		parsed, err := ParseJID(jid.String())
		if err != nil {
			t.Fatalf("parse(%q): %v", jid.String(), err)
		}
		if parsed != jid {
			t.Fatalf("round trip mismatch: %v != %v", parsed, jid)
		}
	})
}

func TestJIDParseRejectsMalformed(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.StringMatching(`[a-z0-9.]*`).Draw(t, "input")
		// Anything without a separator must fail.
		if _, err := ParseJID(s); err == nil {
			t.Fatalf("expected parse failure for %q", s)
		}
	})
}

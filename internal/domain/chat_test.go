package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChatID_IsOrderIndependent(t *testing.T) {
	assert.Equal(t, "alice_bob", ChatID("alice", "bob"))
	assert.Equal(t, "alice_bob", ChatID("bob", "alice"))
}

func TestRequestID_IsDirectional(t *testing.T) {
	assert.Equal(t, "a_b", RequestID("a", "b"))
	assert.NotEqual(t, RequestID("a", "b"), RequestID("b", "a"))
}

func TestAccount_Partner(t *testing.T) {
	a := &Account{ID: "a"}
	assert.False(t, a.HasPartner())
	assert.Equal(t, "", a.Partner())

	empty := ""
	a.PartnerID = &empty
	assert.False(t, a.HasPartner())

	b := "b"
	a.PartnerID = &b
	assert.True(t, a.HasPartner())
	assert.Equal(t, "b", a.Partner())
}

func TestMembers(t *testing.T) {
	assert.Equal(t, []string{"a"}, Members("a", ""))
	assert.Equal(t, []string{"a", "b"}, Members("a", "b"))
	assert.True(t, HasMember([]string{"a", "b"}, "b"))
	assert.False(t, HasMember([]string{"a"}, "c"))
}

func TestNormalizeUsername(t *testing.T) {
	assert.Equal(t, "alice", NormalizeUsername("  Alice "))
}

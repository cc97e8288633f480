package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClone_DoesNotAliasEvents(t *testing.T) {
	orig := UserRecord{Email: "a@x.com", UserEvents: []UserEvent{{Timestamp: "t1", Description: "MFA enrolled"}}}
	cp := orig.Clone()
	cp.UserEvents[0].Description = "changed"
	cp.UserEvents = append(cp.UserEvents, UserEvent{Timestamp: "t2", Description: "x"})

	assert.Equal(t, "MFA enrolled", orig.UserEvents[0].Description)
	assert.Len(t, orig.UserEvents, 1)
}

func TestHasEvent(t *testing.T) {
	rec := UserRecord{UserEvents: []UserEvent{{Timestamp: "t1", Description: "MFA enrolled"}}}

	assert.True(t, rec.HasEvent(UserEvent{Timestamp: "t1", Description: "MFA enrolled"}))
	assert.False(t, rec.HasEvent(UserEvent{Timestamp: "t2", Description: "MFA enrolled"}))
}

func TestProjectedFields(t *testing.T) {
	p := ProjectedFields{"email": "a@x.com", "lastLogin": nil, "count": 3, "admin": true}

	assert.Equal(t, "a@x.com", p.String("email"))
	assert.Equal(t, "", p.String("lastLogin"))
	assert.Equal(t, "", p.String("count"))
	assert.Equal(t, "", p.String("missing"))

	admin, set := p.Admin()
	assert.True(t, admin)
	assert.True(t, set)

	_, set = ProjectedFields{}.Admin()
	assert.False(t, set)
}

func TestRawUserID(t *testing.T) {
	assert.Equal(t, "u1", RawUser{"id": "u1"}.ID())
	assert.Equal(t, "", RawUser{"id": 7}.ID())
	assert.Equal(t, "", RawUser{}.ID())
}

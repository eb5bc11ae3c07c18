package authdomain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestPrincipal_HasRole(t *testing.T) {
	organizer := Principal{ID: uuid.New(), Role: RoleOrganizer}
	admin := Principal{ID: uuid.New(), Role: RoleAdmin}
	participant := Principal{ID: uuid.New(), Role: RoleParticipant}

	assert.True(t, organizer.HasRole(RoleOrganizer))
	assert.False(t, organizer.HasRole(RoleAdmin))
	assert.True(t, admin.HasRole(RoleOrganizer))
	assert.False(t, participant.HasRole(RoleOrganizer, RoleAdmin))
}

func TestPrincipal_Owns(t *testing.T) {
	me := uuid.New()
	assert.True(t, Principal{ID: me, Role: RoleParticipant}.Owns(me))
	assert.False(t, Principal{ID: uuid.New(), Role: RoleParticipant}.Owns(me))
	assert.True(t, Principal{ID: uuid.New(), Role: RoleAdmin}.Owns(me))
}

func TestSystemActorID(t *testing.T) {
	assert.Nil(t, System.ActorID())
	id := uuid.New()
	assert.Equal(t, &id, Principal{ID: id}.ActorID())
}

package app

import (
	"fmt"
	"testing"

	"github.com/dkeye/polyglot/internal/core"
	"github.com/dkeye/polyglot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func live(id string, user domain.UserID) (LiveConn, *fakeConn) {
	fc := &fakeConn{}
	return LiveConn{ID: core.ConnID(id), User: user, Conn: fc}, fc
}

func TestBroadcastSkipsSenderDevices(t *testing.T) {
	rr := NewRoomRegistry()
	a1, fa1 := live("a1", "ann")
	a2, fa2 := live("a2", "ann")
	b, fb := live("b", "bob")
	for _, c := range []LiveConn{a1, a2, b} {
		rr.Join(c, "R1")
	}

	res := rr.Broadcast("R1", "ann", core.Frame("hi"))

	assert.Equal(t, 1, res.SendTo)
	assert.Empty(t, res.Dropped)
	assert.Equal(t, []string{"hi"}, fb.got())
	assert.Empty(t, fa1.got())
	assert.Empty(t, fa2.got())
}

func TestBroadcastReportsBackpressure(t *testing.T) {
	rr := NewRoomRegistry()
	b, fb := live("b", "bob")
	fb.full = true
	c, _ := live("c", "cat")
	rr.Join(b, "R1")
	rr.Join(c, "R1")

	res := rr.Broadcast("R1", "ann", core.Frame("hi"))
	assert.Equal(t, 1, res.SendTo)
	assert.Equal(t, []core.ConnID{"b"}, res.Dropped)
}

func TestJoinMovesBetweenRooms(t *testing.T) {
	rr := NewRoomRegistry()
	b, fb := live("b", "bob")
	rr.Join(b, "R1")
	rr.Join(b, "R1")
	assert.Len(t, rr.MembersOf("R1"), 1)

	rr.Join(b, "R2")
	assert.Empty(t, rr.MembersOf("R1"))
	assert.Equal(t, []core.ConnID{"b"}, rr.MembersOf("R2"))

	rr.Broadcast("R1", "ann", core.Frame("old"))
	rr.Broadcast("R2", "ann", core.Frame("new"))
	assert.Equal(t, []string{"new"}, fb.got())
}

func TestLeaveDropsEmptyRoom(t *testing.T) {
	rr := NewRoomRegistry()
	b, _ := live("b", "bob")
	rr.Join(b, "R1")
	require.Len(t, rr.List(), 1)

	roomID, ok := rr.Leave("b")
	assert.True(t, ok)
	assert.Equal(t, domain.RoomID("R1"), roomID)
	assert.Empty(t, rr.List())

	_, ok = rr.Leave("b")
	assert.False(t, ok)
}

func TestBroadcastOrderIsPublishOrder(t *testing.T) {
	rr := NewRoomRegistry()
	b, fb := live("b", "bob")
	c, fc := live("c", "cat")
	rr.Join(b, "R1")
	rr.Join(c, "R1")

	var want []string
	for i := 0; i < 20; i++ {
		f := fmt.Sprintf("m%d", i)
		want = append(want, f)
		rr.Broadcast("R1", "ann", core.Frame(f))
	}
	assert.Equal(t, want, fb.got())
	assert.Equal(t, want, fc.got())
}

func TestListSortedWithLiveCounts(t *testing.T) {
	rr := NewRoomRegistry()
	b, _ := live("b", "bob")
	c, _ := live("c", "cat")
	d, _ := live("d", "dan")
	rr.Join(b, "R2")
	rr.Join(c, "R1")
	rr.Join(d, "R1")

	assert.Equal(t, []core.RoomInfo{{ID: "R1", Live: 2}, {ID: "R2", Live: 1}}, rr.List())
}

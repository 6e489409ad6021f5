package heapgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringPool(t *testing.T) {
	p := NewStringPool()

	// The empty string is pre-interned at the null id.
	assert.Equal(t, NullStringID, p.Intern(""))
	assert.Equal(t, 1, p.Len())

	a := p.Intern("alpha")
	b := p.Intern("beta")
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, p.Intern("alpha"))
	assert.Equal(t, "alpha", p.Get(a))
	assert.Equal(t, "beta", p.Get(b))

	got, ok := p.Lookup("alpha")
	assert.True(t, ok)
	assert.Equal(t, a, got)
	_, ok = p.Lookup("gamma")
	assert.False(t, ok)
	assert.Equal(t, 3, p.Len())
}

func TestStats(t *testing.T) {
	var s Stats
	assert.Equal(t, int64(0), s.Get(StatMissingPacket))

	s.Increment(StatMissingPacket)
	s.Increment(StatMissingPacket)
	s.Increment(StatInvalidStringID)

	assert.Equal(t, int64(2), s.Get(StatMissingPacket))
	assert.Equal(t, int64(1), s.Get(StatInvalidStringID))
	assert.Equal(t, map[string]int64{
		"heap_graph_missing_packet":    2,
		"heap_graph_invalid_string_id": 1,
	}, s.Snapshot())
}

func TestStore_RowAccess(t *testing.T) {
	s := NewStore()

	objID := s.InsertObject(ObjectRow{SelfSize: 42, TypeID: NoClass, RootDistance: DistanceUnknown})
	require.Equal(t, ObjectID(0), objID)
	assert.Equal(t, 1, s.ObjectCount())
	assert.Equal(t, int64(42), s.Object(objID).SelfSize)

	// Row pointers are mutable in place.
	s.Object(objID).SelfSize = 43
	assert.Equal(t, int64(43), s.Object(objID).SelfSize)

	clsID := s.InsertClass(ClassRow{Name: s.InternString("com.example.A"), SuperclassID: NoSuperclass})
	assert.Equal(t, ClassID(0), clsID)
	assert.Equal(t, "com.example.A", s.GetString(s.Class(clsID).Name))

	assert.Panics(t, func() { s.Object(5) })
	assert.Panics(t, func() { s.Class(5) })
	assert.Panics(t, func() { s.Reference(0) })
}

func TestStore_Children(t *testing.T) {
	s := NewStore()

	owner := s.InsertObject(ObjectRow{ReferenceSetID: NoReferenceSet, RootDistance: DistanceUnknown})
	c1 := s.InsertObject(ObjectRow{ReferenceSetID: NoReferenceSet, RootDistance: DistanceUnknown})
	c2 := s.InsertObject(ObjectRow{ReferenceSetID: NoReferenceSet, RootDistance: DistanceUnknown})

	refSet := int32(s.ReferenceCount())
	// Deliberately out of order and with a duplicate edge.
	s.AppendReference(ReferenceRow{ReferenceSetID: refSet, OwnerID: owner, OwnedID: c2})
	s.AppendReference(ReferenceRow{ReferenceSetID: refSet, OwnerID: owner, OwnedID: c1})
	s.AppendReference(ReferenceRow{ReferenceSetID: refSet, OwnerID: owner, OwnedID: c2})
	s.Object(owner).ReferenceSetID = refSet

	assert.Equal(t, []ObjectID{c1, c2}, s.Children(owner))
	assert.Nil(t, s.Children(c1))
}

func TestStore_ChildrenStopAtNextSet(t *testing.T) {
	s := NewStore()

	a := s.InsertObject(ObjectRow{ReferenceSetID: NoReferenceSet, RootDistance: DistanceUnknown})
	b := s.InsertObject(ObjectRow{ReferenceSetID: NoReferenceSet, RootDistance: DistanceUnknown})
	leaf := s.InsertObject(ObjectRow{ReferenceSetID: NoReferenceSet, RootDistance: DistanceUnknown})

	setA := int32(s.ReferenceCount())
	s.AppendReference(ReferenceRow{ReferenceSetID: setA, OwnerID: a, OwnedID: leaf})
	s.Object(a).ReferenceSetID = setA

	setB := int32(s.ReferenceCount())
	s.AppendReference(ReferenceRow{ReferenceSetID: setB, OwnerID: b, OwnedID: leaf})
	s.Object(b).ReferenceSetID = setB

	assert.Equal(t, []ObjectID{leaf}, s.Children(a))
	assert.Equal(t, []ObjectID{leaf}, s.Children(b))
}

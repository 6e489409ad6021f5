package heapgraph

import "sort"

// UniquePid is a de-duplicated process identity. It distinguishes processes
// whose OS-level pids were reused over the lifetime of a capture session.
type UniquePid uint32

// ObjectID is a dense row handle into the object table.
type ObjectID int32

// ClassID is a dense row handle into the class table.
type ClassID int32

const (
	// NoClass marks an object whose type record has not arrived.
	NoClass ClassID = -1
	// NoReferenceSet marks an object without outgoing references.
	NoReferenceSet int32 = -1
	// DistanceUnknown is the initial root distance of every object.
	DistanceUnknown int32 = -1
	// NoSuperclass marks a class whose superclass has not been resolved.
	NoSuperclass ClassID = -1
)

// ObjectRow is one heap object. Rows are created once per distinct wire
// object id within a sequence and never deleted; the ingestor mutates the
// descriptive fields and the reachability pass mutates Reachable and
// RootDistance only.
type ObjectRow struct {
	Upid          UniquePid
	GraphSampleTS int64
	SelfSize      int64
	// ReferenceSetID is the row index of the first outgoing reference.
	// All references of one object occupy contiguous rows sharing this id.
	ReferenceSetID int32
	Reachable      bool
	TypeID         ClassID
	RootType       StringID
	RootDistance   int32
}

// ClassRow is one observed class. Name and Location are attached at
// finalize time because interned type records may trail the objects that
// use them.
type ClassRow struct {
	Name             StringID
	DeobfuscatedName StringID
	Location         StringID
	SuperclassID     ClassID
}

// ReferenceRow is one outgoing field reference. FieldName and
// FieldTypeName may be stamped after the row exists, once the interned
// field-name record arrives.
type ReferenceRow struct {
	ReferenceSetID        int32
	OwnerID               ObjectID
	OwnedID               ObjectID
	FieldName             StringID
	FieldTypeName         StringID
	DeobfuscatedFieldName StringID
}

// Store holds the flat, append-only row arenas for one processing session,
// together with the string pool and the soft-failure counters. Rows are
// addressed by dense integer ids that are never reused.
type Store struct {
	strings    *StringPool
	objects    []ObjectRow
	classes    []ClassRow
	references []ReferenceRow
	stats      Stats
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{strings: NewStringPool()}
}

// Strings returns the store's string pool.
func (s *Store) Strings() *StringPool {
	return s.strings
}

// InternString interns str and returns its id.
func (s *Store) InternString(str string) StringID {
	return s.strings.Intern(str)
}

// GetString resolves an interned string id.
func (s *Store) GetString(id StringID) string {
	return s.strings.Get(id)
}

// Stats returns the store's soft-failure counters.
func (s *Store) Stats() *Stats {
	return &s.stats
}

// InsertObject appends an object row and returns its id.
func (s *Store) InsertObject(row ObjectRow) ObjectID {
	id := ObjectID(len(s.objects))
	s.objects = append(s.objects, row)
	return id
}

// Object returns a mutable pointer to the object row. The pointer is valid
// until the next insert. An out-of-range id is an internal bug: ids are
// only ever produced by InsertObject.
func (s *Store) Object(id ObjectID) *ObjectRow {
	if id < 0 || int(id) >= len(s.objects) {
		panic("heapgraph: object id out of range")
	}
	return &s.objects[id]
}

// ObjectCount returns the number of object rows.
func (s *Store) ObjectCount() int {
	return len(s.objects)
}

// InsertClass appends a class row and returns its id.
func (s *Store) InsertClass(row ClassRow) ClassID {
	id := ClassID(len(s.classes))
	s.classes = append(s.classes, row)
	return id
}

// Class returns a mutable pointer to the class row, valid until the next
// insert.
func (s *Store) Class(id ClassID) *ClassRow {
	if id < 0 || int(id) >= len(s.classes) {
		panic("heapgraph: class id out of range")
	}
	return &s.classes[id]
}

// ClassCount returns the number of class rows.
func (s *Store) ClassCount() int {
	return len(s.classes)
}

// AppendReference appends a reference row and returns its row index.
func (s *Store) AppendReference(row ReferenceRow) int {
	s.references = append(s.references, row)
	return len(s.references) - 1
}

// Reference returns a mutable pointer to the reference row, valid until
// the next append.
func (s *Store) Reference(row int) *ReferenceRow {
	if row < 0 || row >= len(s.references) {
		panic("heapgraph: reference row out of range")
	}
	return &s.references[row]
}

// ReferenceCount returns the number of reference rows.
func (s *Store) ReferenceCount() int {
	return len(s.references)
}

// Children returns the distinct objects referenced by id, in ascending
// object-id order. Reference rows of one object are contiguous starting at
// its ReferenceSetID, so this is a single forward scan.
func (s *Store) Children(id ObjectID) []ObjectID {
	obj := s.Object(id)
	if obj.ReferenceSetID == NoReferenceSet {
		return nil
	}
	seen := make(map[ObjectID]struct{})
	out := make([]ObjectID, 0, 4)
	for row := int(obj.ReferenceSetID); row < len(s.references); row++ {
		ref := &s.references[row]
		if ref.ReferenceSetID != obj.ReferenceSetID {
			break
		}
		if ref.OwnerID != id {
			panic("heapgraph: reference set owned by another object")
		}
		if _, dup := seen[ref.OwnedID]; dup {
			continue
		}
		seen[ref.OwnedID] = struct{}{}
		out = append(out, ref.OwnedID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

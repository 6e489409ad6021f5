package heapgraph

import (
	"sort"
	"strings"

	"github.com/heapgraph-analysis/pkg/utils"
)

// SequenceID identifies one continuous streamed capture. Wire identifiers
// (object id, type id, location id, field-name intern id) are scoped to a
// single sequence and meaningless outside it.
type SequenceID uint32

// SourceReference is one outgoing field reference of a wire object. An
// OwnedObjectID of zero means the field was unset at capture time.
type SourceReference struct {
	FieldNameID   uint64
	OwnedObjectID uint64
}

// SourceObject is one heap object as delivered by the wire protocol.
type SourceObject struct {
	ObjectID   uint64
	TypeID     uint64
	SelfSize   uint64
	References []SourceReference
}

type internedType struct {
	name        StringID
	locationID  uint64
	hasLocation bool
}

type sourceRoot struct {
	rootType  StringID
	objectIDs []uint64
}

// sequenceState is the ephemeral per-sequence ingestion state. It is
// destroyed when the sequence finalizes; only the cross-sequence indices
// on the Tracker survive.
type sequenceState struct {
	bound bool
	upid  UniquePid
	ts    int64

	objectIDToStoreID map[uint64]ObjectID
	typeIDToStoreID   map[uint64]ClassID
	internedTypes     map[uint64]*internedType
	internedLocations map[uint64]StringID
	// referencesForFieldNameID queues reference rows whose field name has
	// not been interned yet, keyed by the wire intern id.
	referencesForFieldNameID map[uint64][]int
	currentRoots             []sourceRoot

	prevIndex    uint64
	hasPrevIndex bool
}

func newSequenceState() *sequenceState {
	return &sequenceState{
		objectIDToStoreID:        make(map[uint64]ObjectID),
		typeIDToStoreID:          make(map[uint64]ClassID),
		internedTypes:            make(map[uint64]*internedType),
		internedLocations:        make(map[uint64]StringID),
		referencesForFieldNameID: make(map[uint64][]int),
	}
}

type snapshotKey struct {
	upid UniquePid
	ts   int64
}

// classKey indexes classes by (package, normalized name). A zero pkg means
// the package is unknown, which covers both captures without location
// records and the base.apk relative-path special case.
type classKey struct {
	pkg  StringID
	name StringID
}

// Tracker ingests heap-graph records and owns all cross-sequence state of
// one processing session: the row store, the persistent root index, the
// per-class and per-field row indices and the deobfuscation table.
// It is not safe for concurrent use.
type Tracker struct {
	store  *Store
	logger utils.Logger

	sequences map[SequenceID]*sequenceState
	// roots persists root object ids per (upid, ts) snapshot across
	// sequences sharing that key.
	roots map[snapshotKey]map[ObjectID]struct{}
	// classToRows indexes class rows under (package, normalized name) for
	// deobfuscation-mapping application.
	classToRows map[classKey][]ClassID
	// fieldToRows indexes reference rows by resolved field name.
	fieldToRows map[StringID][]int
	// deobfuscationMapping maps (package, obfuscated normalized name) to
	// the substitute name.
	deobfuscationMapping map[classKey]StringID

	extraLocations []LocationPackage
}

// NewTracker creates a tracker writing into store.
func NewTracker(store *Store) *Tracker {
	return &Tracker{
		store:                store,
		logger:               &utils.NullLogger{},
		sequences:            make(map[SequenceID]*sequenceState),
		roots:                make(map[snapshotKey]map[ObjectID]struct{}),
		classToRows:          make(map[classKey][]ClassID),
		fieldToRows:          make(map[StringID][]int),
		deobfuscationMapping: make(map[classKey]StringID),
	}
}

// SetLogger sets the logger for diagnostic output.
func (t *Tracker) SetLogger(logger utils.Logger) {
	if logger != nil {
		t.logger = logger
	}
}

// Store returns the underlying row store.
func (t *Tracker) Store() *Store {
	return t.store
}

// AddKnownLocation registers an extra install-path prefix consulted by
// PackageFromLocation after the built-in table.
func (t *Tracker) AddKnownLocation(prefix, pkg string) {
	t.extraLocations = append(t.extraLocations, LocationPackage{Prefix: prefix, Package: pkg})
}

func (t *Tracker) getOrCreateSequence(seq SequenceID) *sequenceState {
	state, ok := t.sequences[seq]
	if !ok {
		state = newSequenceState()
		t.sequences[seq] = state
	}
	return state
}

// setPidAndTimestamp binds the sequence to its (upid, ts) snapshot key on
// first use. A record carrying a different key is rejected and counted;
// the graph is left untouched.
func (t *Tracker) setPidAndTimestamp(state *sequenceState, upid UniquePid, ts int64) bool {
	if state.bound && (state.upid != upid || state.ts != ts) {
		t.store.Stats().Increment(StatNonFinalizedGraph)
		return false
	}
	state.bound = true
	state.upid = upid
	state.ts = ts
	return true
}

func (t *Tracker) getOrInsertObject(state *sequenceState, wireID uint64) ObjectID {
	if id, ok := state.objectIDToStoreID[wireID]; ok {
		return id
	}
	id := t.store.InsertObject(ObjectRow{
		Upid:           state.upid,
		GraphSampleTS:  state.ts,
		ReferenceSetID: NoReferenceSet,
		TypeID:         NoClass,
		RootDistance:   DistanceUnknown,
	})
	state.objectIDToStoreID[wireID] = id
	return id
}

func (t *Tracker) getOrInsertType(state *sequenceState, wireID uint64) ClassID {
	if id, ok := state.typeIDToStoreID[wireID]; ok {
		return id
	}
	id := t.store.InsertClass(ClassRow{SuperclassID: NoSuperclass})
	state.typeIDToStoreID[wireID] = id
	return id
}

// AddObject ingests one wire object and its outgoing references. Owned
// objects that have not been seen yet get placeholder rows which later
// records fill in; references to the unset sentinel (wire id 0) are
// skipped.
func (t *Tracker) AddObject(seq SequenceID, upid UniquePid, ts int64, obj SourceObject) {
	state := t.getOrCreateSequence(seq)
	if !t.setPidAndTimestamp(state, upid, ts) {
		return
	}

	ownerID := t.getOrInsertObject(state, obj.ObjectID)
	typeID := t.getOrInsertType(state, obj.TypeID)

	owner := t.store.Object(ownerID)
	owner.SelfSize = int64(obj.SelfSize)
	owner.TypeID = typeID

	referenceSetID := int32(t.store.ReferenceCount())
	anyReferences := false
	for _, ref := range obj.References {
		if ref.OwnedObjectID == 0 {
			continue
		}
		ownedID := t.getOrInsertObject(state, ref.OwnedObjectID)
		row := t.store.AppendReference(ReferenceRow{
			ReferenceSetID: referenceSetID,
			OwnerID:        ownerID,
			OwnedID:        ownedID,
		})
		state.referencesForFieldNameID[ref.FieldNameID] = append(
			state.referencesForFieldNameID[ref.FieldNameID], row)
		anyReferences = true
	}
	if anyReferences {
		// Re-fetch: the reference loop may have grown the object arena.
		t.store.Object(ownerID).ReferenceSetID = referenceSetID
	}
}

// AddRoot buffers a batch of GC roots. Roots are applied to the persistent
// root index at finalize time, once every referenced object is known.
func (t *Tracker) AddRoot(seq SequenceID, upid UniquePid, ts int64, rootType string, objectIDs []uint64) {
	state := t.getOrCreateSequence(seq)
	if !t.setPidAndTimestamp(state, upid, ts) {
		return
	}
	state.currentRoots = append(state.currentRoots, sourceRoot{
		rootType:  t.store.InternString(rootType),
		objectIDs: append([]uint64(nil), objectIDs...),
	})
}

// AddInternedType records a wire type id with its name and optional
// location intern id. Type records may trail the objects that use them.
func (t *Tracker) AddInternedType(seq SequenceID, internID uint64, name StringID, locationID *uint64) {
	state := t.getOrCreateSequence(seq)
	it := &internedType{name: name}
	if locationID != nil {
		it.locationID = *locationID
		it.hasLocation = true
	}
	state.internedTypes[internID] = it
}

// AddInternedLocationName records a wire location intern id. Location
// records are typically written at the very end of a dump.
func (t *Tracker) AddInternedLocationName(seq SequenceID, internID uint64, name StringID) {
	state := t.getOrCreateSequence(seq)
	state.internedLocations[internID] = name
}

// AddInternedFieldName resolves a field-name intern id. The raw string
// holds an optional leading type token separated by a space from the field
// name. Reference rows queued under the intern id are stamped in place.
func (t *Tracker) AddInternedFieldName(seq SequenceID, internID uint64, raw string) {
	state := t.getOrCreateSequence(seq)

	fieldType := ""
	fieldName := raw
	if space := strings.IndexByte(raw, ' '); space != -1 {
		fieldType = raw[:space]
		fieldName = raw[space+1:]
	}
	nameID := t.store.InternString(fieldName)
	typeID := t.store.InternString(fieldType)

	for _, row := range state.referencesForFieldNameID[internID] {
		ref := t.store.Reference(row)
		ref.FieldName = nameID
		ref.FieldTypeName = typeID
		t.fieldToRows[nameID] = append(t.fieldToRows[nameID], row)
	}
}

// SetPacketIndex checks packet continuity for one sequence. The producer
// starts counting at zero, so a non-zero first index or a non-consecutive
// index means packets were dropped; ingestion continues regardless.
func (t *Tracker) SetPacketIndex(seq SequenceID, index uint64) {
	state := t.getOrCreateSequence(seq)
	dropped := false
	if !state.hasPrevIndex && index != 0 {
		dropped = true
	}
	if state.hasPrevIndex && state.prevIndex+1 != index {
		dropped = true
	}
	if dropped {
		if state.hasPrevIndex {
			t.logger.Warn("missing packets between %d and %d", state.prevIndex, index)
		} else {
			t.logger.Warn("invalid first packet index %d (!= 0)", index)
		}
		t.store.Stats().Increment(StatMissingPacket)
	}
	state.prevIndex = index
	state.hasPrevIndex = true
}

// FinalizeProfile completes ingestion of one sequence: it attaches the
// interned names and locations to their class rows, indexes the classes
// for deobfuscation, applies the buffered roots (running the reachability
// pass for each newly added root), resolves superclasses and discards the
// sequence state.
func (t *Tracker) FinalizeProfile(seq SequenceID) {
	state := t.getOrCreateSequence(seq)

	// Interned location names are written at the end of the dump, so the
	// class rows can only be completed here.
	for internID, it := range state.internedTypes {
		locationName := NullStringID
		hasLocation := false
		if it.hasLocation {
			if strid, ok := state.internedLocations[it.locationID]; ok {
				locationName = strid
				hasLocation = true
			} else {
				t.store.Stats().Increment(StatInvalidStringID)
			}
		}

		typeID := t.getOrInsertType(state, internID)
		cls := t.store.Class(typeID)
		cls.Name = it.name
		if hasLocation {
			cls.Location = locationName
		}

		normalized := NormalizeTypeName(t.store.GetString(it.name))

		// Some apps report a relative path to base.apk. We take this to
		// mean the main package and treat the location as unknown.
		isBaseAPK := hasLocation &&
			strings.HasPrefix(t.store.GetString(locationName), "base.apk")

		if hasLocation && !isBaseAPK {
			if pkg, ok := t.PackageFromLocation(t.store.GetString(locationName)); ok {
				key := classKey{pkg: t.store.InternString(pkg), name: t.store.InternString(normalized)}
				t.classToRows[key] = append(t.classToRows[key], typeID)
			}
		} else {
			// Captures from old producers have no location information at
			// all; index them under the unknown package so deobfuscation
			// mappings without a package still apply.
			key := classKey{name: t.store.InternString(normalized)}
			t.classToRows[key] = append(t.classToRows[key], typeID)
		}
	}

	for _, root := range state.currentRoots {
		for _, wireID := range root.objectIDs {
			storeID, ok := state.objectIDToStoreID[wireID]
			if !ok {
				// Only possible after an invalid string id, which has
				// already been counted.
				continue
			}
			key := snapshotKey{state.upid, state.ts}
			set := t.roots[key]
			if set == nil {
				set = make(map[ObjectID]struct{})
				t.roots[key] = set
			}
			if _, dup := set[storeID]; !dup {
				set[storeID] = struct{}{}
				t.markRoot(storeID, root.rootType)
			}
		}
	}

	t.populateSuperClasses(state)
	delete(t.sequences, seq)
}

// NotifyEndOfFile force-finalizes sequences still open at end of input.
// Truncated captures usually still hold valuable data, so each open
// sequence is counted and then finalized normally.
func (t *Tracker) NotifyEndOfFile() {
	open := make([]SequenceID, 0, len(t.sequences))
	for seq := range t.sequences {
		open = append(open, seq)
	}
	sort.Slice(open, func(i, j int) bool { return open[i] < open[j] })
	for _, seq := range open {
		t.store.Stats().Increment(StatNonFinalizedGraph)
		t.FinalizeProfile(seq)
	}
}

// AddDeobfuscationMapping registers a substitute for an obfuscated class
// name within a package (zero packageName means unknown package). Class
// rows already indexed under the key get their deobfuscated-name override
// set through each row's own shape; flamegraph results built earlier are
// unaffected.
func (t *Tracker) AddDeobfuscationMapping(packageName, obfuscatedName, deobfuscatedName StringID) {
	key := classKey{pkg: packageName, name: obfuscatedName}
	t.deobfuscationMapping[key] = deobfuscatedName

	substitute := t.store.GetString(deobfuscatedName)
	for _, classID := range t.classToRows[key] {
		cls := t.store.Class(classID)
		shape := GetNormalizedType(t.store.GetString(cls.Name))
		deob := t.store.InternString(DenormalizeTypeName(shape, substitute))
		t.store.Class(classID).DeobfuscatedName = deob
	}
}

// AddDeobfuscatedFieldName stamps the deobfuscated field name on every
// reference row whose resolved field name matches obfuscatedField.
func (t *Tracker) AddDeobfuscatedFieldName(obfuscatedField, deobfuscatedField StringID) {
	for _, row := range t.fieldToRows[obfuscatedField] {
		t.store.Reference(row).DeobfuscatedFieldName = deobfuscatedField
	}
}

// MaybeDeobfuscate resolves the deobfuscated form of a type name. The name
// is normalized, looked up under (packageName, normalized name) and, on a
// hit, the substitute is denormalized with the original shape and
// interned. On a miss the input id is returned unchanged.
func (t *Tracker) MaybeDeobfuscate(packageName, id StringID) StringID {
	shape := GetNormalizedType(t.store.GetString(id))
	key := classKey{pkg: packageName, name: t.store.InternString(shape.Name)}
	substitute, ok := t.deobfuscationMapping[key]
	if !ok {
		return id
	}
	return t.store.InternString(DenormalizeTypeName(shape, t.store.GetString(substitute)))
}

// ReferencesForFieldName returns the reference row indexes whose resolved
// field name equals name.
func (t *Tracker) ReferencesForFieldName(name StringID) []int {
	return t.fieldToRows[name]
}

// OpenSequences returns the number of sequences that have not finalized.
func (t *Tracker) OpenSequences() int {
	return len(t.sequences)
}

// Roots returns the root object ids recorded for a snapshot, in ascending
// order, or nil if the snapshot is unknown.
func (t *Tracker) Roots(upid UniquePid, ts int64) []ObjectID {
	set, ok := t.roots[snapshotKey{upid, ts}]
	if !ok {
		return nil
	}
	out := make([]ObjectID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Snapshots returns every (upid, ts) key that has at least one root, in
// deterministic order.
func (t *Tracker) Snapshots() []Snapshot {
	out := make([]Snapshot, 0, len(t.roots))
	for key := range t.roots {
		out = append(out, Snapshot{Upid: key.upid, GraphSampleTS: key.ts})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Upid != out[j].Upid {
			return out[i].Upid < out[j].Upid
		}
		return out[i].GraphSampleTS < out[j].GraphSampleTS
	})
	return out
}

// Snapshot identifies one heap snapshot: a process identity at a capture
// timestamp.
type Snapshot struct {
	Upid          UniquePid
	GraphSampleTS int64
}

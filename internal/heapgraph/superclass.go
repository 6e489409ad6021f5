package heapgraph

// superClassField is the literal field name through which a static-class
// descriptor object points at its superclass descriptor.
const superClassField = "java.lang.Class.superClass"

// classDescriptor identifies a class by name and defining location.
type classDescriptor struct {
	name     StringID
	location StringID
}

func (t *Tracker) classDescriptorOf(id ObjectID) classDescriptor {
	obj := t.store.Object(id)
	cls := t.store.Class(obj.TypeID)
	return classDescriptor{name: cls.Name, location: cls.Location}
}

// referredObject returns the object referenced from the given reference
// set through the field named fieldName.
func (t *Tracker) referredObject(referenceSetID int32, fieldName StringID) (ObjectID, bool) {
	for row := int(referenceSetID); row < t.store.ReferenceCount(); row++ {
		ref := t.store.Reference(row)
		if ref.ReferenceSetID != referenceSetID {
			break
		}
		if ref.FieldName == fieldName {
			return ref.OwnedID, true
		}
	}
	return 0, false
}

// buildSuperclassMap scans the objects of one snapshot for static-class
// descriptors and follows their superClass reference, producing a map from
// normalized (name, location) to the superclass's normalized identity.
// Arrays are skipped: they are generated classes without real hierarchy.
func (t *Tracker) buildSuperclassMap(upid UniquePid, ts int64) map[classDescriptor]classDescriptor {
	superclassMap := make(map[classDescriptor]classDescriptor)

	fieldID, ok := t.store.Strings().Lookup(superClassField)
	if !ok {
		// The capture never resolved a superClass field name, so no
		// descriptor can carry the edge.
		return superclassMap
	}

	for i := 0; i < t.store.ObjectCount(); i++ {
		objID := ObjectID(i)
		obj := t.store.Object(objID)
		if obj.Upid != upid || obj.GraphSampleTS != ts {
			continue
		}
		if obj.TypeID == NoClass {
			// Placeholder row from a truncated capture.
			continue
		}
		desc := t.classDescriptorOf(objID)
		normalized := GetNormalizedType(t.store.GetString(desc.name))
		if !normalized.IsStaticClass || normalized.NumberOfArrays > 0 {
			continue
		}
		if obj.ReferenceSetID == NoReferenceSet {
			continue
		}
		superObjID, found := t.referredObject(obj.ReferenceSetID, fieldID)
		if !found {
			// Expected for java.lang.Object and primitive types.
			continue
		}
		if t.store.Object(superObjID).TypeID == NoClass {
			continue
		}
		superDesc := t.classDescriptorOf(superObjID)
		superName := NormalizeTypeName(t.store.GetString(superDesc.name))

		key := classDescriptor{
			name:     t.store.InternString(normalized.Name),
			location: desc.location,
		}
		superclassMap[key] = classDescriptor{
			name:     t.store.InternString(superName),
			location: superDesc.location,
		}
	}
	return superclassMap
}

// populateSuperClasses resolves superclass ids once per finalized
// sequence. The map is built from the sequence's snapshot, but the whole
// class table is annotated: identical classes observed through other
// sequences share the normalized identity. A class whose superclass has no
// row of its own (no type record, no live instances) stays unresolved.
func (t *Tracker) populateSuperClasses(state *sequenceState) {
	superclassMap := t.buildSuperclassMap(state.upid, state.ts)

	classToID := make(map[classDescriptor]ClassID, t.store.ClassCount())
	for i := 0; i < t.store.ClassCount(); i++ {
		cls := t.store.Class(ClassID(i))
		classToID[classDescriptor{name: cls.Name, location: cls.Location}] = ClassID(i)
	}

	for i := 0; i < t.store.ClassCount(); i++ {
		cls := t.store.Class(ClassID(i))
		normalized := GetNormalizedType(t.store.GetString(cls.Name))
		if normalized.IsStaticClass || normalized.NumberOfArrays > 0 {
			continue
		}
		key := classDescriptor{
			name:     t.store.InternString(normalized.Name),
			location: cls.Location,
		}
		superDesc, ok := superclassMap[key]
		if !ok {
			continue
		}
		superID, ok := classToID[superDesc]
		if !ok {
			continue
		}
		t.store.Class(ClassID(i)).SuperclassID = superID
	}
}

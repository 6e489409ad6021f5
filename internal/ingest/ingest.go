// Package ingest decodes line-delimited JSON heap-graph records and feeds
// them into a tracker.
package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/heapgraph-analysis/internal/heapgraph"
	"github.com/heapgraph-analysis/pkg/errors"
	"github.com/heapgraph-analysis/pkg/utils"
)

// Record type names as they appear on the wire.
const (
	RecordObject           = "object"
	RecordRoot             = "root"
	RecordInternedType     = "interned_type"
	RecordInternedLocation = "interned_location"
	RecordInternedField    = "interned_field"
	RecordPacketIndex      = "packet_index"
	RecordFinalize         = "finalize"
	RecordClassMapping     = "class_mapping"
	RecordFieldMapping     = "field_mapping"
)

// maxLineSize bounds a single record line. Root batches can carry tens of
// thousands of object ids.
const maxLineSize = 16 * 1024 * 1024

// Record is one line of the stream. Exactly one payload field is set,
// selected by Type.
type Record struct {
	Type     string               `json:"type"`
	Sequence heapgraph.SequenceID `json:"seq"`
	Upid     heapgraph.UniquePid  `json:"upid,omitempty"`
	TS       int64                `json:"ts,omitempty"`

	Object           *ObjectRecord       `json:"object,omitempty"`
	Root             *RootRecord         `json:"root,omitempty"`
	InternedType     *InternedTypeRecord `json:"interned_type,omitempty"`
	InternedLocation *InternedRecord     `json:"interned_location,omitempty"`
	InternedField    *InternedRecord     `json:"interned_field,omitempty"`
	PacketIndex      *uint64             `json:"packet_index,omitempty"`
	ClassMapping     *ClassMapping       `json:"class_mapping,omitempty"`
	FieldMapping     *FieldMapping       `json:"field_mapping,omitempty"`
}

// ObjectRecord is one heap object with its outgoing references.
type ObjectRecord struct {
	ID         uint64            `json:"id"`
	TypeID     uint64            `json:"type_id"`
	SelfSize   uint64            `json:"self_size"`
	References []ReferenceRecord `json:"references,omitempty"`
}

// ReferenceRecord is one outgoing field reference of an object. An
// ObjectID of zero means the field was unset at capture time.
type ReferenceRecord struct {
	FieldNameID uint64 `json:"field_name_id"`
	ObjectID    uint64 `json:"object_id"`
}

// RootRecord is one batch of GC roots of a common root type.
type RootRecord struct {
	RootType  string   `json:"root_type"`
	ObjectIDs []uint64 `json:"object_ids"`
}

// InternedTypeRecord binds a wire type id to its name and optional
// location intern id.
type InternedTypeRecord struct {
	InternID   uint64  `json:"intern_id"`
	Name       string  `json:"name"`
	LocationID *uint64 `json:"location_id,omitempty"`
}

// InternedRecord binds a wire intern id to a string.
type InternedRecord struct {
	InternID uint64 `json:"intern_id"`
	Name     string `json:"name"`
}

// ClassMapping substitutes a deobfuscated class name within a package. An
// empty package applies to classes whose package is unknown.
type ClassMapping struct {
	Package      string `json:"package,omitempty"`
	Obfuscated   string `json:"obfuscated"`
	Deobfuscated string `json:"deobfuscated"`
}

// FieldMapping substitutes a deobfuscated field name.
type FieldMapping struct {
	Obfuscated   string `json:"obfuscated"`
	Deobfuscated string `json:"deobfuscated"`
}

// DecoderOptions holds configuration options for the decoder.
type DecoderOptions struct {
	// StrictMode fails on the first malformed line instead of skipping it.
	StrictMode bool
}

// DefaultDecoderOptions returns default decoder options.
func DefaultDecoderOptions() *DecoderOptions {
	return &DecoderOptions{}
}

// Result summarizes one decoding run.
type Result struct {
	// Records is the number of records applied to the tracker.
	Records int
	// Skipped is the number of malformed lines that were dropped.
	Skipped int
	// Snapshots lists the (upid, ts) keys that ended up with roots.
	Snapshots []heapgraph.Snapshot
}

// Decoder reads line-delimited JSON heap-graph records.
type Decoder struct {
	opts   *DecoderOptions
	logger utils.Logger
}

// NewDecoder creates a decoder.
func NewDecoder(opts *DecoderOptions) *Decoder {
	if opts == nil {
		opts = DefaultDecoderOptions()
	}
	return &Decoder{opts: opts, logger: &utils.NullLogger{}}
}

// SetLogger sets the logger for diagnostic output.
func (d *Decoder) SetLogger(logger utils.Logger) {
	if logger != nil {
		d.logger = logger
	}
}

// Decode reads records from reader until EOF and applies them to tracker.
// Sequences still open at EOF are force-finalized, so a truncated stream
// still yields a queryable graph.
func (d *Decoder) Decode(ctx context.Context, reader io.Reader, tracker *heapgraph.Tracker) (*Result, error) {
	result := &Result{}

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	lineNum := 0

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			if d.opts.StrictMode {
				return nil, errors.Wrap(errors.CodeParseError,
					fmt.Sprintf("line %d", lineNum), err)
			}
			d.logger.Warn("skipping malformed record at line %d: %v", lineNum, err)
			result.Skipped++
			continue
		}

		if err := d.apply(tracker, &rec); err != nil {
			if d.opts.StrictMode {
				return nil, errors.Wrap(errors.CodeParseError,
					fmt.Sprintf("line %d", lineNum), err)
			}
			d.logger.Warn("skipping invalid record at line %d: %v", lineNum, err)
			result.Skipped++
			continue
		}
		result.Records++
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(errors.CodeParseError, "failed to read input", err)
	}

	tracker.NotifyEndOfFile()
	result.Snapshots = tracker.Snapshots()
	return result, nil
}

// apply dispatches one record to the tracker.
func (d *Decoder) apply(tracker *heapgraph.Tracker, rec *Record) error {
	store := tracker.Store()
	switch rec.Type {
	case RecordObject:
		if rec.Object == nil {
			return fmt.Errorf("object record without payload")
		}
		refs := make([]heapgraph.SourceReference, 0, len(rec.Object.References))
		for _, ref := range rec.Object.References {
			refs = append(refs, heapgraph.SourceReference{
				FieldNameID:   ref.FieldNameID,
				OwnedObjectID: ref.ObjectID,
			})
		}
		tracker.AddObject(rec.Sequence, rec.Upid, rec.TS, heapgraph.SourceObject{
			ObjectID:   rec.Object.ID,
			TypeID:     rec.Object.TypeID,
			SelfSize:   rec.Object.SelfSize,
			References: refs,
		})
	case RecordRoot:
		if rec.Root == nil {
			return fmt.Errorf("root record without payload")
		}
		tracker.AddRoot(rec.Sequence, rec.Upid, rec.TS, rec.Root.RootType, rec.Root.ObjectIDs)
	case RecordInternedType:
		if rec.InternedType == nil {
			return fmt.Errorf("interned_type record without payload")
		}
		tracker.AddInternedType(rec.Sequence, rec.InternedType.InternID,
			store.InternString(rec.InternedType.Name), rec.InternedType.LocationID)
	case RecordInternedLocation:
		if rec.InternedLocation == nil {
			return fmt.Errorf("interned_location record without payload")
		}
		tracker.AddInternedLocationName(rec.Sequence, rec.InternedLocation.InternID,
			store.InternString(rec.InternedLocation.Name))
	case RecordInternedField:
		if rec.InternedField == nil {
			return fmt.Errorf("interned_field record without payload")
		}
		tracker.AddInternedFieldName(rec.Sequence, rec.InternedField.InternID,
			rec.InternedField.Name)
	case RecordPacketIndex:
		if rec.PacketIndex == nil {
			return fmt.Errorf("packet_index record without payload")
		}
		tracker.SetPacketIndex(rec.Sequence, *rec.PacketIndex)
	case RecordFinalize:
		tracker.FinalizeProfile(rec.Sequence)
	case RecordClassMapping:
		if rec.ClassMapping == nil {
			return fmt.Errorf("class_mapping record without payload")
		}
		pkg := heapgraph.NullStringID
		if rec.ClassMapping.Package != "" {
			pkg = store.InternString(rec.ClassMapping.Package)
		}
		tracker.AddDeobfuscationMapping(pkg,
			store.InternString(rec.ClassMapping.Obfuscated),
			store.InternString(rec.ClassMapping.Deobfuscated))
	case RecordFieldMapping:
		if rec.FieldMapping == nil {
			return fmt.Errorf("field_mapping record without payload")
		}
		tracker.AddDeobfuscatedFieldName(
			store.InternString(rec.FieldMapping.Obfuscated),
			store.InternString(rec.FieldMapping.Deobfuscated))
	default:
		return fmt.Errorf("unknown record type %q", rec.Type)
	}
	return nil
}

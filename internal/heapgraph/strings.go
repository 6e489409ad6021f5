package heapgraph

// StringID is a dense handle into a StringPool. ID 0 is always the empty
// string, which doubles as the "unset" value for optional string columns.
type StringID uint32

// NullStringID marks an unset optional string column.
const NullStringID StringID = 0

// StringPool is an append-only string interner. Every distinct string is
// stored once and addressed by a stable StringID for the lifetime of the
// pool.
type StringPool struct {
	index   map[string]StringID
	strings []string
}

// NewStringPool creates a pool with the empty string pre-interned at id 0.
func NewStringPool() *StringPool {
	p := &StringPool{
		index:   make(map[string]StringID, 1024),
		strings: make([]string, 0, 1024),
	}
	p.strings = append(p.strings, "")
	p.index[""] = NullStringID
	return p
}

// Intern returns the id for s, adding it to the pool if needed.
func (p *StringPool) Intern(s string) StringID {
	if id, ok := p.index[s]; ok {
		return id
	}
	id := StringID(len(p.strings))
	p.strings = append(p.strings, s)
	p.index[s] = id
	return id
}

// Lookup returns the id for s without interning it.
func (p *StringPool) Lookup(s string) (StringID, bool) {
	id, ok := p.index[s]
	return id, ok
}

// Get returns the string for id. Ids are handed out by Intern and never
// revoked, so an out-of-range id is an internal bug.
func (p *StringPool) Get(id StringID) string {
	if int(id) >= len(p.strings) {
		panic("heapgraph: string id out of range")
	}
	return p.strings[id]
}

// Len returns the number of interned strings, including the empty string.
func (p *StringPool) Len() int {
	return len(p.strings)
}

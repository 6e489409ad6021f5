// Package filter classifies heap class names into coarse ownership
// categories. The categories drive the per-snapshot retained-size
// breakdown: how much of the heap is held by runtime types, by platform
// framework types and by the app's own code.
package filter

import (
	"strings"
	"sync"
)

// ClassCategory is the ownership category of a heap class.
type ClassCategory int

const (
	// CategoryUnknown indicates the class could not be categorized.
	CategoryUnknown ClassCategory = iota
	// CategoryPrimitive indicates primitive arrays (byte[], int[], ...).
	CategoryPrimitive
	// CategoryJDK indicates core library and runtime classes.
	CategoryJDK
	// CategoryFramework indicates platform framework classes.
	CategoryFramework
	// CategoryApplication indicates classes owned by the profiled app.
	CategoryApplication
	// CategoryBusiness indicates classes under registered app prefixes.
	CategoryBusiness
)

// String returns the category name used in breakdown output.
func (c ClassCategory) String() string {
	switch c {
	case CategoryPrimitive:
		return "primitive"
	case CategoryJDK:
		return "jdk"
	case CategoryFramework:
		return "framework"
	case CategoryApplication:
		return "application"
	case CategoryBusiness:
		return "business"
	default:
		return "unknown"
	}
}

// ClassFilter categorizes normalized class names as they appear in
// flamegraph rows. Safe for concurrent use.
type ClassFilter struct {
	mu sync.RWMutex

	primitiveArrays map[string]bool

	// Core library prefixes: java.*, the runtime's own packages.
	corePrefixes []string

	// Platform framework prefixes.
	frameworkPrefixes []string

	// Registered prefixes of the profiled app's own packages.
	appPrefixes []string

	// Classification cache; heap snapshots repeat the same few thousand
	// class names across millions of rows.
	cache     map[string]ClassCategory
	cacheSize int
}

// NewClassFilter creates a filter with the default category tables.
func NewClassFilter() *ClassFilter {
	f := &ClassFilter{
		cache:     make(map[string]ClassCategory),
		cacheSize: 10000,
	}
	f.primitiveArrays = map[string]bool{
		"boolean[]": true,
		"byte[]":    true,
		"char[]":    true,
		"short[]":   true,
		"int[]":     true,
		"long[]":    true,
		"float[]":   true,
		"double[]":  true,
	}
	f.corePrefixes = []string{
		"java.",
		"javax.",
		"sun.",
		"jdk.",
		"libcore.",
		"dalvik.",
	}
	f.frameworkPrefixes = []string{
		"android.",
		"androidx.",
		"com.android.",
		"com.google.android.",
		"kotlin.",
		"kotlinx.",
	}
	return f
}

// Classify returns the category of a normalized class name.
func (f *ClassFilter) Classify(className string) ClassCategory {
	if className == "" {
		return CategoryUnknown
	}

	f.mu.RLock()
	if cat, ok := f.cache[className]; ok {
		f.mu.RUnlock()
		return cat
	}
	f.mu.RUnlock()

	cat := f.classify(className)

	f.mu.Lock()
	if len(f.cache) < f.cacheSize {
		f.cache[className] = cat
	}
	f.mu.Unlock()

	return cat
}

func (f *ClassFilter) classify(className string) ClassCategory {
	if f.primitiveArrays[className] {
		return CategoryPrimitive
	}

	// Object arrays take the category of their element type.
	if strings.HasSuffix(className, "[]") {
		return f.classify(strings.TrimSuffix(className, "[]"))
	}

	f.mu.RLock()
	appPrefixes := f.appPrefixes
	f.mu.RUnlock()
	for _, prefix := range appPrefixes {
		if strings.HasPrefix(className, prefix) {
			return CategoryBusiness
		}
	}

	for _, prefix := range f.corePrefixes {
		if strings.HasPrefix(className, prefix) {
			return CategoryJDK
		}
	}
	for _, prefix := range f.frameworkPrefixes {
		if strings.HasPrefix(className, prefix) {
			return CategoryFramework
		}
	}

	// Everything else belongs to the profiled app.
	return CategoryApplication
}

// IsPrimitive reports whether the class is a primitive array.
func (f *ClassFilter) IsPrimitive(className string) bool {
	return f.Classify(className) == CategoryPrimitive
}

// IsCore reports whether the class is a core library or runtime class.
func (f *ClassFilter) IsCore(className string) bool {
	return f.Classify(className) == CategoryJDK
}

// IsFramework reports whether the class is a platform framework class.
func (f *ClassFilter) IsFramework(className string) bool {
	return f.Classify(className) == CategoryFramework
}

// IsAppOwned reports whether the class belongs to the profiled app,
// either by default or through a registered prefix.
func (f *ClassFilter) IsAppOwned(className string) bool {
	cat := f.Classify(className)
	return cat == CategoryApplication || cat == CategoryBusiness
}

// AddAppPrefix registers a package prefix of the profiled app. Matching
// classes classify as CategoryBusiness, splitting the app's own packages
// out of the generic application bucket.
func (f *ClassFilter) AddAppPrefix(prefix string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, p := range f.appPrefixes {
		if p == prefix {
			return
		}
	}
	f.appPrefixes = append(f.appPrefixes, prefix)

	// Cached answers may change once a prefix is registered.
	f.cache = make(map[string]ClassCategory)
}

// AppPrefixes returns the registered app package prefixes.
func (f *ClassFilter) AppPrefixes() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]string, len(f.appPrefixes))
	copy(out, f.appPrefixes)
	return out
}

package serializer

import (
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

// EnumUnknown is returned by EnumToString for unregistered enums and
// unmapped values.
const EnumUnknown = "UNKNOWN"

type (
	// CreateObjectFunc returns a new zero instance of a registered class.
	CreateObjectFunc func() Serializable
	// EnumToStringFunc converts an enum value to its upper-case name, or
	// returns "" when the value is not mapped.
	EnumToStringFunc func(value int) string
	// EnumParseFunc converts a name back to its value, or returns -1.
	EnumParseFunc func(s string) int
)

type enumConverters struct {
	toString EnumToStringFunc
	parse    EnumParseFunc
}

// Activator resolves class names to constructors and enum names to
// string converters while deserializing.
//
// Registration is expected to happen before concurrent serialization
// starts; lookups are safe for concurrent use. Registering a name twice
// overwrites the earlier entry.
type Activator struct {
	mu      sync.RWMutex
	classes map[string]CreateObjectFunc
	enums   map[string]enumConverters
}

var (
	defaultActivator     *Activator
	defaultActivatorOnce sync.Once
)

// NewActivator returns an empty registry.
func NewActivator() *Activator {
	return &Activator{
		classes: make(map[string]CreateObjectFunc),
		enums:   make(map[string]enumConverters),
	}
}

// DefaultActivator returns the process-wide registry, creating it on first use.
func DefaultActivator() *Activator {
	defaultActivatorOnce.Do(func() { defaultActivator = NewActivator() })
	return defaultActivator
}

// RegisterType registers the constructor for a namespaced class name,
// e.g. "gameplay::SceneObject".
func (a *Activator) RegisterType(className string, create CreateObjectFunc) {
	a.mu.Lock()
	a.classes[className] = create
	a.mu.Unlock()
}

// RegisterEnum registers converters for a namespaced enum name, e.g.
// "gameplay::Camera::Type".
func (a *Activator) RegisterEnum(enumName string, toString EnumToStringFunc, parse EnumParseFunc) {
	a.mu.Lock()
	a.enums[enumName] = enumConverters{toString: toString, parse: parse}
	a.mu.Unlock()
}

// CreateObject returns a new instance of className. Unregistered names
// fail with ErrUnknownType.
func (a *Activator) CreateObject(className string) (Serializable, error) {
	a.mu.RLock()
	create := a.classes[className]
	a.mu.RUnlock()
	if create == nil {
		return nil, errors.Mark(errors.Newf("unknown class: %s", className), ErrUnknownType)
	}
	obj := create()
	if obj == nil {
		return nil, errors.Mark(errors.Newf("constructor for %s returned nil", className), ErrUnknownType)
	}
	return obj, nil
}

// EnumToString returns the upper-case name of value, or EnumUnknown.
func (a *Activator) EnumToString(enumName string, value int) string {
	a.mu.RLock()
	conv, ok := a.enums[enumName]
	a.mu.RUnlock()
	if !ok || conv.toString == nil {
		return EnumUnknown
	}
	if s := conv.toString(value); s != "" {
		return s
	}
	return EnumUnknown
}

// EnumParse returns the value named by s, or -1 when the enum is not
// registered or s does not name a value.
func (a *Activator) EnumParse(enumName, s string) int {
	a.mu.RLock()
	conv, ok := a.enums[enumName]
	a.mu.RUnlock()
	if !ok || conv.parse == nil {
		return -1
	}
	return conv.parse(s)
}

// Types lists registered class names in sorted order.
func (a *Activator) Types() []string {
	a.mu.RLock()
	names := lo.Keys(a.classes)
	a.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Enums lists registered enum names in sorted order.
func (a *Activator) Enums() []string {
	a.mu.RLock()
	names := lo.Keys(a.enums)
	a.mu.RUnlock()
	sort.Strings(names)
	return names
}

// EnumTable builds converters from a value to name table. Names are
// matched case-insensitively and returned upper-case.
func EnumTable(names map[int]string) (EnumToStringFunc, EnumParseFunc) {
	byName := make(map[string]int, len(names))
	for v, n := range names {
		byName[strings.ToUpper(n)] = v
	}
	toString := func(value int) string {
		return strings.ToUpper(names[value])
	}
	parse := func(s string) int {
		if v, ok := byName[strings.ToUpper(strings.TrimSpace(s))]; ok {
			return v
		}
		return -1
	}
	return toString, parse
}

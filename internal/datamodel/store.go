// Package datamodel implements the device parameter map: the keyed
// mapping of TR-069 data-model paths to (writable, value, xsdType)
// triples that every RPC handler reads and mutates.
package datamodel

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// XSD type tags used for ParameterValueStruct xsi:type attributes.
const (
	TypeString      = "xsd:string"
	TypeBoolean     = "xsd:boolean"
	TypeInt         = "xsd:int"
	TypeUnsignedInt = "xsd:unsignedInt"
	TypeDateTime    = "xsd:dateTime"
)

// Parameter is a single leaf or object node in the device's data model.
// Object nodes (paths ending in ".") only carry Writable; Value and
// XSDType are meaningless for them.
type Parameter struct {
	Writable bool
	Value    string
	XSDType  string
}

// defaultValue returns the zero value AddObject seeds a fresh instance
// leaf with, per the leaf's declared xsd type.
func defaultValue(xsdType string) string {
	switch xsdType {
	case TypeBoolean:
		return "false"
	case TypeInt, TypeUnsignedInt:
		return "0"
	case TypeDateTime:
		return "0001-01-01T00:00:00Z"
	default:
		return ""
	}
}

// excludedRoots are stripped from the GetParameterNames path listing;
// they hold simulator-private bookkeeping, not device data.
var excludedRoots = []string{
	"DeviceID", "Downloads", "Tags", "Events", "Reboot", "FactoryReset",
	"VirtualParameters",
}

// Store is the process-wide, thread-safe device parameter map.
type Store struct {
	mu         sync.Mutex
	params     map[string]Parameter
	identity   Identity
	sortedPathsCache []string
	cacheValid bool
}

// Identity holds the fields the spec calls out separately from the
// parameter map proper: manufacturer/OUI/serial/etc. used to build
// Inform's DeviceId and to drive the auth engine's default credentials.
type Identity struct {
	Manufacturer string
	OUI          string
	ProductClass string
	SerialNumber string
	MACAddress   string
	Username     string
	Password     string
}

// New creates a Store with no parameters; callers seed it via Seed
// before using it.
func New(identity Identity) *Store {
	return &Store{
		params:   make(map[string]Parameter),
		identity: identity,
	}
}

// Identity returns a copy of the device identity fields.
func (s *Store) Identity() Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// SetIdentityCredentials overrides username/password, mirroring the
// spec's rule that ManagementServer.Username/Password in the data
// model win over the launcher's defaults.
func (s *Store) SetIdentityCredentials(username, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity.Username = username
	s.identity.Password = password
}

// Seed installs the initial parameter dictionary. It is called once at
// startup, before any RPC has been dispatched.
func (s *Store) Seed(params map[string]Parameter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for path, p := range params {
		s.params[path] = p
	}
	s.cacheValid = false
}

// Get returns the parameter at path and whether it exists.
func (s *Store) Get(path string) (Parameter, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.params[path]
	return p, ok
}

// GetValue is a convenience for callers that only need the value half
// of Get, returning "" for an absent path.
func (s *Store) GetValue(path string) string {
	p, ok := s.Get(path)
	if !ok {
		return ""
	}
	return p.Value
}

// Set updates an existing parameter's value and type in place. It does
// not create new paths — SetParameterValues in the handler layer is
// expected to operate only on paths that already exist.
func (s *Store) Set(path, value, xsdType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.params[path]
	if !ok {
		return
	}
	p.Value = value
	if xsdType != "" {
		p.XSDType = xsdType
	}
	s.params[path] = p
}

// takenInstances returns the set of instance numbers i for which the
// object node "<objectName><i>." exists as a key.
func (s *Store) takenInstances(objectName string) map[int]bool {
	taken := make(map[int]bool)
	prefixLen := len(objectName)
	for path := range s.params {
		if !strings.HasPrefix(path, objectName) {
			continue
		}
		rest := path[prefixLen:]
		dot := strings.IndexByte(rest, '.')
		if dot <= 0 || dot != len(rest)-1 {
			continue
		}
		var n int
		if _, err := fmt.Sscanf(rest[:dot], "%d", &n); err == nil {
			taken[n] = true
		}
	}
	return taken
}

// AddObject creates a new instance of the template object at
// objectName (which must end in "."), copying every template leaf
// "<objectName><leaf>" into "<objectName><i><leaf>" with a
// type-appropriate default value. It returns the chosen instance
// number.
func (s *Store) AddObject(objectName string) (int, error) {
	if !strings.HasSuffix(objectName, ".") {
		return 0, fmt.Errorf("object name %q must end with '.'", objectName)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	taken := s.takenInstances(objectName)
	i := 1
	for taken[i] {
		i++
	}

	newPrefix := fmt.Sprintf("%s%d.", objectName, i)

	templateLeaves := make(map[string]Parameter)
	for path, p := range s.params {
		if !strings.HasPrefix(path, objectName) {
			continue
		}
		rest := path[len(objectName):]
		dot := strings.IndexByte(rest, '.')
		if dot != -1 {
			// belongs to an already-instanced object, not the template
			continue
		}
		templateLeaves[rest] = p
	}

	for leaf, tmpl := range templateLeaves {
		s.params[newPrefix+leaf] = Parameter{
			Writable: tmpl.Writable,
			Value:    defaultValue(tmpl.XSDType),
			XSDType:  tmpl.XSDType,
		}
	}

	s.cacheValid = false
	return i, nil
}

// DeleteObject removes every key whose path has the given prefix.
func (s *Store) DeleteObject(objectPath string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for path := range s.params {
		if strings.HasPrefix(path, objectPath) {
			delete(s.params, path)
		}
	}
	s.cacheValid = false
}

// PathInfo is one entry of a GetParameterNames response.
type PathInfo struct {
	Name     string
	Writable bool
}

func isExcluded(path string) bool {
	if strings.HasPrefix(path, "_") {
		return true
	}
	for _, root := range excludedRoots {
		if path == root || strings.HasPrefix(path, root+".") {
			return true
		}
	}
	return false
}

// sortedPaths returns every non-excluded path, sorted lexicographically,
// using a cache invalidated by AddObject/DeleteObject.
func (s *Store) sortedPaths() []string {
	if s.cacheValid {
		return s.sortedPathsCache
	}
	paths := make([]string, 0, len(s.params))
	for path := range s.params {
		if isExcluded(path) {
			continue
		}
		paths = append(paths, path)
	}
	sort.Strings(paths)
	s.sortedPathsCache = paths
	s.cacheValid = true
	return paths
}

// Names implements GetParameterNames: if nextLevel is true, only
// direct children of prefix are returned; otherwise every path under
// prefix is returned.
func (s *Store) Names(prefix string, nextLevel bool) []PathInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []PathInfo
	for _, path := range s.sortedPaths() {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		if nextLevel && !isDirectChild(path, prefix) {
			continue
		}
		out = append(out, PathInfo{Name: path, Writable: s.params[path].Writable})
	}
	return out
}

// isDirectChild reports whether path is a direct child of prefix: the
// remainder after stripping prefix contains no further "." except
// possibly one trailing "." for an object node.
func isDirectChild(path, prefix string) bool {
	rest := strings.TrimPrefix(path, prefix)
	if rest == "" {
		return false
	}
	rest = strings.TrimSuffix(rest, ".")
	return !strings.Contains(rest, ".")
}

// InformParameters returns the well-known Inform parameters (per the
// Glossary) that are present in the store, keyed by path.
func (s *Store) InformParameters(paths []string) map[string]Parameter {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Parameter)
	for _, p := range paths {
		if v, ok := s.params[p]; ok {
			out[p] = v
		}
	}
	return out
}

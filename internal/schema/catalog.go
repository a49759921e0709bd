package schema

import (
	"fmt"
	"sort"
	"strings"
)

// EntityKind classifies the DEFINE statements the extractor recognizes.
type EntityKind string

const (
	KindTable    EntityKind = "table"
	KindField    EntityKind = "field"
	KindEvent    EntityKind = "event"
	KindIndex    EntityKind = "index"
	KindFunction EntityKind = "function"
	KindParam    EntityKind = "param"
	KindAccess   EntityKind = "access"
	KindAnalyzer EntityKind = "analyzer"
	KindUser     EntityKind = "user"
	KindAPI      EntityKind = "api"
)

// EntityKey identifies one structural schema entity. Scope is the owning
// table for field/event/index, an optional namespace/database scope for
// access/user, and empty otherwise. Ordering is total over
// (kind, scope, name) so entity sets diff deterministically.
type EntityKey struct {
	Kind  EntityKind `json:"kind"`
	Scope string     `json:"scope,omitempty"`
	Name  string     `json:"name"`
}

// Less orders keys by (kind, scope, name).
func (e EntityKey) Less(other EntityKey) bool {
	if e.Kind != other.Kind {
		return e.Kind < other.Kind
	}
	if e.Scope != other.Scope {
		return e.Scope < other.Scope
	}
	return e.Name < other.Name
}

func (e EntityKey) String() string {
	if e.Scope != "" {
		return fmt.Sprintf("%s %s ON %s", e.Kind, e.Name, e.Scope)
	}
	return fmt.Sprintf("%s %s", e.Kind, e.Name)
}

// ParseDefineEntity extracts an EntityKey from a single statement, returning
// ok=false for statements the inventory does not track. This is a heuristic
// structural read, not semantic validation.
func ParseDefineEntity(stmt string) (EntityKey, bool) {
	tokens := Tokenize(stmt)
	if len(tokens) < 3 || !tokenEq(tokens[0], "DEFINE") {
		return EntityKey{}, false
	}

	kind := EntityKind(strings.ToLower(tokens[1]))
	idx := skipModifiers(tokens, 2)
	if idx >= len(tokens) {
		return EntityKey{}, false
	}

	switch kind {
	case KindTable, KindFunction, KindParam, KindAnalyzer, KindAPI:
		return EntityKey{Kind: kind, Name: cleanIdent(tokens[idx])}, true

	case KindField, KindEvent, KindIndex:
		name := cleanIdent(tokens[idx])
		onIdx, ok := findToken(tokens, idx+1, "ON")
		if !ok {
			return EntityKey{}, false
		}
		scopeIdx := onIdx + 1
		if scopeIdx < len(tokens) && tokenEq(tokens[scopeIdx], "TABLE") {
			scopeIdx++
		}
		if scopeIdx >= len(tokens) {
			return EntityKey{}, false
		}
		return EntityKey{Kind: kind, Scope: cleanIdent(tokens[scopeIdx]), Name: name}, true

	case KindAccess, KindUser:
		key := EntityKey{Kind: kind, Name: cleanIdent(tokens[idx])}
		if onIdx, ok := findToken(tokens, idx+1, "ON"); ok && onIdx+1 < len(tokens) {
			key.Scope = cleanIdent(tokens[onIdx+1])
		}
		return key, true
	}

	return EntityKey{}, false
}

// BuildCatalogSnapshot extracts every recognized entity from the given files.
// Duplicates collapse; the result is sorted by the EntityKey total order.
func BuildCatalogSnapshot(files []SchemaFile) CatalogSnapshot {
	seen := make(map[EntityKey]struct{})
	for _, file := range files {
		for _, stmt := range SplitStatements(StripLineComments(file.SQL)) {
			if key, ok := ParseDefineEntity(stmt); ok {
				seen[key] = struct{}{}
			}
		}
	}

	entities := make([]EntityKey, 0, len(seen))
	for key := range seen {
		entities = append(entities, key)
	}
	sort.Slice(entities, func(i, j int) bool { return entities[i].Less(entities[j]) })

	return CatalogSnapshot{Version: 1, Entities: entities}
}

// RemovedEntities returns old − new in EntityKey order: the stale entities
// that existed in a previous catalog but no longer appear in any schema file.
func RemovedEntities(old, current CatalogSnapshot) []EntityKey {
	keep := make(map[EntityKey]struct{}, len(current.Entities))
	for _, key := range current.Entities {
		keep[key] = struct{}{}
	}

	var removed []EntityKey
	for _, key := range old.Entities {
		if _, ok := keep[key]; !ok {
			removed = append(removed, key)
		}
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i].Less(removed[j]) })
	return removed
}

// CapabilityError reports a REMOVE statement the target server cannot
// execute.
type CapabilityError struct {
	Entity EntityKey
	Hint   string
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("cannot remove %s: %s", e.Entity, e.Hint)
}

// RenderRemoveSQL maps stale entities onto REMOVE statements.
//
// It fails with a *CapabilityError when an api-kind entity is present and
// apiSupported is false, and with a missing-scope error when a field, event
// or index lacks its owning table. Kinds outside the REMOVE grammar are
// skipped silently so newer DEFINE kinds never wedge a prune.
func RenderRemoveSQL(entities []EntityKey, apiSupported bool) ([]string, error) {
	out := make([]string, 0, len(entities))
	for _, entity := range entities {
		switch entity.Kind {
		case KindTable:
			out = append(out, fmt.Sprintf("REMOVE TABLE %s;", entity.Name))
		case KindField, KindEvent, KindIndex:
			if entity.Scope == "" {
				return nil, fmt.Errorf("cannot render REMOVE %s for %q: owning table scope is missing",
					strings.ToUpper(string(entity.Kind)), entity.Name)
			}
			out = append(out, fmt.Sprintf("REMOVE %s %s ON %s;",
				strings.ToUpper(string(entity.Kind)), entity.Name, entity.Scope))
		case KindFunction:
			out = append(out, fmt.Sprintf("REMOVE FUNCTION %s;", entity.Name))
		case KindParam:
			out = append(out, fmt.Sprintf("REMOVE PARAM %s;", entity.Name))
		case KindAnalyzer:
			out = append(out, fmt.Sprintf("REMOVE ANALYZER %s;", entity.Name))
		case KindAccess, KindUser:
			keyword := strings.ToUpper(string(entity.Kind))
			if entity.Scope != "" {
				out = append(out, fmt.Sprintf("REMOVE %s %s ON %s;", keyword, entity.Name, entity.Scope))
			} else {
				out = append(out, fmt.Sprintf("REMOVE %s %s;", keyword, entity.Name))
			}
		case KindAPI:
			if !apiSupported {
				return nil, &CapabilityError{
					Entity: entity,
					Hint:   "this SurrealDB server does not support REMOVE API; remove it with a manual migration or upgrade the server",
				}
			}
			out = append(out, fmt.Sprintf("REMOVE API %s;", entity.Name))
		default:
			continue
		}
	}
	return out, nil
}

func cleanIdent(token string) string {
	trimmed := strings.Trim(token, ",;(){}")
	if pos := strings.IndexByte(trimmed, '('); pos >= 0 {
		trimmed = trimmed[:pos]
	}
	return trimmed
}

func skipModifiers(tokens []string, idx int) int {
	for idx < len(tokens) {
		switch {
		case tokenEq(tokens[idx], "OVERWRITE"),
			tokenEq(tokens[idx], "IF"),
			tokenEq(tokens[idx], "NOT"),
			tokenEq(tokens[idx], "EXISTS"):
			idx++
		default:
			return idx
		}
	}
	return idx
}

func findToken(tokens []string, start int, target string) (int, bool) {
	for i := start; i < len(tokens); i++ {
		if tokenEq(tokens[i], target) {
			return i, true
		}
	}
	return 0, false
}

func tokenEq(value, expected string) bool {
	return strings.EqualFold(value, expected)
}

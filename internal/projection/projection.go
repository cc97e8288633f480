// Package projection flattens heterogeneous IdP user records into the field
// subset the reconciler consumes.
package projection

import (
	"github.com/PratikDhanave/identity-sync-service/internal/models"
)

// RuleKind selects how a field is extracted from a raw record.
type RuleKind int

const (
	// Direct copies the top-level field of the same name.
	Direct RuleKind = iota
	// NestedConcat joins several nested string fields with Sep. All parts must be present.
	NestedConcat
	// NestedAlias copies one nested field.
	NestedAlias
)

// Rule extracts one field. Rules for the same field are tried in order
// and the first one that yields a value wins.
type Rule struct {
	Kind  RuleKind
	Paths [][]string
	Sep   string
}

// Rules maps a projected field name to its extraction rules.
type Rules map[string][]Rule

// DefaultRules covers the Okta user shape: timestamps at the top level,
// names and email under "profile".
var DefaultRules = Rules{
	models.FieldName: {
		{Kind: Direct},
		{Kind: NestedConcat, Paths: [][]string{{"profile", "firstName"}, {"profile", "lastName"}}, Sep: " "},
	},
	models.FieldEmail: {
		{Kind: Direct},
		{Kind: NestedAlias, Paths: [][]string{{"profile", "email"}}},
	},
}

// Projector applies a rule table. Fields without rules are copied directly.
type Projector struct {
	rules Rules
}

// New returns a Projector over rules.
func New(rules Rules) *Projector {
	return &Projector{rules: rules}
}

// Project extracts fieldSet from every raw record, keyed by the record's id.
// Fields that cannot be extracted are omitted. Records without an id are skipped.
func (p *Projector) Project(raw []models.RawUser, fieldSet []string) map[string]models.ProjectedFields {
	out := make(map[string]models.ProjectedFields, len(raw))
	for _, rec := range raw {
		id := rec.ID()
		if id == "" {
			continue
		}
		fields := make(models.ProjectedFields, len(fieldSet))
		for _, name := range fieldSet {
			if v, ok := p.extract(rec, name); ok {
				fields[name] = v
			}
		}
		out[id] = fields
	}
	return out
}

func (p *Projector) extract(rec models.RawUser, field string) (any, bool) {
	rules, ok := p.rules[field]
	if !ok {
		rules = []Rule{{Kind: Direct}}
	}
	for _, r := range rules {
		if v, ok := r.apply(rec, field); ok {
			return v, true
		}
	}
	return nil, false
}

func (r Rule) apply(rec models.RawUser, field string) (any, bool) {
	switch r.Kind {
	case Direct:
		v, ok := rec[field]
		if !ok || v == nil {
			return nil, false
		}
		return v, true
	case NestedAlias:
		if len(r.Paths) == 0 {
			return nil, false
		}
		v, ok := lookup(rec, r.Paths[0])
		if !ok || v == nil {
			return nil, false
		}
		return v, true
	case NestedConcat:
		var joined string
		for i, path := range r.Paths {
			v, ok := lookup(rec, path)
			if !ok {
				return nil, false
			}
			s, ok := v.(string)
			if !ok {
				return nil, false
			}
			if i > 0 {
				joined += r.Sep
			}
			joined += s
		}
		return joined, len(r.Paths) > 0
	}
	return nil, false
}

func lookup(rec map[string]any, path []string) (any, bool) {
	var cur any = rec
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[key]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// MarkAdmins sets an explicit admin flag on every projected entry:
// true when its id is among the group members, false otherwise.
func MarkAdmins(members []models.RawUser, projected map[string]models.ProjectedFields) {
	ids := make(map[string]struct{}, len(members))
	for _, m := range members {
		if id := m.ID(); id != "" {
			ids[id] = struct{}{}
		}
	}
	for id, fields := range projected {
		if fields == nil {
			fields = models.ProjectedFields{}
			projected[id] = fields
		}
		_, isAdmin := ids[id]
		fields[models.FieldAdmin] = isAdmin
	}
}

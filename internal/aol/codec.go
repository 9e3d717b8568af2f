package aol

import (
	"strings"

	"github.com/google/uuid"
)

// Attribute vocabulary of the log. A has/being fact asserts that an
// entity exists, lacks/being retracts it, and is-a names the entity's
// domain type.
const (
	HasAttr   = "has"
	LacksAttr = "lacks"
	IsAAttr   = "is-a"
	BeingVal  = "being"
)

// Record is a typed domain record that can be flattened into facts.
// Fields returns the record's attributes in a stable order, with boolean
// values rendered as "true"/"false".
type Record interface {
	RecordID() string
	Fields() []FieldValue
}

// FieldValue is one domain-level attribute of a record. Names use
// snake_case; the codec converts them to the log's human-readable
// hyphenated form.
type FieldValue struct {
	Name  string
	Value string
}

// Constructor builds and validates a typed record from a decoded
// attribute map. It returns no record (and a descriptive error) when any
// field fails validation.
type Constructor func(fields map[string]string) (Record, error)

// attrToLog converts a domain field name to the log-level attribute
// syntax: boolean fields keep their "is-" prefix, everything else gets a
// "has-" prefix, and underscores become hyphens, so logs stay legible
// without a schema.
func attrToLog(name string) string {
	if !strings.HasPrefix(name, "is_") {
		name = "has_" + name
	}
	return strings.ReplaceAll(name, "_", "-")
}

// attrFromLog converts a log-level attribute back to the domain syntax.
func attrFromLog(attr string) string {
	attr = strings.TrimPrefix(attr, "has-")
	return strings.ReplaceAll(attr, "-", "_")
}

// FiatEntity returns a fact asserting the existence of an entity,
// minting a fresh ID when none is supplied.
func FiatEntity(entityID string) Fact {
	if entityID == "" {
		entityID = uuid.New().String()
	}
	return Fact{Entity: entityID, Attribute: HasAttr, Value: BeingVal, Time: Now()}
}

// FiatAttribute returns a fact asserting that the entity has the given
// attribute value at call time.
func FiatAttribute(entityID, attribute, value string) Fact {
	return Fact{Entity: entityID, Attribute: attribute, Value: value, Time: Now()}
}

// RetractEntity returns a fact retracting the entity's existence.
func RetractEntity(entityID string) Fact {
	return Fact{Entity: entityID, Attribute: LacksAttr, Value: BeingVal, Time: Now()}
}

// Encode flattens record into the ordered facts sufficient to represent
// it in the log: one existence fact, one type fact, then one fact per
// field.
func Encode(record Record, typeTag string) []Fact {
	being := FiatEntity(record.RecordID())
	facts := []Fact{
		being,
		FiatAttribute(being.Entity, IsAAttr, typeTag),
	}
	for _, field := range record.Fields() {
		facts = append(facts, FiatAttribute(being.Entity, attrToLog(field.Name), field.Value))
	}
	return facts
}

// AppendRecord encodes record and appends its facts to the log.
func AppendRecord(log Log, record Record, typeTag string) Log {
	for _, f := range Encode(record, typeTag) {
		log = Append(log, f)
	}
	return log
}

// decodedEntity accumulates the facts seen for one entity ID.
type decodedEntity struct {
	fields  map[string]string
	typeTag string
	extant  bool
}

// Decode reconstructs the current view of the log: a map from type tag to
// the records of that type. Only entities whose most recent being-fact is
// affirmative are kept; entities with an unknown type tag or failing
// their constructor's validation are dropped rather than raised, since a
// shared log may carry facts this process cannot interpret.
func Decode(log Log, constructors map[string]Constructor) map[string][]Record {
	entities := make(map[string]*decodedEntity)
	var order []string
	for _, entry := range log {
		f := entry.Fact
		ent, ok := entities[f.Entity]
		if !ok {
			ent = &decodedEntity{fields: make(map[string]string)}
			entities[f.Entity] = ent
			order = append(order, f.Entity)
		}
		switch {
		case f.Value == BeingVal && f.Attribute == HasAttr:
			ent.extant = true
		case f.Value == BeingVal && f.Attribute == LacksAttr:
			ent.extant = false
		case f.Attribute == IsAAttr:
			ent.typeTag = f.Value
		default:
			ent.fields[attrFromLog(f.Attribute)] = f.Value
		}
	}

	ret := make(map[string][]Record, len(constructors))
	for tag := range constructors {
		ret[tag] = nil
	}
	for _, id := range order {
		ent := entities[id]
		if !ent.extant {
			continue
		}
		constructor, ok := constructors[ent.typeTag]
		if !ok {
			continue
		}
		record, err := constructor(ent.fields)
		if err != nil {
			continue
		}
		ret[ent.typeTag] = append(ret[ent.typeTag], record)
	}
	return ret
}

package types

// SymbolKind classifies a Symbol's syntactic role.
type SymbolKind int

const (
	SymbolKindUnknown SymbolKind = iota
	SymbolKindFunction
	SymbolKindMethod
	SymbolKindClass
	SymbolKindInterface
	SymbolKindStruct
	SymbolKindEnum
	SymbolKindVariable
	SymbolKindParameter
	SymbolKindConstant
	SymbolKindModule
	SymbolKindField
	SymbolKindConstructor
	SymbolKindDestructor
	SymbolKindLambda
)

// Symbol is a derived, persistent fact produced by the Analyzer Manager.
// (WorkspaceID, SymbolUID) is its unique identity; among rows sharing that
// identity the highest FileVersionID wins on read.
type Symbol struct {
	SymbolUID       string
	WorkspaceID     string
	FileVersionID   uint64
	File            string
	Language        string
	Name            string
	FQN             string
	Kind            SymbolKind
	Signature       string
	Visibility      string
	StartLine       int
	StartChar       int
	EndLine         int
	EndChar         int
	IsDefinition    bool
	Documentation   string
	Metadata        map[string]string
}

// Relation is the closed set of Edge relationship kinds.
type Relation int

const (
	RelationContains Relation = iota
	RelationInheritsFrom
	RelationImplements
	RelationOverrides
	RelationExtendedBy
	RelationReferences
	RelationCalls
	RelationCalledBy
	RelationInstantiates
	RelationImports
	RelationTypeOf
	RelationInstanceOf
)

var relationStrings = [...]string{
	RelationContains:     "Contains",
	RelationInheritsFrom: "InheritsFrom",
	RelationImplements:   "Implements",
	RelationOverrides:    "Overrides",
	RelationExtendedBy:   "ExtendedBy",
	RelationReferences:   "References",
	RelationCalls:        "Calls",
	RelationCalledBy:     "CalledBy",
	RelationInstantiates: "Instantiates",
	RelationImports:      "Imports",
	RelationTypeOf:       "TypeOf",
	RelationInstanceOf:   "InstanceOf",
}

func (r Relation) String() string {
	if int(r) < 0 || int(r) >= len(relationStrings) {
		return "Unknown"
	}
	return relationStrings[r]
}

// Inverse returns the defined inverse relation, if one exists, along with
// whether an inverse is defined at all. Traversal code computes inverses
// on demand rather than storing both directions.
func (r Relation) Inverse() (Relation, bool) {
	switch r {
	case RelationCalls:
		return RelationCalledBy, true
	case RelationCalledBy:
		return RelationCalls, true
	case RelationInheritsFrom:
		return RelationExtendedBy, true
	case RelationExtendedBy:
		return RelationInheritsFrom, true
	default:
		return 0, false
	}
}

// Edge is a directed, typed relationship between two symbols.
type Edge struct {
	Language            string
	Relation            Relation
	SourceSymbolUID     string
	TargetSymbolUID     string
	AnchorFileVersionID uint64
	AnchorLine          int
	AnchorChar          int
	Confidence          float64
	Metadata            map[string]string
}

// Key returns the (source, target, relation) dedup key for Edge.
func (e Edge) Key() [3]string {
	return [3]string{e.SourceSymbolUID, e.TargetSymbolUID, e.Relation.String()}
}

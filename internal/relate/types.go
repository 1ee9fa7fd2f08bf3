package relate

// Type classifies how one file relates to another.
type Type string

const (
	// TypeInforms indicates the source provides data the target builds on.
	TypeInforms Type = "informs"
	// TypeSummarizes indicates the source condenses the target.
	TypeSummarizes Type = "summarizes"
	// TypeDocuments indicates the source is narrative documentation of
	// the target.
	TypeDocuments Type = "documents"
	// TypeReferences indicates the source is a version or derivative of
	// the target.
	TypeReferences Type = "references"
	// TypeRelatedTo is the generic association when no stronger type applies.
	TypeRelatedTo Type = "related-to"
)

// AllTypes returns the known relationship types in a stable order.
func AllTypes() []Type {
	return []Type{TypeInforms, TypeSummarizes, TypeDocuments, TypeReferences, TypeRelatedTo}
}

// Describe returns a short human-readable gloss for the type.
func (t Type) Describe() string {
	switch t {
	case TypeInforms:
		return "provides data that feeds into"
	case TypeSummarizes:
		return "condenses the content of"
	case TypeDocuments:
		return "is narrative documentation for"
	case TypeReferences:
		return "is a version or derivative of"
	default:
		return "is associated with"
	}
}

// Evidence records one strategy's contribution to a relationship.
type Evidence struct {
	Strategy string   `json:"strategy"`
	Score    float64  `json:"score"`
	Detail   string   `json:"detail"`
	Shared   []string `json:"shared,omitempty"`
}

// Relationship is a scored, typed link between two files.
type Relationship struct {
	SourceID   string     `json:"source_id"`
	TargetID   string     `json:"target_id"`
	SourcePath string     `json:"source_path"`
	TargetPath string     `json:"target_path"`
	Type       Type       `json:"type"`
	Confidence float64    `json:"confidence"`
	Evidence   []Evidence `json:"evidence"`
	Reasoning  string     `json:"reasoning"`
}

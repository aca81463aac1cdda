package models

import (
	"strings"
	"unicode/utf8"

	dErrors "taxcase/pkg/domain-errors"
)

// RevisableKind names the kind of domain record a revision targets.
type RevisableKind string

const (
	KindTaxCase    RevisableKind = "tax_case"
	KindSubmission RevisableKind = "submission"
	KindDecision   RevisableKind = "decision"
	KindDocument   RevisableKind = "document"
	KindFiscalYear RevisableKind = "fiscal_year"
	KindPeriod     RevisableKind = "period"
)

var knownKinds = map[RevisableKind]bool{
	KindTaxCase:    true,
	KindSubmission: true,
	KindDecision:   true,
	KindDocument:   true,
	KindFiscalYear: true,
	KindPeriod:     true,
}

const maxRevisableIDLength = 64

// RevisableRef identifies the record a revision targets. The workflow never
// interprets the referenced record; kind and id are identity only.
type RevisableRef struct {
	Kind RevisableKind `json:"kind"`
	ID   string        `json:"id"`
}

// ParseRevisableRef validates a kind/id pair from an untrusted source.
func ParseRevisableRef(kind, refID string) (RevisableRef, error) {
	k := RevisableKind(strings.ToLower(strings.TrimSpace(kind)))
	if !knownKinds[k] {
		return RevisableRef{}, dErrors.New(dErrors.CodeValidation, "unknown target_kind: "+kind)
	}
	refID = strings.TrimSpace(refID)
	if refID == "" {
		return RevisableRef{}, dErrors.New(dErrors.CodeValidation, "target_id is required")
	}
	if utf8.RuneCountInString(refID) > maxRevisableIDLength {
		return RevisableRef{}, dErrors.New(dErrors.CodeValidation, "target_id must be at most 64 characters")
	}
	return RevisableRef{Kind: k, ID: refID}, nil
}

func (r RevisableRef) String() string {
	return string(r.Kind) + ":" + r.ID
}

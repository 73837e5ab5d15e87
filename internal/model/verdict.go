package model

// Verdict is the decision engine's output for one contact. Produced once,
// applied to the contact by the batch orchestrator, then kept as an audit row.
type Verdict struct {
	ContactID string        `json:"contact_id"`
	Status    ContactStatus `json:"status"`
	Ledger    LedgerEntry   `json:"ledger"`

	// Replacement identity, populated when the contact departed and a
	// successor was identified.
	ReplacementName  string `json:"replacement_name,omitempty"`
	ReplacementEmail string `json:"replacement_email,omitempty"`
	ReplacementTitle string `json:"replacement_title,omitempty"`

	LowConfidence       bool     `json:"low_confidence"`
	CurrentOrganization string   `json:"current_organization,omitempty"`
	EvidenceURLs        []string `json:"evidence_urls,omitempty"`
	Notes               string   `json:"notes,omitempty"`
}

// HasReplacement requires both a name and an email: a replacement without an
// email cannot be inserted as a contact row.
func (v Verdict) HasReplacement() bool {
	return v.ReplacementName != "" && v.ReplacementEmail != ""
}

// NeedsHumanReview reports whether the verdict should put the contact in the
// review queue.
func (v Verdict) NeedsHumanReview() bool {
	return v.LowConfidence || v.Status == StatusUnknown
}

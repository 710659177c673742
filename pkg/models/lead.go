package models

import (
	"time"
)

// Segment is the coarse quality tier derived from a lead's score
type Segment string

const (
	SegmentHot          Segment = "HOT"
	SegmentWarm         Segment = "WARM"
	SegmentCold         Segment = "COLD"
	SegmentDisqualified Segment = "DISQUALIFIED"
)

// Segments lists every segment, hottest first
var Segments = []Segment{SegmentHot, SegmentWarm, SegmentCold, SegmentDisqualified}

// LeadStatus is the sales workflow position of a lead
type LeadStatus string

const (
	StatusNew        LeadStatus = "Neu"
	StatusContacted  LeadStatus = "Kontaktiert"
	StatusInterested LeadStatus = "Interessiert"
	StatusOffer      LeadStatus = "Angebot"
	StatusWon        LeadStatus = "Gewonnen"
	StatusLost       LeadStatus = "Verloren"
)

// LeadStatuses lists every workflow status in pipeline order
var LeadStatuses = []LeadStatus{StatusNew, StatusContacted, StatusInterested, StatusOffer, StatusWon, StatusLost}

// HistoryEntry is one line of a lead's append-only activity log
type HistoryEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"aktion"`
	Details   string    `json:"details"`
}

// Lead is a prospective customer record. JSON names follow the German
// field names used by the import scripts and email templates.
type Lead struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// Company
	Company    string `gorm:"not null;index" json:"firma"`
	Website    string `json:"website"`
	Industry   string `gorm:"index" json:"branche"`
	Size       string `json:"groesse"`
	PostalCode string `gorm:"index" json:"plz"`
	City       string `json:"ort"`

	// Contact
	ContactPerson string `json:"ansprechpartner"`
	Position      string `json:"position"`
	Email         string `gorm:"index" json:"email"`
	Phone         string `json:"telefon"`

	// Online presence
	WebsiteQuality   int    `json:"websiteQualitaet"`
	HasSocialMedia   bool   `json:"socialMedia"`
	SocialMediaLinks string `json:"socialMediaLinks"`
	ReviewRating     string `json:"googleBewertung"`
	WebsiteText      string `gorm:"type:text" json:"websiteText,omitempty"`

	// Analysis
	Score         int      `gorm:"index" json:"score"`
	Summary       string   `gorm:"type:text" json:"kiZusammenfassung"`
	Segment       Segment  `gorm:"type:varchar(16);index" json:"segment"`
	SegmentManual bool     `json:"segmentManuell"`
	Tags          []string `gorm:"serializer:json" json:"tags"`

	// AI enrichment
	AIAnalyzed       bool       `json:"kiAnalysiert"`
	AIAnalyzedAt     *time.Time `json:"kiAnalysiertAm,omitempty"`
	AITargetGroup    string     `json:"kiZielgruppe,omitempty"`
	AIOnlinePresence string     `json:"kiOnlineAuftritt,omitempty"`
	AIWeaknesses     string     `json:"kiSchwaechen,omitempty"`
	AIOpportunities  string     `json:"kiChancen,omitempty"`
	AICompetition    string     `json:"kiWettbewerb,omitempty"`
	AIPitch          string     `gorm:"type:text" json:"kiAnsprache,omitempty"`
	AIPitchSignature string     `gorm:"type:text" json:"kiAnspracheSig,omitempty"`
	AIScore          *int       `json:"kiScore,omitempty"`
	AIScoreReason    string     `json:"kiScoreBegruendung,omitempty"`
	AISegment        string     `json:"kiSegment,omitempty"`

	// Workflow
	Status  LeadStatus     `gorm:"type:varchar(16);index" json:"status"`
	Notes   string         `gorm:"type:text" json:"notizen"`
	History []HistoryEntry `gorm:"serializer:json" json:"history"`

	// SearchText holds company, city and email case-folded for free-text
	// search; SQLite's LOWER only folds ASCII.
	SearchText string `gorm:"type:text;index" json:"-"`

	CreatedAt time.Time `json:"erstelltAm"`
	UpdatedAt time.Time `json:"bearbeitetAm"`
}

// HasContact reports whether a contact person is known
func (l *Lead) HasContact() bool {
	return l.ContactPerson != ""
}

// IsValidSegment checks a segment value
func IsValidSegment(s Segment) bool {
	for _, v := range Segments {
		if v == s {
			return true
		}
	}
	return false
}

// IsValidLeadStatus checks a status value
func IsValidLeadStatus(s LeadStatus) bool {
	for _, v := range LeadStatuses {
		if v == s {
			return true
		}
	}
	return false
}

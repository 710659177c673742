package models

import "time"

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// LeadRequest is the boundary shape for creating or replacing a lead
type LeadRequest struct {
	Company    string `json:"firma" validate:"required,max=255"`
	Website    string `json:"website" validate:"max=512"`
	Industry   string `json:"branche" validate:"max=128"`
	Size       string `json:"groesse" validate:"max=64"`
	PostalCode string `json:"plz" validate:"max=16"`
	City       string `json:"ort" validate:"max=128"`

	ContactPerson string `json:"ansprechpartner" validate:"max=255"`
	Position      string `json:"position" validate:"max=128"`
	Email         string `json:"email" validate:"omitempty,email,max=255"`
	Phone         string `json:"telefon" validate:"max=64"`

	WebsiteQuality   int    `json:"websiteQualitaet" validate:"min=0,max=5"`
	HasSocialMedia   bool   `json:"socialMedia"`
	SocialMediaLinks string `json:"socialMediaLinks"`
	ReviewRating     string `json:"googleBewertung" validate:"max=64"`
	WebsiteText      string `json:"websiteText"`

	Summary       string     `json:"kiZusammenfassung"`
	AIScore       *int       `json:"kiScore" validate:"omitempty,min=0,max=100"`
	Segment       Segment    `json:"segment" validate:"omitempty,oneof=HOT WARM COLD DISQUALIFIED"`
	SegmentManual bool       `json:"segmentManuell"`
	Tags          []string   `json:"tags" validate:"max=50,dive,max=64"`
	Status        LeadStatus `json:"status" validate:"omitempty,oneof=Neu Kontaktiert Interessiert Angebot Gewonnen Verloren"`
	Notes         string     `json:"notizen"`
}

// ToLead converts the request into an unsaved lead. Score and segment
// are left for the store to derive.
func (r *LeadRequest) ToLead() *Lead {
	status := r.Status
	if status == "" {
		status = StatusNew
	}
	return &Lead{
		Company:          r.Company,
		Website:          r.Website,
		Industry:         r.Industry,
		Size:             r.Size,
		PostalCode:       r.PostalCode,
		City:             r.City,
		ContactPerson:    r.ContactPerson,
		Position:         r.Position,
		Email:            r.Email,
		Phone:            r.Phone,
		WebsiteQuality:   r.WebsiteQuality,
		HasSocialMedia:   r.HasSocialMedia,
		SocialMediaLinks: r.SocialMediaLinks,
		ReviewRating:     r.ReviewRating,
		WebsiteText:      r.WebsiteText,
		Summary:          r.Summary,
		AIScore:          r.AIScore,
		Segment:          r.Segment,
		SegmentManual:    r.SegmentManual,
		Tags:             r.Tags,
		Status:           status,
		Notes:            r.Notes,
	}
}

// BulkLeadRequest imports many leads at once
type BulkLeadRequest struct {
	Leads []LeadRequest `json:"leads" validate:"required,min=1,max=1000,dive"`
}

// BulkLeadResponse reports inserted ids and skipped duplicates
type BulkLeadResponse struct {
	Inserted []uint `json:"inserted"`
	Skipped  int    `json:"skipped"`
}

// LeadPatch lists the fields a partial update may touch. Nil pointers
// are left unchanged.
type LeadPatch struct {
	Summary          *string     `json:"kiZusammenfassung,omitempty"`
	AIAnalyzed       *bool       `json:"kiAnalysiert,omitempty"`
	AIAnalyzedAt     *time.Time  `json:"kiAnalysiertAm,omitempty"`
	AITargetGroup    *string     `json:"kiZielgruppe,omitempty"`
	AIOnlinePresence *string     `json:"kiOnlineAuftritt,omitempty"`
	AIWeaknesses     *string     `json:"kiSchwaechen,omitempty"`
	AIOpportunities  *string     `json:"kiChancen,omitempty"`
	AICompetition    *string     `json:"kiWettbewerb,omitempty"`
	AIPitch          *string     `json:"kiAnsprache,omitempty"`
	AIPitchSignature *string     `json:"kiAnspracheSig,omitempty"`
	AIScore          *int        `json:"kiScore,omitempty" validate:"omitempty,min=0,max=100"`
	AIScoreReason    *string     `json:"kiScoreBegruendung,omitempty"`
	AISegment        *string     `json:"kiSegment,omitempty"`
	Tags             *[]string   `json:"tags,omitempty"`
	Status           *LeadStatus `json:"status,omitempty" validate:"omitempty,oneof=Neu Kontaktiert Interessiert Angebot Gewonnen Verloren"`
	Notes            *string     `json:"notizen,omitempty"`
	Segment          *Segment    `json:"segment,omitempty" validate:"omitempty,oneof=HOT WARM COLD DISQUALIFIED"`
	SegmentManual    *bool       `json:"segmentManuell,omitempty"`
}

// LeadListRequest carries list query parameters
type LeadListRequest struct {
	Segment    string `query:"segment" validate:"omitempty,oneof=HOT WARM COLD DISQUALIFIED"`
	Industry   string `query:"branche"`
	Status     string `query:"status" validate:"omitempty,oneof=Neu Kontaktiert Interessiert Angebot Gewonnen Verloren"`
	PostalCode string `query:"plz"`
	ScoreMin   *int   `query:"scoreMin" validate:"omitempty,min=0,max=100"`
	ScoreMax   *int   `query:"scoreMax" validate:"omitempty,min=0,max=100"`
	Search     string `query:"q"`
	SortBy     string `query:"sort"`
	Order      string `query:"order" validate:"omitempty,oneof=asc desc"`
	Page       int    `query:"page" validate:"omitempty,min=1"`
	Limit      int    `query:"limit" validate:"omitempty,min=1,max=500"`
}

// HistoryRequest appends a manual history entry
type HistoryRequest struct {
	Action  string `json:"aktion" validate:"required,max=128"`
	Details string `json:"details" validate:"max=2000"`
}

// AccountRequest creates or updates an EmailAccount
type AccountRequest struct {
	Name          string `json:"name" validate:"required,max=255"`
	FromEmail     string `json:"fromEmail" validate:"required,email"`
	FromName      string `json:"fromName" validate:"max=255"`
	SignatureHTML string `json:"signatureHtml"`
	Provider      string `json:"provider" validate:"required,oneof=smtp sendgrid ses console"`
	SMTPHost      string `json:"smtpHost" validate:"required_if=Provider smtp"`
	SMTPPort      int    `json:"smtpPort" validate:"omitempty,min=1,max=65535"`
	SMTPUser      string `json:"smtpUser"`
	SMTPPassword  string `json:"smtpPassword"`
	SMTPUseTLS    bool   `json:"smtpUseTls"`
	APIKey        string `json:"apiKey" validate:"required_if=Provider sendgrid"`
	SESAccessKey  string `json:"sesAccessKey" validate:"required_if=Provider ses"`
	SESSecretKey  string `json:"sesSecretKey"`
	SESRegion     string `json:"sesRegion" validate:"required_if=Provider ses,max=32"`
	Active        *bool  `json:"active"`
}

// TemplateRequest creates or updates an EmailTemplate
type TemplateRequest struct {
	Name      string   `json:"name" validate:"required,max=255"`
	Subject   string   `json:"subject" validate:"required,max=998"`
	HTMLBody  string   `json:"htmlBody" validate:"required"`
	Variables []string `json:"variables"`
}

// EmailPreviewRequest renders a template for one lead, optionally with an
// account's signature
type EmailPreviewRequest struct {
	LeadID    uint `json:"leadId" validate:"required"`
	AccountID uint `json:"accountId"`
}

// CampaignRequest creates or edits an EmailCampaign in draft
type CampaignRequest struct {
	Name       string `json:"name" validate:"required,max=255"`
	TemplateID uint   `json:"templateId" validate:"required"`
	AccountID  uint   `json:"accountId" validate:"required"`
	Filter     string `json:"filter"`
}

// SendStatusRequest is a provider callback moving a send forward
type SendStatusRequest struct {
	Status            SendStatus `json:"status" validate:"required,oneof=queued sending sent delivered opened clicked bounced complained failed"`
	Timestamp         *time.Time `json:"timestamp"`
	ProviderMessageID string     `json:"providerMessageId"`
	ErrorMessage      string     `json:"errorMessage"`
}

// EventRequest is a provider webhook event for a send
type EventRequest struct {
	Type     EventType         `json:"type" validate:"required,oneof=open click bounce complaint"`
	URL      string            `json:"url"`
	Metadata map[string]string `json:"metadata"`
}

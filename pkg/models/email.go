package models

import (
	"time"
)

// Mail providers an EmailAccount can send through
const (
	ProviderSMTP     = "smtp"
	ProviderSendGrid = "sendgrid"
	ProviderSES      = "ses"
	ProviderConsole  = "console"
)

// EmailAccount is a sending identity with its transport credentials.
// SMTPPassword, APIKey and the SES keys are sealed at rest by the
// campaign service and never serialized.
type EmailAccount struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	Name          string `gorm:"not null" json:"name"`
	FromEmail     string `gorm:"not null" json:"fromEmail"`
	FromName      string `json:"fromName"`
	SignatureHTML string `gorm:"type:text" json:"signatureHtml"`

	Provider     string `gorm:"type:varchar(16);not null;default:smtp" json:"provider"`
	SMTPHost     string `json:"smtpHost,omitempty"`
	SMTPPort     int    `json:"smtpPort,omitempty"`
	SMTPUser     string `json:"smtpUser,omitempty"`
	SMTPPassword string `json:"-"`
	SMTPUseTLS   bool   `json:"smtpUseTls"`
	APIKey       string `json:"-"`
	SESAccessKey string `json:"-"`
	SESSecretKey string `json:"-"`
	SESRegion    string `gorm:"type:varchar(32)" json:"sesRegion,omitempty"`

	Active    bool  `json:"active"`
	Verified  bool  `json:"verified"`
	TotalSent int64 `json:"totalSent"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// EmailTemplate holds a subject and HTML body with {{placeholder}} markers
type EmailTemplate struct {
	ID        uint     `gorm:"primaryKey" json:"id"`
	Name      string   `gorm:"not null" json:"name"`
	Subject   string   `gorm:"not null" json:"subject"`
	HTMLBody  string   `gorm:"type:text;not null" json:"htmlBody"`
	Variables []string `gorm:"serializer:json" json:"variables"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CampaignStatus is the lifecycle state of a campaign
type CampaignStatus string

const (
	CampaignDraft   CampaignStatus = "draft"
	CampaignQueued  CampaignStatus = "queued"
	CampaignSending CampaignStatus = "sending"
	CampaignSent    CampaignStatus = "sent"
	CampaignPaused  CampaignStatus = "paused"
)

// EmailCampaign is one send job against a filtered set of leads
type EmailCampaign struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	Name       string         `gorm:"not null" json:"name"`
	TemplateID uint           `gorm:"index" json:"templateId"`
	AccountID  uint           `gorm:"index" json:"accountId"`
	Filter     string         `gorm:"type:text" json:"filter"`
	Status     CampaignStatus `gorm:"type:varchar(16);index" json:"status"`

	TotalLeads      int     `json:"totalLeads"`
	TotalQueued     int     `json:"totalQueued"`
	TotalSent       int     `json:"totalSent"`
	TotalDelivered  int     `json:"totalDelivered"`
	TotalOpened     int     `json:"totalOpened"`
	TotalClicked    int     `json:"totalClicked"`
	TotalBounced    int     `json:"totalBounced"`
	TotalComplained int     `json:"totalComplained"`
	TotalFailed     int     `json:"totalFailed"`
	OpenRate        float64 `json:"openRate"`
	ClickRate       float64 `json:"clickRate"`
	BounceRate      float64 `json:"bounceRate"`

	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// SendStatus is the delivery state of one EmailSend
type SendStatus string

const (
	SendQueued     SendStatus = "queued"
	SendSending    SendStatus = "sending"
	SendSent       SendStatus = "sent"
	SendDelivered  SendStatus = "delivered"
	SendOpened     SendStatus = "opened"
	SendClicked    SendStatus = "clicked"
	SendBounced    SendStatus = "bounced"
	SendComplained SendStatus = "complained"
	SendFailed     SendStatus = "failed"
)

// EmailSend is one recipient's outbound email within a campaign
type EmailSend struct {
	ID         uint `gorm:"primaryKey" json:"id"`
	CampaignID uint `gorm:"index" json:"campaignId"`
	LeadID     uint `gorm:"index" json:"leadId"`
	AccountID  uint `json:"accountId"`

	To       string `gorm:"not null" json:"to"`
	Subject  string `json:"subject"`
	HTMLBody string `gorm:"type:text" json:"htmlBody"`

	Status            SendStatus `gorm:"type:varchar(16);index" json:"status"`
	ProviderMessageID string     `json:"providerMessageId,omitempty"`
	ErrorMessage      string     `json:"errorMessage,omitempty"`

	QueuedAt    time.Time  `json:"queuedAt"`
	SentAt      *time.Time `json:"sentAt,omitempty"`
	DeliveredAt *time.Time `json:"deliveredAt,omitempty"`
	OpenedAt    *time.Time `json:"openedAt,omitempty"`
	ClickedAt   *time.Time `json:"clickedAt,omitempty"`
	BouncedAt   *time.Time `json:"bouncedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// EventType is the kind of an inbound tracking or provider event
type EventType string

const (
	EventOpen      EventType = "open"
	EventClick     EventType = "click"
	EventBounce    EventType = "bounce"
	EventComplaint EventType = "complaint"
)

// EmailEvent is an immutable audit entry for a send
type EmailEvent struct {
	ID         string            `gorm:"primaryKey;type:varchar(36)" json:"id"`
	SendID     uint              `gorm:"index" json:"sendId"`
	Type       EventType         `gorm:"type:varchar(16);index" json:"type"`
	URL        string            `json:"url,omitempty"`
	UserAgent  string            `json:"userAgent,omitempty"`
	IP         string            `json:"ip,omitempty"`
	Metadata   map[string]string `gorm:"serializer:json" json:"metadata,omitempty"`
	OccurredAt time.Time         `gorm:"index" json:"timestamp"`
}

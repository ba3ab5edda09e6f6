package models

import "time"

// Channel is a notification transport.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// PhoneState tracks phone number verification for the SMS channel.
type PhoneState string

const (
	PhoneUnverified PhoneState = "unverified"
	PhonePending    PhoneState = "pending"
	PhoneVerified   PhoneState = "verified"
)

// Frequency controls when enabled notifications are sent.
type Frequency string

const (
	FrequencyImmediate Frequency = "immediate"
	FrequencyDigest    Frequency = "digest"
)

// Milestone is a per-stage subscription inside a preference record.
type Milestone struct {
	Enabled  bool          `json:"enabled"`
	LeadTime time.Duration `json:"lead_time,omitempty"` // notify this long before the stage deadline
}

// NotificationPreference is a user's notification settings within an
// organization. SMS may only be enabled once the phone is verified; the
// preference repository rejects writes violating that.
type NotificationPreference struct {
	UserID         string              `json:"user_id"`
	OrganizationID string              `json:"organization_id"`
	Email          string              `json:"email"`
	EmailEnabled   bool                `json:"email_enabled"`
	SMSEnabled     bool                `json:"sms_enabled"`
	Phone          string              `json:"phone,omitempty"`
	PhoneState     PhoneState          `json:"phone_state"`
	PhoneExpiry    time.Time           `json:"phone_expiry,omitempty"` // pending code expiry
	Milestones     map[Stage]Milestone `json:"milestones"`
	Frequency      Frequency           `json:"frequency"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// SubscribedTo reports whether the user opted into the given stage.
func (p NotificationPreference) SubscribedTo(stage Stage) bool {
	m, ok := p.Milestones[stage]
	return ok && m.Enabled
}

// EligibleChannels returns the channels a notification may use for this
// preference. SMS requires a verified phone regardless of the enable flag.
func (p NotificationPreference) EligibleChannels() []Channel {
	var channels []Channel
	if p.EmailEnabled && p.Email != "" {
		channels = append(channels, ChannelEmail)
	}
	if p.SMSEnabled && p.PhoneState == PhoneVerified && p.Phone != "" {
		channels = append(channels, ChannelSMS)
	}
	return channels
}

// Recipient returns the destination address for a channel.
func (p NotificationPreference) Recipient(ch Channel) string {
	if ch == ChannelSMS {
		return p.Phone
	}
	return p.Email
}

package booking

// PaymentMethod selects how the client settles the appointment. The zero
// value means not chosen yet.
type PaymentMethod string

const (
	PaymentMethodNone   PaymentMethod = ""
	PaymentMethodCash   PaymentMethod = "cash"
	PaymentMethodOnline PaymentMethod = "online"
)

// PaymentStatus tracks the online payment sub-flow. The zero value means no
// attempt has been made (or the last failure was reset for retry).
type PaymentStatus string

const (
	PaymentStatusNone       PaymentStatus = ""
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusFailed     PaymentStatus = "failed"
)

// StylistAny is the no-preference sentinel. It is auto-filled when the
// stylist list is empty so an unstaffed deployment cannot block step 1.
const StylistAny = "any"

// Data is the single mutable aggregate for one booking session. It lives for
// exactly one wizard run and is never persisted by this module; the
// confirmation endpoint owns the durable record.
type Data struct {
	ServiceID string `json:"serviceId"`
	StylistID string `json:"stylistId"`

	AppointmentDate string `json:"appointmentDate"`
	TimeSlot        string `json:"timeSlot"`

	ClientName  string `json:"clientName"`
	ClientEmail string `json:"clientEmail"`
	ClientPhone string `json:"clientPhone"`

	SpecialRequests   string `json:"specialRequests,omitempty"`
	HowHeardAboutUs   string `json:"howHeardAboutUs,omitempty"`
	EmailConfirmation bool   `json:"emailConfirmation"`
	SMSConfirmation   bool   `json:"smsConfirmation"`

	PaymentMethod   PaymentMethod `json:"paymentMethod"`
	PaymentIntentID string        `json:"paymentIntentId,omitempty"`
	PaymentStatus   PaymentStatus `json:"paymentStatus"`
	PaymentError    string        `json:"paymentError,omitempty"`

	AppointmentID      int64  `json:"appointmentId,omitempty"`
	ConfirmationNumber string `json:"confirmationNumber,omitempty"`
}

// NewData returns a fresh aggregate with field defaults applied
// (email confirmations on, SMS off).
func NewData() Data {
	return Data{EmailConfirmation: true}
}

// Partial is a merge-update for Data. Nil pointers are omitted keys; a
// non-nil pointer overwrites the field, including overwriting with a zero
// value. This keeps "absent" and "cleared" distinct in the wire format.
type Partial struct {
	ServiceID *string `json:"serviceId,omitempty"`
	StylistID *string `json:"stylistId,omitempty"`

	AppointmentDate *string `json:"appointmentDate,omitempty"`
	TimeSlot        *string `json:"timeSlot,omitempty"`

	ClientName  *string `json:"clientName,omitempty"`
	ClientEmail *string `json:"clientEmail,omitempty"`
	ClientPhone *string `json:"clientPhone,omitempty"`

	SpecialRequests   *string `json:"specialRequests,omitempty"`
	HowHeardAboutUs   *string `json:"howHeardAboutUs,omitempty"`
	EmailConfirmation *bool   `json:"emailConfirmation,omitempty"`
	SMSConfirmation   *bool   `json:"smsConfirmation,omitempty"`

	PaymentMethod   *PaymentMethod `json:"paymentMethod,omitempty"`
	PaymentIntentID *string        `json:"paymentIntentId,omitempty"`
	PaymentStatus   *PaymentStatus `json:"paymentStatus,omitempty"`
	PaymentError    *string        `json:"paymentError,omitempty"`

	AppointmentID      *int64  `json:"appointmentId,omitempty"`
	ConfirmationNumber *string `json:"confirmationNumber,omitempty"`
}

// Apply returns a copy of d with every set field of p merged in.
func (d Data) Apply(p Partial) Data {
	if p.ServiceID != nil {
		d.ServiceID = *p.ServiceID
	}
	if p.StylistID != nil {
		d.StylistID = *p.StylistID
	}
	if p.AppointmentDate != nil {
		d.AppointmentDate = *p.AppointmentDate
	}
	if p.TimeSlot != nil {
		d.TimeSlot = *p.TimeSlot
	}
	if p.ClientName != nil {
		d.ClientName = *p.ClientName
	}
	if p.ClientEmail != nil {
		d.ClientEmail = *p.ClientEmail
	}
	if p.ClientPhone != nil {
		d.ClientPhone = *p.ClientPhone
	}
	if p.SpecialRequests != nil {
		d.SpecialRequests = *p.SpecialRequests
	}
	if p.HowHeardAboutUs != nil {
		d.HowHeardAboutUs = *p.HowHeardAboutUs
	}
	if p.EmailConfirmation != nil {
		d.EmailConfirmation = *p.EmailConfirmation
	}
	if p.SMSConfirmation != nil {
		d.SMSConfirmation = *p.SMSConfirmation
	}
	if p.PaymentMethod != nil {
		d.PaymentMethod = *p.PaymentMethod
	}
	if p.PaymentIntentID != nil {
		d.PaymentIntentID = *p.PaymentIntentID
	}
	if p.PaymentStatus != nil {
		d.PaymentStatus = *p.PaymentStatus
	}
	if p.PaymentError != nil {
		d.PaymentError = *p.PaymentError
	}
	if p.AppointmentID != nil {
		d.AppointmentID = *p.AppointmentID
	}
	if p.ConfirmationNumber != nil {
		d.ConfirmationNumber = *p.ConfirmationNumber
	}
	return d
}

// String pointer helpers for building partials in code.

func String(v string) *string { return &v }
func Bool(v bool) *bool       { return &v }
func Int64(v int64) *int64    { return &v }

func Method(v PaymentMethod) *PaymentMethod { return &v }
func Status(v PaymentStatus) *PaymentStatus { return &v }

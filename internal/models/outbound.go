package models

import "time"

// PayloadKind names an outbound payload variant.
type PayloadKind string

const (
	PayloadText     PayloadKind = "text"
	PayloadMedia    PayloadKind = "media"
	PayloadLocation PayloadKind = "location"
	PayloadContacts PayloadKind = "contacts"
	PayloadReaction PayloadKind = "reaction"
	PayloadList     PayloadKind = "list"
	PayloadButtons  PayloadKind = "buttons"
)

// Payload is the closed set of outbound message variants. Only types in this package
// implement it.
type Payload interface {
	Kind() PayloadKind
	// Preview returns a short human readable summary for logs.
	Preview() string
	isPayload()
}

// TextPayload is a plain text message, optionally quoting a previous message.
type TextPayload struct {
	Body  string
	Quote string // id of the message to quote
}

// MediaPayload is a media file with an optional caption.
type MediaPayload struct {
	Caption string
	URL     string
	Format  string // e.g. "ptt" to deliver audio as a voice note
}

// LocationPayload is a location pin resolved from an address or coordinates.
type LocationPayload struct {
	Address     string
	Coordinates []float64
}

// ContactCard is a single shared contact.
type ContactCard struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// ContactsPayload shares one or more contact cards.
type ContactsPayload struct {
	Cards []ContactCard
}

// ReactionPayload reacts with an emoji to an existing message.
type ReactionPayload struct {
	Emoji     string
	MessageID string
}

// ListRow is a selectable row of an interactive list.
type ListRow struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// ListSection groups list rows under a title.
type ListSection struct {
	Title string    `json:"title"`
	Rows  []ListRow `json:"rows"`
}

// ListPayload is an interactive list message.
type ListPayload struct {
	Description string
	Title       string
	Button      string
	Footer      string
	Sections    []ListSection
}

// Button is a quick reply button.
type Button struct {
	Text string `json:"text"`
}

// ButtonsPayload is a text message with quick reply buttons.
type ButtonsPayload struct {
	Body    string
	Header  string
	Footer  string
	Buttons []Button
}

func (TextPayload) Kind() PayloadKind     { return PayloadText }
func (MediaPayload) Kind() PayloadKind    { return PayloadMedia }
func (LocationPayload) Kind() PayloadKind { return PayloadLocation }
func (ContactsPayload) Kind() PayloadKind { return PayloadContacts }
func (ReactionPayload) Kind() PayloadKind { return PayloadReaction }
func (ListPayload) Kind() PayloadKind     { return PayloadList }
func (ButtonsPayload) Kind() PayloadKind  { return PayloadButtons }

func (p TextPayload) Preview() string     { return p.Body }
func (p MediaPayload) Preview() string    { return p.Caption + " " + p.URL }
func (p LocationPayload) Preview() string { return p.Address }
func (p ContactsPayload) Preview() string { return "<contacts>" }
func (p ReactionPayload) Preview() string { return p.Emoji }
func (p ListPayload) Preview() string     { return p.Description }
func (p ButtonsPayload) Preview() string  { return p.Body }

func (TextPayload) isPayload()     {}
func (MediaPayload) isPayload()    {}
func (LocationPayload) isPayload() {}
func (ContactsPayload) isPayload() {}
func (ReactionPayload) isPayload() {}
func (ListPayload) isPayload()     {}
func (ButtonsPayload) isPayload()  {}

// Outbound is a payload addressed to a recipient through a gateway device.
type Outbound struct {
	Phone     string
	Device    string
	Payload   Payload
	DeliverAt *time.Time             // deferred delivery handled by the gateway
	Fields    map[string]interface{} // extra gateway fields forwarded as-is
}

// DeliveryResult is the gateway's acknowledgement of an accepted message.
type DeliveryResult struct {
	ID        string     `json:"id"`
	Status    string     `json:"status"`
	Phone     string     `json:"phone,omitempty"`
	DeliverAt *time.Time `json:"deliverAt,omitempty"`
}

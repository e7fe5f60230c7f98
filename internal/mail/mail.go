package mail

import "context"

// Message is one outbound plain-text email.
type Message struct {
	From    string // Authenticated sender address
	To      string // Single recipient address
	Subject string
	Body    string
}

// Result is a provider's verdict on one message. Accepted=false means the
// provider rejected the message; transport-level problems surface as an
// error from Send instead.
type Result struct {
	Accepted bool
	Detail   string // Provider status text, may be empty
}

// Sender defines the capability for delivering one message.
// Implementations can use Microsoft Graph, SMTP, etc. The dispatch loop
// treats the accept/reject response as authoritative and does not retry.
type Sender interface {
	Send(ctx context.Context, msg *Message) (*Result, error)
}

// Identity is a verified operator identity returned by the directory.
type Identity struct {
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Department  string `json:"department"`
}

// UserVerifier resolves an operator email against the provider directory.
// Used before a batch starts; a failure here refuses the batch rather than
// aborting one mid-flight.
type UserVerifier interface {
	LookupUser(ctx context.Context, email string) (*Identity, error)
}

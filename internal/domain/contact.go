package domain

// Contact is the canonical recipient record produced by normalization.
// Email and Name are always non-empty; a source row that cannot resolve
// both never becomes a Contact.
type Contact struct {
	Email      string `json:"email"`
	Name       string `json:"name"`
	Company    string `json:"company"`
	Department string `json:"department"`
	Position   string `json:"position"`
}

// Template is the operator-authored message shape. Subject and body may
// contain {identifier} placeholders.
type Template struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// RenderedMessage is one contact's fully expanded message.
type RenderedMessage struct {
	Recipient Contact `json:"recipient"`
	Subject   string  `json:"subject"`
	Body      string  `json:"body"`
}

// DispatchResult is one entry of a batch's result ledger. Index is 1-based
// and stable; entries are appended in send order, one per rendered message.
type DispatchResult struct {
	Index          int    `json:"index"`
	RecipientEmail string `json:"email"`
	Success        bool   `json:"success"`
	Message        string `json:"message"`
}

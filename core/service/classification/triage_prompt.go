package classification

import "fmt"

// PromptStyle selects the instruction template sent to the model.
type PromptStyle int

const (
	// PromptFormal asks for exactly one category. Used for uploaded batches.
	PromptFormal PromptStyle = iota
	// PromptConversational also lets the model say the ticket fits no category.
	// Used for tickets arriving by mail.
	PromptConversational
)

const categoryDefinitions = `Categories:
1. Infra: Issues related to servers, networks, data centers, and hardware (e.g., server downtime, network outages, hardware issues).
2. Application Team: Issues related to application bugs, coding errors, and user experience problems (e.g., login failures, incorrect data display, or feature malfunctions).
3. Access Management: Requests for granting access to systems, tools, or accounts (e.g., new employee account setup, access requests).

Examples:
- Infra: "Server Downtime in Data Center 1. Several servers are unreachable."
- Application Team: "Bug in User Authentication Module causing login errors."
- Access Management: "Access request for a new employee to systems like email or CRM."`

const formalTemplate = `You are an AI assistant for classifying tickets into appropriate teams based on their descriptions.

` + categoryDefinitions + `

Carefully read the description below and classify it into one of the above categories.

Ticket Description: %s
`

const conversationalTemplate = `You are an AI assistant for classifying tickets into appropriate teams based on their descriptions and reply like a human; our aim is to help the client.

` + categoryDefinitions + `

Carefully read the description below and classify it into one of the above categories. If it does not match any of them, say that it does not match.

Ticket Description: %s
`

// BuildPrompt substitutes the description into the template for style.
func BuildPrompt(style PromptStyle, description string) string {
	if style == PromptConversational {
		return fmt.Sprintf(conversationalTemplate, description)
	}
	return fmt.Sprintf(formalTemplate, description)
}

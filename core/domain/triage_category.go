package domain

// TicketCategory is the support team a ticket belongs to.
type TicketCategory string

const (
	CategoryInfra            TicketCategory = "infra"             // Servers, networks, data centers, hardware
	CategoryApplicationTeam  TicketCategory = "application_team"  // Application bugs, coding errors, UX problems
	CategoryAccessManagement TicketCategory = "access_management" // Access grants, account setup
	CategoryUnknown          TicketCategory = "unknown"           // Not a destination; triggers the fallback policy
)

// Categories lists the routable categories in taxonomy priority order.
var Categories = []TicketCategory{
	CategoryInfra,
	CategoryApplicationTeam,
	CategoryAccessManagement,
}

// Label returns the human-readable category name used in reports.
func (c TicketCategory) Label() string {
	switch c {
	case CategoryInfra:
		return "Infra"
	case CategoryApplicationTeam:
		return "Application Team"
	case CategoryAccessManagement:
		return "Access Management"
	default:
		return "Unknown"
	}
}

// ReplyPhrase returns the sentence used when answering a ticket by mail.
func (c TicketCategory) ReplyPhrase() string {
	switch c {
	case CategoryInfra:
		return "Email to Infra team"
	case CategoryApplicationTeam:
		return "Email to Application Team"
	case CategoryAccessManagement:
		return "Email to Access Management team"
	default:
		return ""
	}
}

// IsKnown reports whether c is one of the routable categories.
func (c TicketCategory) IsKnown() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

func (c TicketCategory) String() string {
	return string(c)
}

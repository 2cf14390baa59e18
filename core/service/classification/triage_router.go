package classification

import "ticket_triage/core/domain"

// FallbackDestination is what an unroutable ticket maps to.
const FallbackDestination = "cannot route automatically"

// RoutingTable holds the per-deployment destination addresses.
type RoutingTable struct {
	Infra            string
	ApplicationTeam  string
	AccessManagement string
}

// DefaultRoutingTable returns the placeholder addresses used when nothing is configured.
func DefaultRoutingTable() RoutingTable {
	return RoutingTable{
		Infra:            "infra@example.com",
		ApplicationTeam:  "app_team@example.com",
		AccessManagement: "access_mgmt@example.com",
	}
}

// Router maps categories to destinations. It holds no mutable state.
type Router struct {
	table RoutingTable
}

// NewRouter creates a router; empty table entries fall back to the defaults.
func NewRouter(table RoutingTable) *Router {
	defaults := DefaultRoutingTable()
	if table.Infra == "" {
		table.Infra = defaults.Infra
	}
	if table.ApplicationTeam == "" {
		table.ApplicationTeam = defaults.ApplicationTeam
	}
	if table.AccessManagement == "" {
		table.AccessManagement = defaults.AccessManagement
	}
	return &Router{table: table}
}

// Route resolves a category. CategoryUnknown, and anything outside the
// taxonomy, is not routable and maps to FallbackDestination.
func (r *Router) Route(category domain.TicketCategory) domain.RoutingDecision {
	decision := domain.RoutingDecision{
		Category: category,
		Label:    category.Label(),
		Routable: true,
	}
	switch category {
	case domain.CategoryInfra:
		decision.Destination = r.table.Infra
	case domain.CategoryApplicationTeam:
		decision.Destination = r.table.ApplicationTeam
	case domain.CategoryAccessManagement:
		decision.Destination = r.table.AccessManagement
	default:
		decision.Category = domain.CategoryUnknown
		decision.Label = domain.CategoryUnknown.Label()
		decision.Destination = FallbackDestination
		decision.Routable = false
	}
	return decision
}

// RouteTicket resolves category and binds the decision to t.
func (r *Router) RouteTicket(t domain.Ticket, category domain.TicketCategory) domain.RoutingDecision {
	return r.Route(category).ForTicket(t)
}

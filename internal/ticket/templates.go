package ticket

// TaskTemplate is one task pre-defined for a service type.
type TaskTemplate struct {
	Name  string
	Order int
}

// TaskTemplatesFor returns the task checklist a new ticket of the given
// service type starts with.
func TaskTemplatesFor(serviceType string) []TaskTemplate {
	switch serviceType {
	case "LOGO":
		return []TaskTemplate{
			{Name: "Analyze brief", Order: 1},
			{Name: "Research and moodboard", Order: 2},
			{Name: "Initial concepts (3 versions)", Order: 3},
			{Name: "Revision 1", Order: 4},
			{Name: "Refinement", Order: 5},
			{Name: "Final revision", Order: 6},
			{Name: "Deliver final files", Order: 7},
		}
	case "WEBSITE":
		return []TaskTemplate{
			{Name: "Analyze brief", Order: 1},
			{Name: "Information architecture", Order: 2},
			{Name: "Wireframes", Order: 3},
			{Name: "UI design", Order: 4},
			{Name: "Client review", Order: 5},
			{Name: "Final adjustments", Order: 6},
			{Name: "Deliver files", Order: 7},
		}
	case "BRANDING":
		return []TaskTemplate{
			{Name: "Analyze brief", Order: 1},
			{Name: "Brand research", Order: 2},
			{Name: "Visual identity concepts", Order: 3},
			{Name: "Applications and mockups", Order: 4},
			{Name: "Client review", Order: 5},
			{Name: "Brand guidelines", Order: 6},
			{Name: "Deliver final files", Order: 7},
		}
	default:
		return []TaskTemplate{
			{Name: "Analyze brief", Order: 1},
			{Name: "First draft", Order: 2},
			{Name: "Client review", Order: 3},
			{Name: "Final delivery", Order: 4},
		}
	}
}

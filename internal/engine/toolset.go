package engine

// ToolSet specifies which categories of tools to include in the registry.
type ToolSet struct {
	WorkItems bool // create/update/delete work items, status changes, search
	Notes     bool // create/update/delete notes, search
}

// FullToolSet enables every tool category.
func FullToolSet() ToolSet {
	return ToolSet{WorkItems: true, Notes: true}
}

package domain

// Tag is a selectable entry of the tag catalog.
type Tag struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Category is a selectable task category.
type Category struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// DefaultTags is the catalog offered when no external tag source is configured.
func DefaultTags() []Tag {
	return []Tag{
		{Value: "react", Label: "React"},
		{Value: "angular", Label: "Angular"},
		{Value: "vue", Label: "Vue"},
		{Value: "svelte", Label: "Svelte"},
		{Value: "ember", Label: "Ember"},
	}
}

// Categories returns the fixed category enumeration.
func Categories() []Category {
	return []Category{
		{Value: "1", Label: "Category 1"},
		{Value: "2", Label: "Category 2"},
		{Value: "3", Label: "Category 3"},
	}
}

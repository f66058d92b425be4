package invest

// Sample is a ready-made story for the form and the samples command.
type Sample struct {
	Title string `json:"title" yaml:"title"`
	Story string `json:"story" yaml:"story"`
}

var Samples = []Sample{
	{Title: "Order history", Story: "As a customer, I want to view my order history so that I can track my purchases"},
	{Title: "Login", Story: "As a user, I want a login feature"},
	{Title: "Analytics", Story: "As a product manager, I want to see analytics so that I can make data-driven decisions"},
}

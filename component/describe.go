package component

// Description is what a component self-reports for the startup summary.
type Description struct {
	// Name is the display name, like "HTTP Server". Falls back to the
	// component's Name() when empty.
	Name string
	// Type buckets the component in the summary: "server", "keystore",
	// "verifier".
	Type string
	// Details is a one-liner, like the service ID or a key count.
	Details string
	// Port is the primary listen port, 0 when the component has none.
	Port int
}

// Describable marks components that add themselves to the summary's
// infrastructure section.
type Describable interface {
	Describe() Description
}

// Route is one registered HTTP operation for the summary's route tree.
type Route struct {
	Method  string
	Path    string
	Handler string
}

// RouteProvider marks server components that report their route table.
type RouteProvider interface {
	Routes() []Route
}

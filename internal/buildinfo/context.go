// Package buildinfo carries build-time metadata that is not user configuration
package buildinfo

// UnknownValue is reported for metadata that was not injected at build time
const UnknownValue = "unknown"

// Values injected with -ldflags "-X github.com/orchidlab/labpredict/internal/buildinfo.version=..."
var (
	version   string
	buildDate string
)

// Context contains build-time metadata. It is created once at startup and
// passed to the components that report a version.
type Context struct {
	version   string
	buildDate string
}

// NewContext creates a build context from explicit values
func NewContext(version, buildDate string) *Context {
	return &Context{version: version, buildDate: buildDate}
}

// Current returns the context injected into this binary at link time
func Current() *Context {
	return NewContext(version, buildDate)
}

// Version returns the release version
func (c *Context) Version() string {
	if c == nil || c.version == "" {
		return UnknownValue
	}
	return c.version
}

// BuildDate returns the build timestamp
func (c *Context) BuildDate() string {
	if c == nil || c.buildDate == "" {
		return UnknownValue
	}
	return c.buildDate
}

// Release is the identifier used for error reports, e.g. labpredict@1.4.0
func (c *Context) Release() string {
	return "labpredict@" + c.Version()
}

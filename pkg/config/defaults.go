package config

// Logging defaults.
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// Output defaults.
const (
	DefaultColor      = ColorAuto
	DefaultTableStyle = "light"
	DefaultMaxRows    = 0
)

// Tracing defaults.
const (
	DefaultOTLPEndpoint = ""
	DefaultOTLPInsecure = false
	DefaultSampleRatio  = 1.0
)

// Color modes.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// Log formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// TableStyles lists the accepted output.table_style values.
var TableStyles = []string{"light", "rounded", "bold", "double", "ascii"}

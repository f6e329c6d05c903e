package multiclient

import "errors"

// Sentinel errors for every failure class the client can report. Routing
// errors are raised by dispatch before any session I/O happens; use errors.Is
// to branch on the class and the message for the offending names.
var (
	// ErrInvalidConfig marks a malformed or schema-invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNotConnected is returned when an operation requires a connected
	// client but Connect has not been called (or Close already ran).
	ErrNotConnected = errors.New("client not connected")

	// ErrAlreadyConnected is returned by Connect when the client is already
	// inside a connected epoch. Re-entry is not supported; Close first.
	ErrAlreadyConnected = errors.New("client already connected")

	// ErrUnknownServer marks a reference to a server name that is not part
	// of the connected set.
	ErrUnknownServer = errors.New("unknown server")

	// ErrUnknownTool marks an auto-routed tool name with no routing entry.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrUnknownPrompt marks an auto-routed prompt name with no routing entry.
	ErrUnknownPrompt = errors.New("unknown prompt")

	// ErrServerHasNoTools is returned when an explicit server advertised no
	// tools at connect time.
	ErrServerHasNoTools = errors.New("server has no tools")

	// ErrServerHasNoPrompts is returned when an explicit server advertised
	// no prompts at connect time.
	ErrServerHasNoPrompts = errors.New("server has no prompts")

	// ErrToolNotInServer is returned when an explicit server has tools but
	// not the requested one.
	ErrToolNotInServer = errors.New("tool not found in server")

	// ErrPromptNotInServer is returned when an explicit server has prompts
	// but not the requested one.
	ErrPromptNotInServer = errors.New("prompt not found in server")

	// ErrAmbiguousResource is returned for a resource read whose URI carries
	// no server namespace and no explicit server name was supplied.
	ErrAmbiguousResource = errors.New("must specify server_name")

	// ErrInvalidLoggingLevel marks a logging level outside the MCP set.
	ErrInvalidLoggingLevel = errors.New("invalid logging level")
)

package instrument

import (
	"encoding/json"
	"fmt"
)

// Op enumerates the closed set of instrument-directed operations. The
// Manager routes commands without interpreting payload semantics; only the
// target instrument gives Name/Value/Verb meaning.
type Op int

const (
	// OpStart begins acquisition/operation
	OpStart Op = iota
	// OpStop ends acquisition/operation
	OpStop
	// OpSetParameter sets a named parameter from Value
	OpSetParameter
	// OpGetParameter reads a named parameter into the response Value
	OpGetParameter
	// OpCustom is an instrument-specific verb with opaque payload
	OpCustom
	// OpShutdown asks the instrument task to terminate gracefully
	OpShutdown
	// OpRecover asks an instrument in a recoverable error state to
	// reinitialize
	OpRecover
)

// String returns the string representation of the operation
func (o Op) String() string {
	switch o {
	case OpStart:
		return "start"
	case OpStop:
		return "stop"
	case OpSetParameter:
		return "set_parameter"
	case OpGetParameter:
		return "get_parameter"
	case OpCustom:
		return "custom"
	case OpShutdown:
		return "shutdown"
	case OpRecover:
		return "recover"
	default:
		return "unknown"
	}
}

// Command is one instrument-directed operation. Name is set for parameter
// ops, Verb and Value for custom ops.
type Command struct {
	Op    Op
	Name  string
	Value json.RawMessage
	Verb  string
}

// Start creates a Start command
func Start() Command { return Command{Op: OpStart} }

// Stop creates a Stop command
func Stop() Command { return Command{Op: OpStop} }

// Shutdown creates a Shutdown command
func Shutdown() Command { return Command{Op: OpShutdown} }

// Recover creates a Recover command
func Recover() Command { return Command{Op: OpRecover} }

// SetParameter creates a SetParameter command. The value is marshalled to
// JSON; unmarshallable values yield a command with a null payload, which the
// target instrument rejects.
func SetParameter(name string, value any) Command {
	raw, err := json.Marshal(value)
	if err != nil {
		raw = json.RawMessage("null")
	}
	return Command{Op: OpSetParameter, Name: name, Value: raw}
}

// GetParameter creates a GetParameter command
func GetParameter(name string) Command {
	return Command{Op: OpGetParameter, Name: name}
}

// Custom creates an instrument-specific command
func Custom(verb string, payload any) Command {
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = json.RawMessage("null")
	}
	return Command{Op: OpCustom, Verb: verb, Value: raw}
}

// ResponseKind enumerates reply variants
type ResponseKind int

const (
	// ResponseOk indicates the command completed with no payload
	ResponseOk ResponseKind = iota
	// ResponseValue indicates the command completed with a value payload
	ResponseValue
	// ResponseErr indicates the device rejected or failed the command
	ResponseErr
)

// Response is the reply to one Command.
type Response struct {
	Kind  ResponseKind
	Value json.RawMessage
	Err   string
}

// Ok creates a success response with no payload
func Ok() Response { return Response{Kind: ResponseOk} }

// Value creates a success response carrying a JSON payload
func Value(v any) Response {
	raw, err := json.Marshal(v)
	if err != nil {
		return Errf("marshal response value: %v", err)
	}
	return Response{Kind: ResponseValue, Value: raw}
}

// Err creates an error response from an error
func Err(err error) Response {
	return Response{Kind: ResponseErr, Err: err.Error()}
}

// Errf creates an error response from a format string
func Errf(format string, args ...any) Response {
	return Response{Kind: ResponseErr, Err: fmt.Sprintf(format, args...)}
}

package models

import "strings"

// CommandType enumerates supported counselor command categories.
type CommandType string

const (
	CommandStart   CommandType = "start"
	CommandScan    CommandType = "scan"
	CommandStatus  CommandType = "status"
	CommandMissing CommandType = "missing"
	CommandClose   CommandType = "close"
	CommandCancel  CommandType = "cancel"
	CommandHelp    CommandType = "help"
	CommandUnknown CommandType = "unknown"
)

var knownCommands = map[string]CommandType{
	string(CommandStart):   CommandStart,
	string(CommandScan):    CommandScan,
	string(CommandStatus):  CommandStatus,
	string(CommandMissing): CommandMissing,
	string(CommandClose):   CommandClose,
	string(CommandCancel):  CommandCancel,
	string(CommandHelp):    CommandHelp,
}

// Command represents a parsed counselor instruction extracted from a text message.
type Command struct {
	Type CommandType
	Raw  string
	Args []string
}

// ArgString joins the arguments back into the original spacing-collapsed text.
func (c Command) ArgString() string {
	return strings.Join(c.Args, " ")
}

// ParseCommand derives a Command from free-form text. Only the command word
// is case-folded; arguments keep their case because camper ids and QR
// payloads are matched exactly.
func ParseCommand(message string) Command {
	cmd := Command{Raw: message, Type: CommandUnknown}

	tokens := strings.Fields(message)
	if len(tokens) == 0 {
		return cmd
	}

	head := strings.ToLower(strings.TrimPrefix(tokens[0], "/"))
	if t, ok := knownCommands[head]; ok {
		cmd.Type = t
	}

	if len(tokens) > 1 {
		cmd.Args = tokens[1:]
	}

	return cmd
}

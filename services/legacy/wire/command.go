package wire

// Command is the closed set of message commands the engine understands.
// Anything else decodes as CmdUnknown and keeps its raw name.
type Command uint8

const (
	CmdUnknown Command = iota
	CmdVersion
	CmdVerAck
	CmdPing
	CmdPong
	CmdInv
	CmdGetData
	CmdNotFound
	CmdGetHeaders
	CmdGetBlocks
	CmdHeaders
	CmdBlock
	CmdTx
	CmdMemPool
	CmdGetAddr
	CmdAddr
	CmdReject
	CmdSendHeaders
	CmdFeeFilter
	CmdGetCFilters
	CmdCFilter
	CmdGetCFHeaders
	CmdCFHeaders
	CmdGetCFCheckpt
	CmdCFCheckpt

	numCommands
)

var commandNames = [numCommands]string{
	CmdUnknown:      "",
	CmdVersion:      "version",
	CmdVerAck:       "verack",
	CmdPing:         "ping",
	CmdPong:         "pong",
	CmdInv:          "inv",
	CmdGetData:      "getdata",
	CmdNotFound:     "notfound",
	CmdGetHeaders:   "getheaders",
	CmdGetBlocks:    "getblocks",
	CmdHeaders:      "headers",
	CmdBlock:        "block",
	CmdTx:           "tx",
	CmdMemPool:      "mempool",
	CmdGetAddr:      "getaddr",
	CmdAddr:         "addr",
	CmdReject:       "reject",
	CmdSendHeaders:  "sendheaders",
	CmdFeeFilter:    "feefilter",
	CmdGetCFilters:  "getcfilters",
	CmdCFilter:      "cfilter",
	CmdGetCFHeaders: "getcfheaders",
	CmdCFHeaders:    "cfheaders",
	CmdGetCFCheckpt: "getcfcheckpt",
	CmdCFCheckpt:    "cfcheckpt",
}

var commandsByName = func() map[string]Command {
	m := make(map[string]Command, numCommands)

	for c := CmdVersion; c < numCommands; c++ {
		m[commandNames[c]] = c
	}

	return m
}()

// String returns the wire name of the command, "unknown" for CmdUnknown.
func (c Command) String() string {
	if c == CmdUnknown || c >= numCommands {
		return "unknown"
	}

	return commandNames[c]
}

// ParseCommand maps a wire name onto a Command. Unrecognised names map to
// CmdUnknown.
func ParseCommand(name string) Command {
	if c, ok := commandsByName[name]; ok {
		return c
	}

	return CmdUnknown
}

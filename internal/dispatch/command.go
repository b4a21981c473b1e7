// Package dispatch implements the command table and per-command handlers: it
// validates an incoming request frame against a fixed arity/write/reply
// table, mutates the keyspace for write commands, and reports what the
// caller (the event loop) needs to do next — reply, propagate, register a
// new replica, or enqueue a WAIT. It owns no I/O itself; everything here
// is pure enough to unit test without a socket.
package dispatch

import "strings"

// command names, held as a single canonical uppercase form.
const (
	cmdPing     = "PING"
	cmdEcho     = "ECHO"
	cmdSet      = "SET"
	cmdGet      = "GET"
	cmdDel      = "DEL"
	cmdKeys     = "KEYS"
	cmdConfig   = "CONFIG"
	cmdInfo     = "INFO"
	cmdReplConf = "REPLCONF"
	cmdPsync    = "PSYNC"
	cmdWait     = "WAIT"
)

// arityRange is an inclusive [min, max] bound on total array elements
// (command name included).
type arityRange struct {
	min, max int
}

// commandSpec describes one entry of the dispatch table.
type commandSpec struct {
	arity            arityRange
	write            bool
	replyToUpstream  bool
	primaryOnly      bool
}

var commandTable = map[string]commandSpec{
	cmdPing:     {arity: arityRange{1, 1}},
	cmdEcho:     {arity: arityRange{2, 2}},
	cmdSet:      {arity: arityRange{3, 5}, write: true},
	cmdGet:      {arity: arityRange{2, 2}},
	cmdDel:      {arity: arityRange{2, 2}, write: true},
	cmdKeys:     {arity: arityRange{2, 2}},
	cmdConfig:   {arity: arityRange{3, 3}},
	cmdInfo:     {arity: arityRange{2, 2}, replyToUpstream: true},
	cmdReplConf: {arity: arityRange{3, 10}, replyToUpstream: true},
	cmdPsync:    {arity: arityRange{3, 3}, primaryOnly: true},
	cmdWait:     {arity: arityRange{3, 3}, primaryOnly: true},
}

// lookupCommand normalizes name to upper case and returns its spec.
func lookupCommand(name []byte) (canonical string, spec commandSpec, ok bool) {
	canonical = strings.ToUpper(string(name))
	spec, ok = commandTable[canonical]
	return canonical, spec, ok
}

func checkArity(spec commandSpec, argc int) bool {
	return argc >= spec.arity.min && argc <= spec.arity.max
}

// Package codegen turns LIR into command text: it allocates registers
// onto the scoreboard namespace, optionally strips function
// identifiers, and emits one command line per instruction.
package codegen

import (
	"fmt"

	"github.com/CarbonSmasher/dpc/internal/ir"
)

// Objectives owned by the compiler.
const (
	// RegObjective holds working registers.
	RegObjective = "_r"
	// LitObjective holds materialized literal constants.
	LitObjective = "_l"
)

// RegStorage is the command storage namespace holding NBT-typed
// registers.
const RegStorage = "dpc:r"

// FormatRegHolder names a working register's fake player.
func FormatRegHolder(num uint32, scope string) string {
	return fmt.Sprintf("%%r%s.%d", ir.CleanFuncID(scope), num)
}

// FormatLitHolder names a literal slot's fake player.
func FormatLitHolder(val int32) string {
	return fmt.Sprintf("%%l%d", val)
}

// FormatArgHolder names a function argument slot's fake player.
func FormatArgHolder(idx int, fn string) string {
	return fmt.Sprintf("%%a%s.%d", ir.CleanFuncID(fn), idx)
}

// FormatRetHolder names a function return slot's fake player.
func FormatRetHolder(idx int, fn string) string {
	return fmt.Sprintf("%%R%s.%d", ir.CleanFuncID(fn), idx)
}

// FormatLocalPath names an NBT register's storage path.
func FormatLocalPath(num uint32, scope string) string {
	return fmt.Sprintf("r%s.%d", ir.CleanFuncID(scope), num)
}

// FormatArgLocalPath names an NBT argument slot's storage path.
func FormatArgLocalPath(idx int, fn string) string {
	return fmt.Sprintf("a%s.%d", ir.CleanFuncID(fn), idx)
}

// FormatRetLocalPath names an NBT return slot's storage path.
func FormatRetLocalPath(idx int, fn string) string {
	return fmt.Sprintf("R%s.%d", ir.CleanFuncID(fn), idx)
}

// resourceCharset are the characters legal in resource locations,
// used as digits when generating stripped names.
var resourceCharset = []rune("abcdefghijklmnopqrstuvwxyz0123456789_-.")

// StrippedName encodes a counter in the shortest resource-location
// text: index 0 is the empty string, then single characters, then
// pairs, least significant digit first.
func StrippedName(idx uint32) string {
	if idx == 0 {
		return ""
	}
	n := int(idx) + 1
	out := make([]rune, 0, 4)
	first := true
	for n != 0 {
		if first {
			n--
			first = false
		}
		out = append(out, resourceCharset[n%len(resourceCharset)])
		n /= len(resourceCharset)
	}
	return string(out)
}

// FunctionPath maps a function identifier to its datapack file path.
func FunctionPath(id string) string {
	ns, path := splitID(id)
	return ns + "/functions/" + path + ".mcfunction"
}

func splitID(id string) (ns, path string) {
	for i := 0; i < len(id); i++ {
		if id[i] == ':' {
			return id[:i], id[i+1:]
		}
	}
	return "dpc", id
}

// Package testkit holds invariant checks shared by the test suite.
package testkit

import (
	"fmt"
	"strings"

	"github.com/CarbonSmasher/dpc/internal/codegen"
)

// CheckOutputInvariants runs a minimal set of invariants on an
// emitted datapack:
// 1) every function body line is a single non-empty command
// 2) no emitted command references a function outside the mapping
// 3) every load-tag entry resolves to an emitted function
func CheckOutputInvariants(pack *codegen.Datapack) error {
	if pack == nil {
		return fmt.Errorf("nil datapack")
	}

	for id, fn := range pack.Functions {
		if id == "" {
			return fmt.Errorf("empty function identifier in output")
		}
		for i, line := range fn.Contents {
			if line == "" {
				return fmt.Errorf("%s: line %d is empty", id, i)
			}
			if strings.ContainsRune(line, '\n') {
				return fmt.Errorf("%s: line %d holds more than one command", id, i)
			}
			if strings.HasSuffix(line, " ") {
				return fmt.Errorf("%s: line %d has trailing whitespace", id, i)
			}
		}
	}

	// Called functions must exist in the output mapping.
	for id, fn := range pack.Functions {
		for i, line := range fn.Contents {
			target, ok := calledFunction(line)
			if !ok {
				continue
			}
			if _, exists := pack.Functions[target]; !exists {
				return fmt.Errorf("%s: line %d calls unknown function %s", id, i, target)
			}
		}
	}

	for tag, entries := range pack.Tags {
		for _, entry := range entries {
			if _, ok := pack.Functions[entry]; !ok {
				return fmt.Errorf("tag %s references unknown function %s", tag, entry)
			}
		}
	}
	return nil
}

// calledFunction extracts the target of a plain or execute-wrapped
// function command.
func calledFunction(line string) (string, bool) {
	rest := line
	if idx := strings.Index(rest, " run function "); idx >= 0 {
		rest = rest[idx+len(" run function "):]
	} else if strings.HasPrefix(rest, "function ") {
		rest = rest[len("function "):]
	} else {
		return "", false
	}
	target, _, _ := strings.Cut(rest, " ")
	return target, target != ""
}

// Package driver orchestrates the pipeline: IR lowering, the
// optimizer tiers, LIR lowering, and codegen, in a fixed and
// deterministic order.
package driver

import (
	"strings"

	"github.com/CarbonSmasher/dpc/internal/codegen"
	"github.com/CarbonSmasher/dpc/internal/ir"
	"github.com/CarbonSmasher/dpc/internal/lir"
	"github.com/CarbonSmasher/dpc/internal/mir"
	"github.com/CarbonSmasher/dpc/internal/parse"
	"github.com/CarbonSmasher/dpc/internal/passes"
	"github.com/CarbonSmasher/dpc/internal/project"
)

// Settings select which tiers of the pipeline run.
type Settings struct {
	PackName  string
	MIRPasses bool
	LIRPasses bool
	Strip     codegen.StripMode
}

// FromProject converts project settings into pipeline settings.
func FromProject(p project.Settings) Settings {
	strip := codegen.StripNone
	if p.StripMode == "unstable" {
		strip = codegen.StripUnstable
	}
	return Settings{
		PackName:  p.Name,
		MIRPasses: p.MIRPasses,
		LIRPasses: p.LIRPasses,
		Strip:     strip,
	}
}

// Compile lowers an IR module all the way to emitted command text.
// The compiler is pure: the same module and settings always produce
// the same output mapping.
func Compile(mod *ir.Module, settings Settings) (*codegen.Datapack, error) {
	mirMod, err := mir.LowerModule(mod)
	if err != nil {
		return nil, err
	}

	if settings.MIRPasses {
		if err := passes.RunMIR(mirMod); err != nil {
			return nil, err
		}
	}

	lirMod, err := lir.LowerModule(mirMod)
	if err != nil {
		return nil, err
	}

	if settings.LIRPasses {
		if err := passes.RunLIR(lirMod); err != nil {
			return nil, err
		}
	}

	// Shared argument slots make recursion unsound; refuse to
	// allocate registers for such a module.
	if err := passes.CheckRecursion(lirMod); err != nil {
		return nil, err
	}

	return codegen.Generate(lirMod, codegen.Settings{
		PackName: settings.PackName,
		Strip:    settings.Strip,
	})
}

// CompileText parses IR text and compiles it. The first line may be a
// control comment choosing pass sets, e.g. `# mir_passes lir_passes`.
func CompileText(src string, settings Settings) (*codegen.Datapack, error) {
	settings = applyControlComment(src, settings)
	p := parse.NewParser()
	if err := p.Parse(src); err != nil {
		return nil, err
	}
	return Compile(p.Finish(), settings)
}

// applyControlComment reads the leading control comment of a test
// input. An absent comment leaves the passed settings alone.
func applyControlComment(src string, settings Settings) Settings {
	line, _, _ := strings.Cut(strings.TrimLeft(src, " \n\t"), "\n")
	if !strings.HasPrefix(line, "#") {
		return settings
	}
	settings.MIRPasses = strings.Contains(line, "mir_passes")
	settings.LIRPasses = strings.Contains(line, "lir_passes")
	if strings.Contains(line, "strip_unstable") {
		settings.Strip = codegen.StripUnstable
	}
	return settings
}

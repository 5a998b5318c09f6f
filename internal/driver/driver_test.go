package driver

import (
	"strings"
	"testing"

	"github.com/CarbonSmasher/dpc/internal/codegen"
	"github.com/CarbonSmasher/dpc/internal/testkit"
)

func defaultSettings() Settings {
	return Settings{PackName: "dpc", MIRPasses: true, LIRPasses: true}
}

func compile(t *testing.T, src string) *codegen.Datapack {
	t.Helper()
	pack, err := CompileText(src, defaultSettings())
	if err != nil {
		t.Fatal(err)
	}
	return pack
}

func TestCompileIsDeterministic(t *testing.T) {
	src := `# mir_passes lir_passes
@preserve "test:main" {
	let x: score = 0;
	ife gte(sco in o, 1) {
		say "pos";
		say "still pos";
	} {
		say "neg";
	}
	while lt(%x, 3) {
		add %x, 1;
	}
	set sco out o, %x;
}
`
	pack := compile(t, src)
	if err := testkit.CheckOutputInvariants(pack); err != nil {
		t.Fatal(err)
	}
	first := pack.Document()
	second := compile(t, src).Document()
	if first != second {
		t.Errorf("outputs differ:\n%s\n---\n%s", first, second)
	}
}

func TestConstantsFoldThroughThePipeline(t *testing.T) {
	src := `# mir_passes lir_passes
@preserve "test:main" {
	let a: score = 2;
	mul %a, 3;
	set sco out o, %a;
}
`
	pack := compile(t, src)
	lines := pack.Functions["test:main"].Contents
	if len(lines) != 1 || lines[0] != "scoreboard players set out o 6" {
		t.Errorf("got %v, want the folded constant store", lines)
	}
}

func TestUnoptimizedKeepsTheArithmetic(t *testing.T) {
	src := `@preserve "test:main" {
	let a: score = 2;
	mul %a, 3;
	set sco out o, %a;
}
`
	pack, err := CompileText(src, Settings{PackName: "dpc"})
	if err != nil {
		t.Fatal(err)
	}
	doc := pack.Document()
	if !strings.Contains(doc, "*=") {
		t.Errorf("unoptimized output lost the multiply:\n%s", doc)
	}
}

func TestConstantArgCallsFoldWhenInlined(t *testing.T) {
	src := `# mir_passes lir_passes
@preserve "test:main" {
	let out: score = 0;
	call %out run "test:double", 21;
	set sco res o, %out;
}
"test:double" score : score {
	let t: score = &0;
	mul %t, 2;
	retv 0, %t;
}
`
	pack := compile(t, src)
	doc := pack.Document()
	if !strings.Contains(doc, "scoreboard players set res o 42") {
		t.Errorf("constant-argument call did not fold:\n%s", doc)
	}
	if strings.Contains(doc, "function test:double") {
		t.Errorf("single-site call should inline away:\n%s", doc)
	}
}

func TestPreserveSurvivesOptimization(t *testing.T) {
	src := `# mir_passes lir_passes
@preserve "test:main" {
	say "entry";
}
@preserve "test:pinned" {
	say "pinned";
}
"test:unreachable" {
	say "gone";
}
`
	pack := compile(t, src)
	pinned, ok := pack.Functions["test:pinned"]
	if !ok || len(pinned.Contents) == 0 {
		t.Fatal("preserve function missing or empty")
	}
	if _, ok := pack.Functions["test:unreachable"]; ok {
		t.Error("unreachable function survived")
	}
}

func TestNoStripKeepsIdentifier(t *testing.T) {
	src := `# mir_passes lir_passes strip_unstable
@preserve "test:main" {
	callx "test:pinned_name_here";
	callx "test:pinned_name_here";
	callx "test:pinned_name_here";
}
@preserve @no_strip "test:pinned_name_here" {
	say "pinned";
}
`
	pack := compile(t, src)
	if _, ok := pack.Functions["test:pinned_name_here"]; !ok {
		t.Error("no_strip identifier was renamed")
	}
}

func TestManualOrStaysCanonical(t *testing.T) {
	src := `# mir_passes lir_passes
@preserve "fold:manual_or" {
	let b: bool = cond bool(sco p o);
	if bool(sco q o): add %b, 1;
	if gte(%b, 1): set sco out o, 1;
}
`
	pack := compile(t, src)
	lines := pack.Functions["fold:manual_or"].Contents
	stores := 0
	for _, line := range lines {
		if strings.Contains(line, "store success") {
			stores++
		}
	}
	if stores != 1 {
		t.Errorf("manual or should emit exactly one accumulator seed, got %d:\n%s",
			stores, strings.Join(lines, "\n"))
	}
	if len(lines) != 3 {
		t.Errorf("canonical or should be three commands, got %d:\n%s",
			len(lines), strings.Join(lines, "\n"))
	}
}

func TestRecursionIsRejected(t *testing.T) {
	src := `@preserve "test:a" {
	call run "test:b";
}
"test:b" {
	call run "test:a";
}
`
	if _, err := CompileText(src, Settings{PackName: "dpc"}); err == nil {
		t.Fatal("recursive module compiled")
	}
}

func TestControlCommentSelectsPasses(t *testing.T) {
	src := `# nothing here
@preserve "test:main" {
	let a: score = 2;
	mul %a, 3;
	set sco out o, %a;
}
`
	pack, err := CompileText(src, defaultSettings())
	if err != nil {
		t.Fatal(err)
	}
	// The control comment named no tiers, so optimization is off.
	if !strings.Contains(pack.Document(), "*=") {
		t.Error("control comment did not disable the MIR passes")
	}
}

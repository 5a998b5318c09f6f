package passes

// DCEPass removes functions that are never called. Functions marked
// preserve always survive, even unreachable ones.
type DCEPass struct{}

func (*DCEPass) Name() string { return "dce" }

func (p *DCEPass) RunModule(cx *MIRCx) (bool, error) {
	used := map[string]bool{}
	for _, id := range cx.Mod.SortedIDs() {
		for _, in := range cx.Mod.Funcs[id].Instrs {
			forEachCall(in, func(target string) {
				used[target] = true
			})
		}
	}

	changed := false
	for _, id := range cx.Mod.SortedIDs() {
		f := cx.Mod.Funcs[id]
		if f.Interface.Annotations.Preserve {
			continue
		}
		if !used[id] {
			delete(cx.Mod.Funcs, id)
			changed = true
		}
	}
	return changed, nil
}

package translate_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/jac/bytecode"
	jerrors "github.com/wippyai/jac/errors"
	"github.com/wippyai/jac/internal/bcasm"
	"github.com/wippyai/jac/translate"
)

func translateRoot(t *testing.T, root *bcasm.Func, opts translate.Options) *translate.Translation {
	t.Helper()
	tr, err := translate.Translate(context.Background(), (&bcasm.Container{Root: root}).Bytes(), opts)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	return tr
}

func translateErr(root *bcasm.Func, opts translate.Options) error {
	_, err := translate.Translate(context.Background(), (&bcasm.Container{Root: root}).Bytes(), opts)
	return err
}

// counter is `let n = 0; const inc = () => ++n; inc(); return inc();`.
func counter() *bcasm.Func {
	inc := &bcasm.Func{
		Name:        "inc",
		ClosureVars: []bcasm.ClosureVar{{Name: "n", Index: 0, IsLocal: true, Lexical: true}},
		Code: bcasm.NewCode().
			Op(bytecode.OpGetVarRef0).
			Op(bytecode.OpInc).
			Op(bytecode.OpDup).
			Op(bytecode.OpPutVarRef0).
			Op(bytecode.OpReturn),
	}
	return &bcasm.Func{
		Name:     "main",
		Vars:     []bcasm.Var{{Name: "n", Lexical: true}, {Name: "inc"}},
		Children: []*bcasm.Func{inc},
		Code: bcasm.NewCode().
			Op(bytecode.OpPush0).
			Op(bytecode.OpPutLoc0).
			Op(bytecode.OpFClosure8, 0).
			Op(bytecode.OpPutLoc1).
			Op(bytecode.OpGetLoc1).
			Op(bytecode.OpCall0).
			Op(bytecode.OpDrop).
			Op(bytecode.OpGetLoc1).
			Op(bytecode.OpCall0).
			Op(bytecode.OpReturn),
	}
}

func TestTranslate_Counter(t *testing.T) {
	tr := translateRoot(t, counter(), translate.DefaultOptions())

	if len(tr.Funcs) != 2 {
		t.Fatalf("functions = %d", len(tr.Funcs))
	}
	root, inc := tr.Root(), tr.Funcs[1]
	if root.Index != 0 || root.Parent != bytecode.NoFunc || root.Name != "main" {
		t.Errorf("root = %d parent %d %q", root.Index, root.Parent, root.Name)
	}
	if diff := cmp.Diff([]bytecode.FuncIndex{1}, root.Children); diff != "" {
		t.Errorf("children (-want +got):\n%s", diff)
	}
	if inc.Parent != 0 || inc.Depth != 1 {
		t.Errorf("inc parent %d depth %d", inc.Parent, inc.Depth)
	}

	wantSlots := []translate.Slot{{Kind: translate.SlotCell, Env: 0}, {Kind: translate.SlotRegister}}
	if diff := cmp.Diff(wantSlots, root.Slots); diff != "" {
		t.Errorf("root slots (-want +got):\n%s", diff)
	}
	if root.EnvSlots() != 1 || inc.EnvSlots() != 1 {
		t.Errorf("env slots root=%d inc=%d", root.EnvSlots(), inc.EnvSlots())
	}

	wantCaps := []translate.Capture{{Kind: translate.CaptureLocal, Source: 0, ParentSlot: 0}}
	if diff := cmp.Diff(wantCaps, inc.Captures); diff != "" {
		t.Errorf("captures (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]int{0, 1, 1, 2, 1}, inc.Depths); diff != "" {
		t.Errorf("inc depths (-want +got):\n%s", diff)
	}
	if inc.MaxStack != 2 {
		t.Errorf("inc max stack = %d", inc.MaxStack)
	}
	for _, f := range tr.Funcs {
		if !f.Compiled() {
			t.Errorf("%s degraded: %s", f.Index, f.Reason)
		}
	}
	if diff := cmp.Diff([]string{"n"}, tr.SlotNames(inc)); diff != "" {
		t.Errorf("slot names (-want +got):\n%s", diff)
	}
	if got := tr.LocalName(root, 1); got != "inc" {
		t.Errorf("local 1 = %q", got)
	}
}

func TestTranslate_CaptureKinds(t *testing.T) {
	inner := &bcasm.Func{
		Name: "inner",
		ClosureVars: []bcasm.ClosureVar{
			{Name: "b", Index: 1},
			{Name: "x", Index: 0, IsLocal: true},
		},
		Code: bcasm.NewCode().Op(bytecode.OpGetVarRef1).Op(bytecode.OpReturn),
	}
	mid := &bcasm.Func{
		Name: "mid",
		Vars: []bcasm.Var{{Name: "x"}},
		ClosureVars: []bcasm.ClosureVar{
			{Name: "a", Index: 0, IsLocal: true, IsArg: true},
			{Name: "b", Index: 0, IsLocal: true},
		},
		Children: []*bcasm.Func{inner},
		Code:     bcasm.NewCode().Op(bytecode.OpFClosure8, 0).Op(bytecode.OpReturn),
	}
	outer := &bcasm.Func{
		Name:     "outer",
		Args:     []string{"a"},
		Vars:     []bcasm.Var{{Name: "b"}, {Name: "unused"}},
		Children: []*bcasm.Func{mid},
		Code:     bcasm.NewCode().Op(bytecode.OpFClosure8, 0).Op(bytecode.OpReturn),
	}
	tr := translateRoot(t, outer, translate.DefaultOptions())

	o, m, i := tr.Funcs[0], tr.Funcs[1], tr.Funcs[2]

	wantOuter := []translate.Slot{
		{Kind: translate.SlotCell, Env: 0},
		{Kind: translate.SlotCell, Env: 1},
		{Kind: translate.SlotRegister},
	}
	if diff := cmp.Diff(wantOuter, o.Slots); diff != "" {
		t.Errorf("outer slots (-want +got):\n%s", diff)
	}
	wantMid := []translate.Capture{
		{Kind: translate.CaptureArg, Source: 0, ParentSlot: 0},
		{Kind: translate.CaptureLocal, Source: 0, ParentSlot: 1},
	}
	if diff := cmp.Diff(wantMid, m.Captures); diff != "" {
		t.Errorf("mid captures (-want +got):\n%s", diff)
	}
	// mid's own cell follows its two closure variables.
	if diff := cmp.Diff([]translate.Slot{{Kind: translate.SlotCell, Env: 2}}, m.Slots); diff != "" {
		t.Errorf("mid slots (-want +got):\n%s", diff)
	}
	if m.EnvSlots() != 3 || m.FreshSlots != 1 {
		t.Errorf("mid env slots = %d fresh %d", m.EnvSlots(), m.FreshSlots)
	}
	wantInner := []translate.Capture{
		{Kind: translate.CaptureForwarded, Source: 1, ParentSlot: 1},
		{Kind: translate.CaptureLocal, Source: 0, ParentSlot: 2},
	}
	if diff := cmp.Diff(wantInner, i.Captures); diff != "" {
		t.Errorf("inner captures (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a", "b", "x"}, tr.SlotNames(m)); diff != "" {
		t.Errorf("mid slot names (-want +got):\n%s", diff)
	}
}

func loop() *bcasm.Func {
	return &bcasm.Func{
		Name: "loop",
		Vars: []bcasm.Var{{Name: "i"}},
		Code: bcasm.NewCode().
			Op(bytecode.OpPush0).
			Op(bytecode.OpPutLoc0).
			Label("loop").
			Op(bytecode.OpGetLoc0).
			Op(bytecode.OpPushI8, 10).
			Op(bytecode.OpLt).
			Jump(bytecode.OpIfFalse8, "done").
			Op(bytecode.OpIncLoc, 0).
			Jump(bytecode.OpGoTo8, "loop").
			Label("done").
			Op(bytecode.OpGetLoc0).
			Op(bytecode.OpReturn),
	}
}

func TestTranslate_LoopCFG(t *testing.T) {
	f := translateRoot(t, loop(), translate.DefaultOptions()).Root()

	type block struct {
		PC          uint32
		First, Last int
		Succs       []translate.Edge
		Preds       []int
		Reachable   bool
	}
	var got []block
	for _, b := range f.CFG.Blocks {
		got = append(got, block{b.PC, b.First, b.Last, b.Succs, b.Preds, b.Reachable})
	}
	want := []block{
		{0, 0, 1, []translate.Edge{{To: 1, Kind: translate.EdgeFallthrough}}, nil, true},
		{2, 2, 5, []translate.Edge{
			{To: 3, Kind: translate.EdgeBranch},
			{To: 2, Kind: translate.EdgeFallthrough},
		}, []int{0, 2}, true},
		{8, 6, 7, []translate.Edge{{To: 1, Kind: translate.EdgeJump}}, []int{1}, true},
		{12, 8, 9, nil, []int{1}, true},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("blocks (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]int{0, 1, 0, 1, 2, 1, 0, 0, 0, 1}, f.Depths); diff != "" {
		t.Errorf("depths (-want +got):\n%s", diff)
	}
	if f.MaxStack != 2 {
		t.Errorf("max stack = %d", f.MaxStack)
	}
	if got := f.Kinds[4]; got != (translate.Operands{A: translate.KindUnknown, B: translate.KindInt32}) {
		t.Errorf("lt operands = %+v", got)
	}
	if got := f.Kinds[5].A; got != translate.KindBool {
		t.Errorf("if_false operand = %s", got)
	}

	b, ok := f.CFG.BlockAt(8)
	if !ok || b.Index != 2 {
		t.Errorf("BlockAt(8) = %v, %v", b, ok)
	}
	if _, ok := f.CFG.BlockAt(3); ok {
		t.Error("BlockAt(3) should miss: pc 3 is inside a block")
	}
	if f.CFG.BlockOf(7).Index != 2 {
		t.Errorf("BlockOf(7) = %d", f.CFG.BlockOf(7).Index)
	}
}

func TestTranslate_UnreachableBlock(t *testing.T) {
	f := translateRoot(t, &bcasm.Func{
		Name: "dead",
		Code: bcasm.NewCode().
			Op(bytecode.OpPush1).
			Op(bytecode.OpReturn).
			Op(bytecode.OpPushThis).
			Op(bytecode.OpGetField, 0).
			Op(bytecode.OpReturn),
	}, translate.DefaultOptions()).Root()

	if !f.Compiled() {
		t.Fatalf("unsupported op in dead code degraded the function: %s", f.Reason)
	}
	if len(f.CFG.Blocks) != 2 || f.CFG.Blocks[1].Reachable {
		t.Fatalf("blocks = %d, reachable = %d", len(f.CFG.Blocks), f.CFG.Reachable())
	}
	if diff := cmp.Diff([]int{0, 1, -1, -1, -1}, f.Depths); diff != "" {
		t.Errorf("depths (-want +got):\n%s", diff)
	}
}

func TestTranslate_KindsThroughShuffle(t *testing.T) {
	f := translateRoot(t, &bcasm.Func{
		Name: "k",
		Code: bcasm.NewCode().
			Op(bytecode.OpPush1).
			Op(bytecode.OpPushTrue).
			Op(bytecode.OpSwap).
			Op(bytecode.OpAdd).
			Op(bytecode.OpPush2).
			Op(bytecode.OpAnd).
			Op(bytecode.OpReturn),
	}, translate.DefaultOptions()).Root()

	want := []translate.Operands{
		{},
		{},
		{A: translate.KindInt32, B: translate.KindBool},
		{A: translate.KindBool, B: translate.KindInt32},
		{},
		{A: translate.KindUnknown, B: translate.KindInt32},
		{A: translate.KindInt32},
	}
	if diff := cmp.Diff(want, f.Kinds); diff != "" {
		t.Errorf("kinds (-want +got):\n%s", diff)
	}
}

func TestShuffles_MatchStackEffects(t *testing.T) {
	for op, sh := range translate.Shuffles {
		pops, pushes := bytecode.Instruction{Op: op}.StackEffect()
		if pops != sh.Pops || pushes != len(sh.Out) {
			t.Errorf("%s: table %d->%d, opcode %d->%d", op, sh.Pops, len(sh.Out), pops, pushes)
		}
		for _, j := range sh.Out {
			if j < 0 || j >= sh.Pops {
				t.Errorf("%s: output index %d out of range", op, j)
			}
		}
		if !translate.Lowered(op) {
			t.Errorf("%s not lowered", op)
		}
	}
}

func TestTranslate_Degrade(t *testing.T) {
	tests := []struct {
		name string
		fn   *bcasm.Func
		kind jerrors.Kind
	}{
		{
			name: "property access",
			fn: &bcasm.Func{Name: "f", Code: bcasm.NewCode().
				Op(bytecode.OpPushThis).Op(bytecode.OpGetField, 0).Op(bytecode.OpReturn)},
			kind: jerrors.KindUnsupportedOpcode,
		},
		{
			name: "generator",
			fn: &bcasm.Func{Name: "g", Kind: bytecode.FuncGenerator, Code: bcasm.NewCode().
				Op(bytecode.OpReturnUndef)},
			kind: jerrors.KindUnsupportedFeature,
		},
		{
			name: "underflow",
			fn: &bcasm.Func{Name: "u", Code: bcasm.NewCode().
				Op(bytecode.OpDrop).Op(bytecode.OpReturnUndef)},
			kind: jerrors.KindStackImbalance,
		},
		{
			name: "join mismatch",
			fn: &bcasm.Func{Name: "j", Code: bcasm.NewCode().
				Op(bytecode.OpPushTrue).
				Jump(bytecode.OpIfFalse8, "l").
				Op(bytecode.OpPush1).
				Label("l").
				Op(bytecode.OpReturnUndef)},
			kind: jerrors.KindStackImbalance,
		},
		{
			name: "unknown opcode byte",
			fn:   &bcasm.Func{Name: "b", Code: bcasm.NewCode().Raw(0xfa)},
			kind: jerrors.KindUnsupportedOpcode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := &bcasm.Func{
				Name:     "main",
				Children: []*bcasm.Func{tt.fn},
				Code:     bcasm.NewCode().Op(bytecode.OpFClosure8, 0).Op(bytecode.OpReturn),
			}
			tr := translateRoot(t, root, translate.DefaultOptions())
			if !tr.Root().Compiled() {
				t.Errorf("root degraded: %s", tr.Root().Reason)
			}
			f := tr.Funcs[1]
			if f.Compiled() || f.Mode != translate.ModeInterpreted {
				t.Fatalf("mode = %s", f.Mode)
			}
			var e *jerrors.Error
			if !errors.As(f.Err, &e) || e.Kind != tt.kind {
				t.Errorf("err = %v, want kind %s", f.Err, tt.kind)
			}
			if f.Reason == "" {
				t.Error("empty reason")
			}
			if d := tr.Degraded(); len(d) != 1 || d[0] != f {
				t.Errorf("degraded list = %d entries", len(d))
			}

			err := translateErr(root, translate.Options{Policy: translate.DegradeNone})
			if !jerrors.IsUnsupported(err) {
				t.Errorf("DegradeNone: err = %v, want unsupported", err)
			}
		})
	}
}

func TestTranslate_Malformed(t *testing.T) {
	tests := []struct {
		name string
		fn   *bcasm.Func
	}{
		{
			name: "jump into an instruction",
			fn: &bcasm.Func{Name: "f", Code: bcasm.NewCode().
				Op(bytecode.OpPushI32, 7).JumpDelta(bytecode.OpGoTo8, -4)},
		},
		{
			name: "falls off the end",
			fn:   &bcasm.Func{Name: "f", Code: bcasm.NewCode().Op(bytecode.OpPush1).Op(bytecode.OpDrop)},
		},
		{
			name: "empty body",
			fn:   &bcasm.Func{Name: "f", Code: bcasm.NewCode()},
		},
		{
			name: "variable out of range",
			fn: &bcasm.Func{Name: "f", Vars: []bcasm.Var{{Name: "x"}}, Code: bcasm.NewCode().
				Op(bytecode.OpGetLoc, 3).Op(bytecode.OpReturn)},
		},
		{
			name: "argument out of range",
			fn:   &bcasm.Func{Name: "f", Code: bcasm.NewCode().Op(bytecode.OpGetArg0).Op(bytecode.OpReturn)},
		},
		{
			name: "closure variable out of range",
			fn:   &bcasm.Func{Name: "f", Code: bcasm.NewCode().Op(bytecode.OpGetVarRef2).Op(bytecode.OpReturn)},
		},
		{
			name: "constant out of range",
			fn:   &bcasm.Func{Name: "f", Code: bcasm.NewCode().Op(bytecode.OpFClosure8, 0).Op(bytecode.OpReturn)},
		},
		{
			name: "get_loc0_loc1 with one variable",
			fn: &bcasm.Func{Name: "f", Vars: []bcasm.Var{{Name: "x"}}, Code: bcasm.NewCode().
				Op(bytecode.OpGetLoc0Loc1).Op(bytecode.OpReturn)},
		},
		{
			name: "truncated operand",
			fn:   &bcasm.Func{Name: "f", Code: bcasm.NewCode().Raw(byte(bytecode.OpPushI32), 1)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := translateErr(tt.fn, translate.DefaultOptions())
			if !jerrors.IsMalformed(err) {
				t.Errorf("err = %v, want malformed container", err)
			}
		})
	}
}

func TestTranslate_ErrorOffsetsAreAbsolute(t *testing.T) {
	root := &bcasm.Func{Name: "f", Code: bcasm.NewCode().
		Op(bytecode.OpPushI32, 7).JumpDelta(bytecode.OpGoTo8, -4)}
	data := (&bcasm.Container{Root: root}).Bytes()

	pls, err := bytecode.Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	var base int
	for _, pl := range pls {
		if ops, ok := pl.(*bytecode.FunctionOperators); ok {
			base = ops.Body.Base()
		}
	}

	_, err = translate.Translate(context.Background(), data, translate.DefaultOptions())
	var e *jerrors.Error
	if !errors.As(err, &e) {
		t.Fatalf("err = %v", err)
	}
	if e.Offset != base+5 {
		t.Errorf("offset = %d, want %d", e.Offset, base+5)
	}
}

func TestTranslate_BadClosureVar(t *testing.T) {
	child := &bcasm.Func{
		Name:        "c",
		ClosureVars: []bcasm.ClosureVar{{Name: "x", Index: 4, IsLocal: true}},
		Code:        bcasm.NewCode().Op(bytecode.OpReturnUndef),
	}
	root := &bcasm.Func{
		Name:     "main",
		Vars:     []bcasm.Var{{Name: "x"}},
		Children: []*bcasm.Func{child},
		Code:     bcasm.NewCode().Op(bytecode.OpReturnUndef),
	}
	if err := translateErr(root, translate.DefaultOptions()); !jerrors.IsMalformed(err) {
		t.Errorf("err = %v, want malformed", err)
	}

	child.ClosureVars = []bcasm.ClosureVar{{Name: "x", Index: 2}}
	if err := translateErr(root, translate.DefaultOptions()); !jerrors.IsMalformed(err) {
		t.Errorf("forwarded: err = %v, want malformed", err)
	}
}

func TestTranslate_ParseErrorPassesThrough(t *testing.T) {
	data := (&bcasm.Container{Root: counter()}).Bytes()
	_, err := translate.Translate(context.Background(), data[:len(data)-3], translate.DefaultOptions())
	var e *jerrors.Error
	if !errors.As(err, &e) || e.Phase != jerrors.PhaseParse {
		t.Errorf("err = %v, want parse error", err)
	}
}

func TestTranslate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := translate.Translate(ctx, (&bcasm.Container{Root: counter()}).Bytes(), translate.DefaultOptions())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestTranslate_ParallelismIsDeterministic(t *testing.T) {
	build := func() *bcasm.Func {
		root := counter()
		root.Children = append(root.Children, loop(), &bcasm.Func{
			Name: "bad",
			Code: bcasm.NewCode().Op(bytecode.OpPushThis).Op(bytecode.OpGetField, 0).Op(bytecode.OpReturn),
		})
		return root
	}
	type summary struct {
		Mode   translate.Mode
		Depths []int
		Slots  []translate.Slot
		Caps   []translate.Capture
	}
	summarize := func(tr *translate.Translation) []summary {
		var out []summary
		for _, f := range tr.Funcs {
			out = append(out, summary{f.Mode, f.Depths, f.Slots, f.Captures})
		}
		return out
	}

	serial := summarize(translateRoot(t, build(), translate.Options{Parallelism: 1}))
	parallel := summarize(translateRoot(t, build(), translate.Options{Parallelism: 8}))
	if diff := cmp.Diff(serial, parallel); diff != "" {
		t.Errorf("parallel build differs (-serial +parallel):\n%s", diff)
	}
	if len(serial) != 4 || serial[3].Mode != translate.ModeInterpreted {
		t.Errorf("summary = %+v", serial)
	}
}

func TestPolicy(t *testing.T) {
	for _, p := range []translate.Policy{translate.DegradeFunction, translate.DegradeNone} {
		got, ok := translate.ParsePolicy(p.String())
		if !ok || got != p {
			t.Errorf("ParsePolicy(%q) = %v, %v", p, got, ok)
		}
	}
	if _, ok := translate.ParsePolicy("sometimes"); ok {
		t.Error("ParsePolicy accepted an unknown name")
	}
}

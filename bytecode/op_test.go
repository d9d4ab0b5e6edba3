package bytecode_test

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/jac/bytecode"
	jerrors "github.com/wippyai/jac/errors"
	"github.com/wippyai/jac/internal/bcasm"
)

func decodeOne(t *testing.T, body []byte) bytecode.Instruction {
	t.Helper()
	inst, err := bytecode.Decode(bytecode.NewReader(body))
	if err != nil {
		t.Fatalf("Decode(% x): %v", body, err)
	}
	return inst
}

func TestDecode_EveryRecognizedByte(t *testing.T) {
	for b := 1; b <= int(bytecode.OpTypeOfIsFunction); b++ {
		op := bytecode.Opcode(b)
		if !op.Valid() {
			t.Errorf("byte %d is not recognized", b)
			continue
		}
		// Zeroed immediates; jumps then target their own immediate.
		body := make([]byte, op.Size())
		body[0] = byte(b)
		r := bytecode.NewReader(body)
		inst, err := bytecode.Decode(r)
		if err != nil {
			t.Errorf("%s: %v", op, err)
			continue
		}
		if inst.Op != op {
			t.Errorf("byte %d decoded as %s", b, inst.Op)
		}
		if r.Offset() != op.Size() || inst.End() != uint32(op.Size()) {
			t.Errorf("%s: consumed %d bytes, size %d", op, r.Offset(), op.Size())
		}
		if name := bytecode.NameFromByte(byte(b)); name == "invalid" || name == "unknown" {
			t.Errorf("byte %d has no name", b)
		}
	}
}

func TestDecode_UnrecognizedBytes(t *testing.T) {
	bad := []byte{0}
	for b := 248; b <= 255; b++ {
		bad = append(bad, byte(b))
	}
	for _, b := range bad {
		r := bytecode.NewReader([]byte{b, 0, 0, 0, 0})
		_, err := bytecode.Decode(r)
		e := asError(t, err)
		if e.Kind != jerrors.KindUnsupportedOpcode || e.Phase != jerrors.PhaseDecode {
			t.Errorf("byte %d: kind=%s phase=%s", b, e.Kind, e.Phase)
		}
		if e.Offset != 0 {
			t.Errorf("byte %d: offset %d", b, e.Offset)
		}
		if !jerrors.IsUnsupported(err) {
			t.Errorf("byte %d: not classified unsupported", b)
		}
		if r.Offset() != 0 {
			t.Errorf("byte %d: reader advanced to %d", b, r.Offset())
		}
	}
	if bytecode.NameFromByte(0) != "invalid" || bytecode.NameFromByte(250) != "unknown" {
		t.Error("unexpected names for reserved bytes")
	}
}

func TestDecode_JumpTargets(t *testing.T) {
	tests := []struct {
		name   string
		op     bytecode.Opcode
		delta  int64
		prefix int // bytes before the jump
		want   uint32
	}{
		{"goto zero", bytecode.OpGoTo, 0, 0, 1},
		{"goto forward", bytecode.OpGoTo, 10, 0, 11},
		{"goto backward", bytecode.OpGoTo, -3, 8, 6},
		{"goto max", bytecode.OpGoTo, math.MaxInt32, 0, 1 + math.MaxInt32},
		{"goto16 forward", bytecode.OpGoTo16, 300, 0, 301},
		{"goto16 backward", bytecode.OpGoTo16, -5, 10, 6},
		{"goto16 max", bytecode.OpGoTo16, math.MaxInt16, 0, 1 + math.MaxInt16},
		{"goto8 zero", bytecode.OpGoTo8, 0, 0, 1},
		{"if_false8 backward", bytecode.OpIfFalse8, -128, 200, 73},
		{"if_true8 max", bytecode.OpIfTrue8, math.MaxInt8, 0, 1 + math.MaxInt8},
		{"if_false", bytecode.OpIfFalse, 20, 4, 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code := bcasm.NewCode()
			for range tt.prefix {
				code.Op(bytecode.OpNop)
			}
			code.JumpDelta(tt.op, tt.delta)

			r := bytecode.NewReader(code.Bytes())
			if _, err := r.ReadBytes(tt.prefix); err != nil {
				t.Fatal(err)
			}
			inst, err := bytecode.Decode(r)
			if err != nil {
				t.Fatal(err)
			}
			if inst.Target != tt.want {
				t.Errorf("Target = %d, want %d", inst.Target, tt.want)
			}
			if inst.PC != uint32(tt.prefix) {
				t.Errorf("PC = %d", inst.PC)
			}
		})
	}
}

func TestDecode_JumpBeforeBody(t *testing.T) {
	body := []byte{byte(bytecode.OpGoTo8), 0xf0}
	_, err := bytecode.Decode(bytecode.NewReader(body))
	e := asError(t, err)
	if e.Kind != jerrors.KindInvalidData || e.Offset != 1 {
		t.Errorf("got kind=%s offset=%d", e.Kind, e.Offset)
	}
}

func TestDecode_Truncated(t *testing.T) {
	body := []byte{byte(bytecode.OpPushI32), 1, 2}
	r := bytecode.NewReader(body)
	_, err := bytecode.Decode(r)
	e := asError(t, err)
	if e.Kind != jerrors.KindUnexpectedEnd || e.Phase != jerrors.PhaseDecode {
		t.Errorf("got kind=%s phase=%s", e.Kind, e.Phase)
	}
	if e.Offset != 1 {
		t.Errorf("offset = %d, want 1", e.Offset)
	}
	if r.Offset() != 0 {
		t.Errorf("reader advanced to %d", r.Offset())
	}
}

func TestDecode_Operands(t *testing.T) {
	le32 := func(v uint32) []byte { return binary.LittleEndian.AppendUint32(nil, v) }
	le16 := func(v uint16) []byte { return binary.LittleEndian.AppendUint16(nil, v) }
	cat := func(op bytecode.Opcode, parts ...[]byte) []byte {
		out := []byte{byte(op)}
		for _, p := range parts {
			out = append(out, p...)
		}
		return out
	}

	tests := []struct {
		name  string
		body  []byte
		check func(t *testing.T, i bytecode.Instruction)
	}{
		{"push_i32 negative", cat(bytecode.OpPushI32, le32(uint32(0xfffffff6))), func(t *testing.T, i bytecode.Instruction) {
			if i.Value != -10 {
				t.Errorf("Value = %d", i.Value)
			}
		}},
		{"push_i8", []byte{byte(bytecode.OpPushI8), 0x80}, func(t *testing.T, i bytecode.Instruction) {
			if i.Value != -128 {
				t.Errorf("Value = %d", i.Value)
			}
		}},
		{"push_i16", cat(bytecode.OpPushI16, le16(0x8000)), func(t *testing.T, i bytecode.Instruction) {
			if i.Value != math.MinInt16 {
				t.Errorf("Value = %d", i.Value)
			}
		}},
		{"get_loc", cat(bytecode.OpGetLoc, le16(300)), func(t *testing.T, i bytecode.Instruction) {
			if i.Local != 300 || i.VarRef != bytecode.NoClosure {
				t.Errorf("Local = %d VarRef = %d", i.Local, i.VarRef)
			}
		}},
		{"get_var_ref", cat(bytecode.OpGetVarRef, le16(7)), func(t *testing.T, i bytecode.Instruction) {
			if i.VarRef != 7 || i.Local != bytecode.NoLocal {
				t.Errorf("VarRef = %d Local = %d", i.VarRef, i.Local)
			}
		}},
		{"fclosure8", []byte{byte(bytecode.OpFClosure8), 3}, func(t *testing.T, i bytecode.Instruction) {
			if i.Const != 3 {
				t.Errorf("Const = %d", i.Const)
			}
		}},
		{"get_field", cat(bytecode.OpGetField, le32(99)), func(t *testing.T, i bytecode.Instruction) {
			if i.Atom != 99 {
				t.Errorf("Atom = %d", i.Atom)
			}
		}},
		{"call_method", cat(bytecode.OpCallMethod, le16(2)), func(t *testing.T, i bytecode.Instruction) {
			if i.Argc != 2 {
				t.Errorf("Argc = %d", i.Argc)
			}
			if pops, pushes := i.StackEffect(); pops != 4 || pushes != 1 {
				t.Errorf("StackEffect = %d, %d", pops, pushes)
			}
		}},
		{"eval", cat(bytecode.OpEval, le16(1), le16(3)), func(t *testing.T, i bytecode.Instruction) {
			if i.Argc != 1 || i.Value != 2 {
				t.Errorf("Argc = %d scope = %d", i.Argc, i.Value)
			}
		}},
		{"make_var_ref_ref", cat(bytecode.OpMakeVarRefRef, le32(5), le16(4)), func(t *testing.T, i bytecode.Instruction) {
			if i.Atom != 5 || i.VarRef != 4 || i.Local != bytecode.NoLocal {
				t.Errorf("got %+v", i)
			}
		}},
		{"make_loc_ref", cat(bytecode.OpMakeLocRef, le32(5), le16(4)), func(t *testing.T, i bytecode.Instruction) {
			if i.Atom != 5 || i.Local != 4 {
				t.Errorf("got %+v", i)
			}
		}},
		{"for_of_next offset", []byte{byte(bytecode.OpForOfNext), 2}, func(t *testing.T, i bytecode.Instruction) {
			if i.Flags != 2 {
				t.Errorf("Flags = %d", i.Flags)
			}
		}},
		{"with_get_var", cat(bytecode.OpWithGetVar, le32(8), le32(10), []byte{1}), func(t *testing.T, i bytecode.Instruction) {
			if i.Atom != 8 || i.Target != 15 || i.Flags != 1 {
				t.Errorf("got %+v", i)
			}
		}},
		{"call2 implicit argc", []byte{byte(bytecode.OpCall2)}, func(t *testing.T, i bytecode.Instruction) {
			if i.Argc != 2 {
				t.Errorf("Argc = %d", i.Argc)
			}
			if pops, pushes := i.StackEffect(); pops != 3 || pushes != 1 {
				t.Errorf("StackEffect = %d, %d", pops, pushes)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, decodeOne(t, tt.body))
		})
	}
}

func TestInstruction_Canonical(t *testing.T) {
	tests := []struct {
		short []byte
		long  []byte
	}{
		{[]byte{byte(bytecode.OpPush3)}, []byte{byte(bytecode.OpPushI32), 3, 0, 0, 0}},
		{[]byte{byte(bytecode.OpPushMinus1)}, []byte{byte(bytecode.OpPushI32), 0xff, 0xff, 0xff, 0xff}},
		{[]byte{byte(bytecode.OpPushI8), 0xfe}, []byte{byte(bytecode.OpPushI32), 0xfe, 0xff, 0xff, 0xff}},
		{[]byte{byte(bytecode.OpGetLoc2)}, []byte{byte(bytecode.OpGetLoc), 2, 0}},
		{[]byte{byte(bytecode.OpGetLoc8), 9}, []byte{byte(bytecode.OpGetLoc), 9, 0}},
		{[]byte{byte(bytecode.OpPutArg1)}, []byte{byte(bytecode.OpPutArg), 1, 0}},
		{[]byte{byte(bytecode.OpSetVarRef3)}, []byte{byte(bytecode.OpSetVarRef), 3, 0}},
		{[]byte{byte(bytecode.OpCall1)}, []byte{byte(bytecode.OpCall), 1, 0}},
		{[]byte{byte(bytecode.OpFClosure8), 4}, []byte{byte(bytecode.OpFClosure), 4, 0, 0, 0}},
		{[]byte{byte(bytecode.OpPushConst8), 4}, []byte{byte(bytecode.OpPushConst), 4, 0, 0, 0}},
		{[]byte{byte(bytecode.OpGoTo8), 4}, []byte{byte(bytecode.OpGoTo), 4, 0, 0, 0}},
		{[]byte{byte(bytecode.OpIfTrue8), 2}, []byte{byte(bytecode.OpIfTrue), 2, 0, 0, 0}},
	}
	ignorePC := func(i bytecode.Instruction) bytecode.Instruction {
		i.PC = 0
		return i
	}
	for _, tt := range tests {
		short := decodeOne(t, tt.short).Canonical()
		long := decodeOne(t, tt.long)
		if diff := cmp.Diff(ignorePC(long), ignorePC(short)); diff != "" {
			t.Errorf("%s: canonical form differs (-long +short):\n%s",
				bytecode.NameFromByte(tt.short[0]), diff)
		}
	}
}

func TestOpcode_Classification(t *testing.T) {
	if !bytecode.OpGoTo8.IsTerminator() || !bytecode.OpReturn.IsTerminator() || bytecode.OpIfFalse.IsTerminator() {
		t.Error("terminator classification")
	}
	if !bytecode.OpIfTrue8.IsConditional() || bytecode.OpGoTo.IsConditional() {
		t.Error("conditional classification")
	}
	if !bytecode.OpWithPutVar.IsJump() || bytecode.OpCall.IsJump() {
		t.Error("jump classification")
	}
	if bytecode.OpGoTo16.String() != "goto16" || bytecode.OpGetLoc0Loc1.String() != "get_loc0_loc1" {
		t.Error("names")
	}
}

func TestDecodeAll(t *testing.T) {
	code := bcasm.NewCode().
		Op(bytecode.OpPush0).
		Op(bytecode.OpPutLoc0).
		Label("top").
		Op(bytecode.OpGetLoc0).
		Op(bytecode.OpPushI8, 10).
		Op(bytecode.OpLt).
		Jump(bytecode.OpIfFalse8, "done").
		Op(bytecode.OpIncLoc, 0).
		Jump(bytecode.OpGoTo8, "top").
		Label("done").
		Op(bytecode.OpReturnUndef)

	insts, err := bytecode.DecodeAll(bytecode.NewReader(code.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	var ops []string
	for _, i := range insts {
		ops = append(ops, i.Op.String())
	}
	want := []string{"push_0", "put_loc0", "get_loc0", "push_i8", "lt", "if_false8", "inc_loc", "goto8", "return_undef"}
	if diff := cmp.Diff(want, ops); diff != "" {
		t.Fatalf("ops (-want +got):\n%s", diff)
	}
	if insts[5].Target != insts[8].PC {
		t.Errorf("if_false8 target %d, want %d", insts[5].Target, insts[8].PC)
	}
	if insts[7].Target != insts[2].PC {
		t.Errorf("goto8 target %d, want %d", insts[7].Target, insts[2].PC)
	}
}

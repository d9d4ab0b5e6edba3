package bytecode

// Opcode is one instruction byte of a function's operator body.
type Opcode uint8

const (
	OpInvalid Opcode = iota
	OpPushI32
	OpPushConst
	OpFClosure
	OpPushAtomValue
	OpPrivateSymbol
	OpUndefined
	OpNull
	OpPushThis
	OpPushFalse
	OpPushTrue
	OpObject
	OpSpecialObject
	OpRest
	OpDrop
	OpNip
	OpNip1
	OpDup
	OpDup1
	OpDup2
	OpDup3
	OpInsert2
	OpInsert3
	OpInsert4
	OpPerm3
	OpPerm4
	OpPerm5
	OpSwap
	OpSwap2
	OpRot3L
	OpRot3R
	OpRot4L
	OpRot5L
	OpCallConstructor
	OpCall
	OpTailCall
	OpCallMethod
	OpTailCallMethod
	OpArrayFrom
	OpApply
	OpReturn
	OpReturnUndef
	OpCheckCtorReturn
	OpCheckCtor
	OpInitCtor
	OpCheckBrand
	OpAddBrand
	OpReturnAsync
	OpThrow
	OpThrowError
	OpEval
	OpApplyEval
	OpRegexp
	OpGetSuper
	OpImport
	OpCheckVar
	OpGetVarUndef
	OpGetVar
	OpPutVar
	OpPutVarInit
	OpPutVarStrict
	OpGetRefValue
	OpPutRefValue
	OpDefineVar
	OpCheckDefineVar
	OpDefineFunc
	OpGetField
	OpGetField2
	OpPutField
	OpGetPrivateField
	OpPutPrivateField
	OpDefinePrivateField
	OpGetArrayEl
	OpGetArrayEl2
	OpPutArrayEl
	OpGetSuperValue
	OpPutSuperValue
	OpDefineField
	OpSetName
	OpSetNameComputed
	OpSetProto
	OpSetHomeObject
	OpDefineArrayEl
	OpAppend
	OpCopyDataProperties
	OpDefineMethod
	OpDefineMethodComputed
	OpDefineClass
	OpDefineClassComputed
	OpGetLoc
	OpPutLoc
	OpSetLoc
	OpGetArg
	OpPutArg
	OpSetArg
	OpGetVarRef
	OpPutVarRef
	OpSetVarRef
	OpSetLocUninit
	OpGetLocCheck
	OpPutLocCheck
	OpPutLocCheckInit
	OpGetVarRefCheck
	OpPutVarRefCheck
	OpPutVarRefCheckInit
	OpCloseLoc
	OpIfFalse
	OpIfTrue
	OpGoTo
	OpCatch
	OpGoSub
	OpRet
	OpNipCatch
	OpToObject
	OpToPropKey
	OpToPropKey2
	OpWithGetVar
	OpWithPutVar
	OpWithDeleteVar
	OpWithMakeRef
	OpWithGetRef
	OpWithGetRefUndef
	OpMakeLocRef
	OpMakeArgRef
	OpMakeVarRefRef
	OpMakeVarRef
	OpForInStart
	OpForOfStart
	OpForAwaitOfStart
	OpForInNext
	OpForOfNext
	OpIteratorCheckObject
	OpIteratorGetValueDone
	OpIteratorClose
	OpIteratorNext
	OpIteratorCall
	OpInitialYield
	OpYield
	OpYieldStar
	OpAsyncYieldStar
	OpAwait
	OpNeg
	OpPlus
	OpDec
	OpInc
	OpPostDec
	OpPostInc
	OpDecLoc
	OpIncLoc
	OpAddLoc
	OpNot
	OpLNot
	OpTypeOf
	OpDelete
	OpDeleteVar
	OpMul
	OpDiv
	OpMod
	OpAdd
	OpSub
	OpShl
	OpSar
	OpShr
	OpAnd
	OpXor
	OpOr
	OpPow
	OpLt
	OpLte
	OpGt
	OpGte
	OpInstanceOf
	OpIn
	OpEq
	OpNeq
	OpStrictEq
	OpStrictNeq
	OpUndefOrNull
	OpPrivateIn
	OpPushBigintI32
	OpNop
	OpPushMinus1
	OpPush0
	OpPush1
	OpPush2
	OpPush3
	OpPush4
	OpPush5
	OpPush6
	OpPush7
	OpPushI8
	OpPushI16
	OpPushConst8
	OpFClosure8
	OpPushEmptyString
	OpGetLoc8
	OpPutLoc8
	OpSetLoc8
	OpGetLoc0Loc1
	OpGetLoc0
	OpGetLoc1
	OpGetLoc2
	OpGetLoc3
	OpPutLoc0
	OpPutLoc1
	OpPutLoc2
	OpPutLoc3
	OpSetLoc0
	OpSetLoc1
	OpSetLoc2
	OpSetLoc3
	OpGetArg0
	OpGetArg1
	OpGetArg2
	OpGetArg3
	OpPutArg0
	OpPutArg1
	OpPutArg2
	OpPutArg3
	OpSetArg0
	OpSetArg1
	OpSetArg2
	OpSetArg3
	OpGetVarRef0
	OpGetVarRef1
	OpGetVarRef2
	OpGetVarRef3
	OpPutVarRef0
	OpPutVarRef1
	OpPutVarRef2
	OpPutVarRef3
	OpSetVarRef0
	OpSetVarRef1
	OpSetVarRef2
	OpSetVarRef3
	OpGetLength
	OpIfFalse8
	OpIfTrue8
	OpGoTo8
	OpGoTo16
	OpCall0
	OpCall1
	OpCall2
	OpCall3
	OpIsUndefined
	OpIsNull
	OpTypeOfIsUndefined
	OpTypeOfIsFunction

	opCount
)

// Format describes the immediate operands following an opcode byte.
type Format uint8

const (
	FmtNone        Format = iota
	FmtI32                // i32 literal
	FmtConst              // u32 constant pool index
	FmtAtom               // u32 atom
	FmtU8                 // u8 operand
	FmtU16                // u16 operand
	FmtNpop               // u16 argument count
	FmtNpopU16            // u16 argument count, u16 scope
	FmtAtomU8             // u32 atom, u8 flags
	FmtAtomU16            // u32 atom, u16 slot index
	FmtLoc                // u16 variable index
	FmtArg                // u16 argument index
	FmtVarRef             // u16 closure variable index
	FmtLabel              // i32 relative jump
	FmtAtomLabelU8        // u32 atom, i32 relative jump, u8 flags
	FmtLoc8               // u8 variable index
	FmtConst8             // u8 constant pool index
	FmtI8                 // i8 literal
	FmtI16                // i16 literal
	FmtLabel8             // i8 relative jump
	FmtLabel16            // i16 relative jump
	FmtImplicit           // operand encoded in the opcode itself
)

var formatSizes = [...]int{
	FmtNone:        0,
	FmtI32:         4,
	FmtConst:       4,
	FmtAtom:        4,
	FmtU8:          1,
	FmtU16:         2,
	FmtNpop:        2,
	FmtNpopU16:     4,
	FmtAtomU8:      5,
	FmtAtomU16:     6,
	FmtLoc:         2,
	FmtArg:         2,
	FmtVarRef:      2,
	FmtLabel:       4,
	FmtAtomLabelU8: 9,
	FmtLoc8:        1,
	FmtConst8:      1,
	FmtI8:          1,
	FmtI16:         2,
	FmtLabel8:      1,
	FmtLabel16:     2,
	FmtImplicit:    0,
}

// Size returns the number of immediate bytes.
func (f Format) Size() int {
	return formatSizes[f]
}

// IsJump reports whether the format carries a relative jump.
func (f Format) IsJump() bool {
	switch f {
	case FmtLabel, FmtLabel8, FmtLabel16, FmtAtomLabelU8:
		return true
	}
	return false
}

// opInfo describes one opcode. pops includes the base count; for argument
// count formats the decoded argc is added on top.
type opInfo struct {
	name     string
	format   Format
	pops     int
	pushes   int
	implicit int32 // value of an implicit operand
	valid    bool
}

func op(name string, f Format, pops, pushes int) opInfo {
	return opInfo{name: name, format: f, pops: pops, pushes: pushes, valid: true}
}

func short(name string, pops, pushes int, implicit int32) opInfo {
	return opInfo{name: name, format: FmtImplicit, pops: pops, pushes: pushes, implicit: implicit, valid: true}
}

var opTable = [256]opInfo{
	OpPushI32:              op("push_i32", FmtI32, 0, 1),
	OpPushConst:            op("push_const", FmtConst, 0, 1),
	OpFClosure:             op("fclosure", FmtConst, 0, 1),
	OpPushAtomValue:        op("push_atom_value", FmtAtom, 0, 1),
	OpPrivateSymbol:        op("private_symbol", FmtAtom, 0, 1),
	OpUndefined:            op("undefined", FmtNone, 0, 1),
	OpNull:                 op("null", FmtNone, 0, 1),
	OpPushThis:             op("push_this", FmtNone, 0, 1),
	OpPushFalse:            op("push_false", FmtNone, 0, 1),
	OpPushTrue:             op("push_true", FmtNone, 0, 1),
	OpObject:               op("object", FmtNone, 0, 1),
	OpSpecialObject:        op("special_object", FmtU8, 0, 1),
	OpRest:                 op("rest", FmtU16, 0, 1),
	OpDrop:                 op("drop", FmtNone, 1, 0),
	OpNip:                  op("nip", FmtNone, 2, 1),
	OpNip1:                 op("nip1", FmtNone, 3, 2),
	OpDup:                  op("dup", FmtNone, 1, 2),
	OpDup1:                 op("dup1", FmtNone, 2, 3),
	OpDup2:                 op("dup2", FmtNone, 2, 4),
	OpDup3:                 op("dup3", FmtNone, 3, 6),
	OpInsert2:              op("insert2", FmtNone, 2, 3),
	OpInsert3:              op("insert3", FmtNone, 3, 4),
	OpInsert4:              op("insert4", FmtNone, 4, 5),
	OpPerm3:                op("perm3", FmtNone, 3, 3),
	OpPerm4:                op("perm4", FmtNone, 4, 4),
	OpPerm5:                op("perm5", FmtNone, 5, 5),
	OpSwap:                 op("swap", FmtNone, 2, 2),
	OpSwap2:                op("swap2", FmtNone, 4, 4),
	OpRot3L:                op("rot3l", FmtNone, 3, 3),
	OpRot3R:                op("rot3r", FmtNone, 3, 3),
	OpRot4L:                op("rot4l", FmtNone, 4, 4),
	OpRot5L:                op("rot5l", FmtNone, 5, 5),
	OpCallConstructor:      op("call_constructor", FmtNpop, 2, 1),
	OpCall:                 op("call", FmtNpop, 1, 1),
	OpTailCall:             op("tail_call", FmtNpop, 1, 0),
	OpCallMethod:           op("call_method", FmtNpop, 2, 1),
	OpTailCallMethod:       op("tail_call_method", FmtNpop, 2, 0),
	OpArrayFrom:            op("array_from", FmtNpop, 0, 1),
	OpApply:                op("apply", FmtU16, 3, 1),
	OpReturn:               op("return", FmtNone, 1, 0),
	OpReturnUndef:          op("return_undef", FmtNone, 0, 0),
	OpCheckCtorReturn:      op("check_ctor_return", FmtNone, 1, 2),
	OpCheckCtor:            op("check_ctor", FmtNone, 0, 0),
	OpInitCtor:             op("init_ctor", FmtNone, 0, 1),
	OpCheckBrand:           op("check_brand", FmtNone, 2, 2),
	OpAddBrand:             op("add_brand", FmtNone, 2, 0),
	OpReturnAsync:          op("return_async", FmtNone, 1, 0),
	OpThrow:                op("throw", FmtNone, 1, 0),
	OpThrowError:           op("throw_error", FmtAtomU8, 0, 0),
	OpEval:                 op("eval", FmtNpopU16, 1, 1),
	OpApplyEval:            op("apply_eval", FmtU16, 2, 1),
	OpRegexp:               op("regexp", FmtNone, 2, 1),
	OpGetSuper:             op("get_super", FmtNone, 1, 1),
	OpImport:               op("import", FmtNone, 1, 1),
	OpCheckVar:             op("check_var", FmtAtom, 0, 1),
	OpGetVarUndef:          op("get_var_undef", FmtAtom, 0, 1),
	OpGetVar:               op("get_var", FmtAtom, 0, 1),
	OpPutVar:               op("put_var", FmtAtom, 1, 0),
	OpPutVarInit:           op("put_var_init", FmtAtom, 1, 0),
	OpPutVarStrict:         op("put_var_strict", FmtAtom, 2, 0),
	OpGetRefValue:          op("get_ref_value", FmtNone, 2, 3),
	OpPutRefValue:          op("put_ref_value", FmtNone, 3, 0),
	OpDefineVar:            op("define_var", FmtAtomU8, 0, 0),
	OpCheckDefineVar:       op("check_define_var", FmtAtomU8, 0, 0),
	OpDefineFunc:           op("define_func", FmtAtomU8, 1, 0),
	OpGetField:             op("get_field", FmtAtom, 1, 1),
	OpGetField2:            op("get_field2", FmtAtom, 1, 2),
	OpPutField:             op("put_field", FmtAtom, 2, 0),
	OpGetPrivateField:      op("get_private_field", FmtNone, 2, 1),
	OpPutPrivateField:      op("put_private_field", FmtNone, 3, 0),
	OpDefinePrivateField:   op("define_private_field", FmtNone, 3, 1),
	OpGetArrayEl:           op("get_array_el", FmtNone, 2, 1),
	OpGetArrayEl2:          op("get_array_el2", FmtNone, 2, 2),
	OpPutArrayEl:           op("put_array_el", FmtNone, 3, 0),
	OpGetSuperValue:        op("get_super_value", FmtNone, 3, 1),
	OpPutSuperValue:        op("put_super_value", FmtNone, 4, 0),
	OpDefineField:          op("define_field", FmtAtom, 2, 1),
	OpSetName:              op("set_name", FmtAtom, 1, 1),
	OpSetNameComputed:      op("set_name_computed", FmtNone, 2, 2),
	OpSetProto:             op("set_proto", FmtNone, 2, 1),
	OpSetHomeObject:        op("set_home_object", FmtNone, 2, 2),
	OpDefineArrayEl:        op("define_array_el", FmtNone, 3, 2),
	OpAppend:               op("append", FmtNone, 3, 2),
	OpCopyDataProperties:   op("copy_data_properties", FmtU8, 3, 3),
	OpDefineMethod:         op("define_method", FmtAtomU8, 2, 1),
	OpDefineMethodComputed: op("define_method_computed", FmtU8, 3, 1),
	OpDefineClass:          op("define_class", FmtAtomU8, 2, 2),
	OpDefineClassComputed:  op("define_class_computed", FmtAtomU8, 3, 3),
	OpGetLoc:               op("get_loc", FmtLoc, 0, 1),
	OpPutLoc:               op("put_loc", FmtLoc, 1, 0),
	OpSetLoc:               op("set_loc", FmtLoc, 1, 1),
	OpGetArg:               op("get_arg", FmtArg, 0, 1),
	OpPutArg:               op("put_arg", FmtArg, 1, 0),
	OpSetArg:               op("set_arg", FmtArg, 1, 1),
	OpGetVarRef:            op("get_var_ref", FmtVarRef, 0, 1),
	OpPutVarRef:            op("put_var_ref", FmtVarRef, 1, 0),
	OpSetVarRef:            op("set_var_ref", FmtVarRef, 1, 1),
	OpSetLocUninit:         op("set_loc_uninitialized", FmtLoc, 0, 0),
	OpGetLocCheck:          op("get_loc_check", FmtLoc, 0, 1),
	OpPutLocCheck:          op("put_loc_check", FmtLoc, 1, 0),
	OpPutLocCheckInit:      op("put_loc_check_init", FmtLoc, 1, 0),
	OpGetVarRefCheck:       op("get_var_ref_check", FmtVarRef, 0, 1),
	OpPutVarRefCheck:       op("put_var_ref_check", FmtVarRef, 1, 0),
	OpPutVarRefCheckInit:   op("put_var_ref_check_init", FmtVarRef, 1, 0),
	OpCloseLoc:             op("close_loc", FmtLoc, 0, 0),
	OpIfFalse:              op("if_false", FmtLabel, 1, 0),
	OpIfTrue:               op("if_true", FmtLabel, 1, 0),
	OpGoTo:                 op("goto", FmtLabel, 0, 0),
	OpCatch:                op("catch", FmtLabel, 0, 1),
	OpGoSub:                op("gosub", FmtLabel, 0, 0),
	OpRet:                  op("ret", FmtNone, 1, 0),
	OpNipCatch:             op("nip_catch", FmtNone, 2, 1),
	OpToObject:             op("to_object", FmtNone, 1, 1),
	OpToPropKey:            op("to_propkey", FmtNone, 1, 1),
	OpToPropKey2:           op("to_propkey2", FmtNone, 2, 2),
	OpWithGetVar:           op("with_get_var", FmtAtomLabelU8, 1, 0),
	OpWithPutVar:           op("with_put_var", FmtAtomLabelU8, 2, 1),
	OpWithDeleteVar:        op("with_delete_var", FmtAtomLabelU8, 1, 0),
	OpWithMakeRef:          op("with_make_ref", FmtAtomLabelU8, 1, 0),
	OpWithGetRef:           op("with_get_ref", FmtAtomLabelU8, 1, 0),
	OpWithGetRefUndef:      op("with_get_ref_undef", FmtAtomLabelU8, 1, 0),
	OpMakeLocRef:           op("make_loc_ref", FmtAtomU16, 0, 2),
	OpMakeArgRef:           op("make_arg_ref", FmtAtomU16, 0, 2),
	OpMakeVarRefRef:        op("make_var_ref_ref", FmtAtomU16, 0, 2),
	OpMakeVarRef:           op("make_var_ref", FmtAtom, 0, 2),
	OpForInStart:           op("for_in_start", FmtNone, 1, 1),
	OpForOfStart:           op("for_of_start", FmtNone, 1, 3),
	OpForAwaitOfStart:      op("for_await_of_start", FmtNone, 1, 3),
	OpForInNext:            op("for_in_next", FmtNone, 1, 3),
	OpForOfNext:            op("for_of_next", FmtU8, 3, 5),
	OpIteratorCheckObject:  op("iterator_check_object", FmtNone, 1, 1),
	OpIteratorGetValueDone: op("iterator_get_value_done", FmtNone, 1, 2),
	OpIteratorClose:        op("iterator_close", FmtNone, 3, 0),
	OpIteratorNext:         op("iterator_next", FmtNone, 4, 4),
	OpIteratorCall:         op("iterator_call", FmtU8, 4, 5),
	OpInitialYield:         op("initial_yield", FmtNone, 0, 0),
	OpYield:                op("yield", FmtNone, 1, 2),
	OpYieldStar:            op("yield_star", FmtNone, 1, 2),
	OpAsyncYieldStar:       op("async_yield_star", FmtNone, 1, 2),
	OpAwait:                op("await", FmtNone, 1, 1),
	OpNeg:                  op("neg", FmtNone, 1, 1),
	OpPlus:                 op("plus", FmtNone, 1, 1),
	OpDec:                  op("dec", FmtNone, 1, 1),
	OpInc:                  op("inc", FmtNone, 1, 1),
	OpPostDec:              op("post_dec", FmtNone, 1, 2),
	OpPostInc:              op("post_inc", FmtNone, 1, 2),
	OpDecLoc:               op("dec_loc", FmtLoc8, 0, 0),
	OpIncLoc:               op("inc_loc", FmtLoc8, 0, 0),
	OpAddLoc:               op("add_loc", FmtLoc8, 1, 0),
	OpNot:                  op("not", FmtNone, 1, 1),
	OpLNot:                 op("lnot", FmtNone, 1, 1),
	OpTypeOf:               op("typeof", FmtNone, 1, 1),
	OpDelete:               op("delete", FmtNone, 2, 1),
	OpDeleteVar:            op("delete_var", FmtAtom, 0, 1),
	OpMul:                  op("mul", FmtNone, 2, 1),
	OpDiv:                  op("div", FmtNone, 2, 1),
	OpMod:                  op("mod", FmtNone, 2, 1),
	OpAdd:                  op("add", FmtNone, 2, 1),
	OpSub:                  op("sub", FmtNone, 2, 1),
	OpShl:                  op("shl", FmtNone, 2, 1),
	OpSar:                  op("sar", FmtNone, 2, 1),
	OpShr:                  op("shr", FmtNone, 2, 1),
	OpAnd:                  op("and", FmtNone, 2, 1),
	OpXor:                  op("xor", FmtNone, 2, 1),
	OpOr:                   op("or", FmtNone, 2, 1),
	OpPow:                  op("pow", FmtNone, 2, 1),
	OpLt:                   op("lt", FmtNone, 2, 1),
	OpLte:                  op("lte", FmtNone, 2, 1),
	OpGt:                   op("gt", FmtNone, 2, 1),
	OpGte:                  op("gte", FmtNone, 2, 1),
	OpInstanceOf:           op("instanceof", FmtNone, 2, 1),
	OpIn:                   op("in", FmtNone, 2, 1),
	OpEq:                   op("eq", FmtNone, 2, 1),
	OpNeq:                  op("neq", FmtNone, 2, 1),
	OpStrictEq:             op("strict_eq", FmtNone, 2, 1),
	OpStrictNeq:            op("strict_neq", FmtNone, 2, 1),
	OpUndefOrNull:          op("is_undefined_or_null", FmtNone, 1, 1),
	OpPrivateIn:            op("private_in", FmtNone, 2, 1),
	OpPushBigintI32:        op("push_bigint_i32", FmtI32, 0, 1),
	OpNop:                  op("nop", FmtNone, 0, 0),
	OpPushMinus1:           short("push_minus1", 0, 1, -1),
	OpPush0:                short("push_0", 0, 1, 0),
	OpPush1:                short("push_1", 0, 1, 1),
	OpPush2:                short("push_2", 0, 1, 2),
	OpPush3:                short("push_3", 0, 1, 3),
	OpPush4:                short("push_4", 0, 1, 4),
	OpPush5:                short("push_5", 0, 1, 5),
	OpPush6:                short("push_6", 0, 1, 6),
	OpPush7:                short("push_7", 0, 1, 7),
	OpPushI8:               op("push_i8", FmtI8, 0, 1),
	OpPushI16:              op("push_i16", FmtI16, 0, 1),
	OpPushConst8:           op("push_const8", FmtConst8, 0, 1),
	OpFClosure8:            op("fclosure8", FmtConst8, 0, 1),
	OpPushEmptyString:      op("push_empty_string", FmtNone, 0, 1),
	OpGetLoc8:              op("get_loc8", FmtLoc8, 0, 1),
	OpPutLoc8:              op("put_loc8", FmtLoc8, 1, 0),
	OpSetLoc8:              op("set_loc8", FmtLoc8, 1, 1),
	OpGetLoc0Loc1:          short("get_loc0_loc1", 0, 2, 0),
	OpGetLoc0:              short("get_loc0", 0, 1, 0),
	OpGetLoc1:              short("get_loc1", 0, 1, 1),
	OpGetLoc2:              short("get_loc2", 0, 1, 2),
	OpGetLoc3:              short("get_loc3", 0, 1, 3),
	OpPutLoc0:              short("put_loc0", 1, 0, 0),
	OpPutLoc1:              short("put_loc1", 1, 0, 1),
	OpPutLoc2:              short("put_loc2", 1, 0, 2),
	OpPutLoc3:              short("put_loc3", 1, 0, 3),
	OpSetLoc0:              short("set_loc0", 1, 1, 0),
	OpSetLoc1:              short("set_loc1", 1, 1, 1),
	OpSetLoc2:              short("set_loc2", 1, 1, 2),
	OpSetLoc3:              short("set_loc3", 1, 1, 3),
	OpGetArg0:              short("get_arg0", 0, 1, 0),
	OpGetArg1:              short("get_arg1", 0, 1, 1),
	OpGetArg2:              short("get_arg2", 0, 1, 2),
	OpGetArg3:              short("get_arg3", 0, 1, 3),
	OpPutArg0:              short("put_arg0", 1, 0, 0),
	OpPutArg1:              short("put_arg1", 1, 0, 1),
	OpPutArg2:              short("put_arg2", 1, 0, 2),
	OpPutArg3:              short("put_arg3", 1, 0, 3),
	OpSetArg0:              short("set_arg0", 1, 1, 0),
	OpSetArg1:              short("set_arg1", 1, 1, 1),
	OpSetArg2:              short("set_arg2", 1, 1, 2),
	OpSetArg3:              short("set_arg3", 1, 1, 3),
	OpGetVarRef0:           short("get_var_ref0", 0, 1, 0),
	OpGetVarRef1:           short("get_var_ref1", 0, 1, 1),
	OpGetVarRef2:           short("get_var_ref2", 0, 1, 2),
	OpGetVarRef3:           short("get_var_ref3", 0, 1, 3),
	OpPutVarRef0:           short("put_var_ref0", 1, 0, 0),
	OpPutVarRef1:           short("put_var_ref1", 1, 0, 1),
	OpPutVarRef2:           short("put_var_ref2", 1, 0, 2),
	OpPutVarRef3:           short("put_var_ref3", 1, 0, 3),
	OpSetVarRef0:           short("set_var_ref0", 1, 1, 0),
	OpSetVarRef1:           short("set_var_ref1", 1, 1, 1),
	OpSetVarRef2:           short("set_var_ref2", 1, 1, 2),
	OpSetVarRef3:           short("set_var_ref3", 1, 1, 3),
	OpGetLength:            op("get_length", FmtNone, 1, 1),
	OpIfFalse8:             op("if_false8", FmtLabel8, 1, 0),
	OpIfTrue8:              op("if_true8", FmtLabel8, 1, 0),
	OpGoTo8:                op("goto8", FmtLabel8, 0, 0),
	OpGoTo16:               op("goto16", FmtLabel16, 0, 0),
	OpCall0:                short("call0", 1, 1, 0),
	OpCall1:                short("call1", 1, 1, 1),
	OpCall2:                short("call2", 1, 1, 2),
	OpCall3:                short("call3", 1, 1, 3),
	OpIsUndefined:          op("is_undefined", FmtNone, 1, 1),
	OpIsNull:               op("is_null", FmtNone, 1, 1),
	OpTypeOfIsUndefined:    op("typeof_is_undefined", FmtNone, 1, 1),
	OpTypeOfIsFunction:     op("typeof_is_function", FmtNone, 1, 1),
}

// Valid reports whether the opcode is part of the recognized set.
func (o Opcode) Valid() bool {
	return opTable[o].valid
}

// Format returns the immediate layout of the opcode.
func (o Opcode) Format() Format {
	return opTable[o].format
}

// Size returns the encoded size of the instruction including the opcode byte.
func (o Opcode) Size() int {
	return 1 + opTable[o].format.Size()
}

func (o Opcode) String() string {
	if info := opTable[o]; info.valid {
		return info.name
	}
	if o == OpInvalid {
		return "invalid"
	}
	return "unknown"
}

// NameFromByte returns the canonical name of an opcode byte, "invalid" for
// the reserved zero byte and "unknown" outside the recognized set.
func NameFromByte(b byte) string {
	return Opcode(b).String()
}

// IsJump reports whether the opcode transfers control to a label.
func (o Opcode) IsJump() bool {
	return opTable[o].format.IsJump()
}

// IsTerminator reports whether control never falls through to the next
// instruction.
func (o Opcode) IsTerminator() bool {
	switch o {
	case OpGoTo, OpGoTo8, OpGoTo16, OpReturn, OpReturnUndef, OpReturnAsync,
		OpThrow, OpThrowError, OpTailCall, OpTailCallMethod, OpRet:
		return true
	}
	return false
}

// IsConditional reports whether the opcode is a two-way branch.
func (o Opcode) IsConditional() bool {
	switch o {
	case OpIfFalse, OpIfTrue, OpIfFalse8, OpIfTrue8:
		return true
	}
	return false
}

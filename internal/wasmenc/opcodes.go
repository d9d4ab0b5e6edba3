package wasmenc

import "github.com/tetratelabs/wazero/api"

// ValType is a value type encoding; it shares wazero's byte values.
type ValType = api.ValueType

const (
	I32 = api.ValueTypeI32
	I64 = api.ValueTypeI64
	F32 = api.ValueTypeF32
	F64 = api.ValueTypeF64
)

const (
	magic   uint32 = 0x6D736100
	version uint32 = 0x01

	funcTypeByte byte = 0x60
	blockVoid    byte = 0x40
)

// Section IDs.
const (
	SectionCustom   byte = 0
	SectionType     byte = 1
	SectionImport   byte = 2
	SectionFunction byte = 3
	SectionMemory   byte = 5
	SectionGlobal   byte = 6
	SectionExport   byte = 7
	SectionStart    byte = 8
	SectionCode     byte = 10
)

// Import and export kinds.
const (
	KindFunc   byte = 0
	KindMemory byte = 2
	KindGlobal byte = 3
)

// Opcodes used by the generator.
const (
	opUnreachable byte = 0x00
	opNop         byte = 0x01
	opBlock       byte = 0x02
	opLoop        byte = 0x03
	opIf          byte = 0x04
	opElse        byte = 0x05
	opEnd         byte = 0x0B
	opBr          byte = 0x0C
	opBrIf        byte = 0x0D
	opBrTable     byte = 0x0E
	opReturn      byte = 0x0F
	opCall        byte = 0x10
	opDrop        byte = 0x1A
	opSelect      byte = 0x1B

	opLocalGet  byte = 0x20
	opLocalSet  byte = 0x21
	opLocalTee  byte = 0x22
	opGlobalGet byte = 0x23
	opGlobalSet byte = 0x24

	opI32Load  byte = 0x28
	opI64Load  byte = 0x29
	opI32Store byte = 0x36
	opI64Store byte = 0x37

	opMemorySize byte = 0x3F
	opMemoryGrow byte = 0x40

	opI32Const byte = 0x41
	opI64Const byte = 0x42
	opF64Const byte = 0x44

	opPrefixMisc  byte   = 0xFC
	miscMemCopy   uint32 = 10
	miscMemFill   uint32 = 11
	memArgAlign64 uint32 = 3
	memArgAlign32 uint32 = 2
)

// Op is a numeric instruction without immediates.
type Op byte

// Numeric instructions.
const (
	I32Eqz Op = 0x45
	I32Eq  Op = 0x46
	I32Ne  Op = 0x47
	I32LtS Op = 0x48
	I32LtU Op = 0x49
	I32GtS Op = 0x4A
	I32GtU Op = 0x4B
	I32LeS Op = 0x4C
	I32LeU Op = 0x4D
	I32GeS Op = 0x4E
	I32GeU Op = 0x4F

	I64Eqz Op = 0x50
	I64Eq  Op = 0x51
	I64Ne  Op = 0x52
	I64LtS Op = 0x53
	I64LtU Op = 0x54
	I64GtS Op = 0x55
	I64GtU Op = 0x56
	I64LeS Op = 0x57
	I64LeU Op = 0x58
	I64GeS Op = 0x59
	I64GeU Op = 0x5A

	I32Add  Op = 0x6A
	I32Sub  Op = 0x6B
	I32Mul  Op = 0x6C
	I32And  Op = 0x71
	I32Or   Op = 0x72
	I32Xor  Op = 0x73
	I32Shl  Op = 0x74
	I32ShrS Op = 0x75
	I32ShrU Op = 0x76

	I64Add  Op = 0x7C
	I64Sub  Op = 0x7D
	I64Mul  Op = 0x7E
	I64And  Op = 0x83
	I64Or   Op = 0x84
	I64Xor  Op = 0x85
	I64Shl  Op = 0x86
	I64ShrS Op = 0x87
	I64ShrU Op = 0x88

	I32WrapI64    Op = 0xA7
	I64ExtendI32S Op = 0xAC
	I64ExtendI32U Op = 0xAD
)

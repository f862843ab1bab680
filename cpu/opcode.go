// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package cpu

import (
	"fmt"
	"strings"
)

// Op is an instruction operation.
type Op int

const (
	OP_INVALID      = Op(iota) // .word
	OP_HALT                    // halt
	OP_IMMEDIATE               // imm
	OP_EXCHANGE                // exch
	OP_NOT                     // not
	OP_ROTATE_LEFT             // rotl
	OP_ROTATE_RIGHT            // rotr
	OP_INCREMENT               // inc
	OP_DECREMENT               // dec
	OP_PUSH                    // push
	OP_POP                     // pop
	OP_SWAP_BR                 // swb
	OP_REV_SWAP_BR             // rswb
	OP_SWAP                    // swp
	OP_CNOT                    // cnot
	OP_CADD                    // cadd
	OP_CSUB                    // csub
	OP_CCNOT                   // toff
	OP_CSWAP                   // fredk
	OP_BRANCH                  // br
	OP_BR_GEZ                  // bgez
	OP_BR_LZ                   // blz
	OP_BR_EVEN                 // bev
	OP_BR_ODD                  // bod
	OP_GOTO                    // goto
	OP_COMEFROM                // cmfr
	OP_DEV_PUSH                // dpush
	OP_DEV_POP                 // dpop
	op_count
)

//go:generate go tool stringer -linecomment -type=ArgKind

// ArgKind is the kind of an instruction operand.
type ArgKind int

const (
	ARG_REG     = ArgKind(0) // register
	ARG_DEVICE  = ArgKind(1) // device
	ARG_IMM8    = ArgKind(2) // immediate
	ARG_OFFSET  = ArgKind(3) // offset
	ARG_ADDRESS = ArgKind(4) // address
)

// Max returns the largest value an operand of this kind can hold.
func (kind ArgKind) Max() uint16 {
	switch kind {
	case ARG_REG, ARG_DEVICE:
		return 0xf
	case ARG_IMM8:
		return 0xff
	default:
		return 0xfff
	}
}

// CodeLayout is the bit layout of an instruction word.
//
//	UNARY    cccc ssss ssss rrrr
//	REG_IMM8 cccc rrrr iiii iiii
//	BINARY   cccc ssss aaaa bbbb
//	TERNARY  cccc aaaa bbbb tttt
//	IMM12    cccc iiii iiii iiii
//
// cccc is the class nibble, s the sub-opcode within the class.
type CodeLayout int

const (
	LAYOUT_UNARY    = CodeLayout(0)
	LAYOUT_REG_IMM8 = CodeLayout(1)
	LAYOUT_BINARY   = CodeLayout(2)
	LAYOUT_TERNARY  = CodeLayout(3)
	LAYOUT_IMM12    = CodeLayout(4)
)

type opInfo struct {
	Mnemonic string
	Layout   CodeLayout
	Class    uint16
	Sub      uint16
	Args     []ArgKind
}

var (
	argsR   = []ArgKind{ARG_REG}
	argsRR  = []ArgKind{ARG_REG, ARG_REG}
	argsRRR = []ArgKind{ARG_REG, ARG_REG, ARG_REG}
	argsRI  = []ArgKind{ARG_REG, ARG_IMM8}
	argsDR  = []ArgKind{ARG_DEVICE, ARG_REG}
)

var opTable = [op_count]opInfo{
	OP_INVALID:      {".word", LAYOUT_IMM12, 0xf, 0, nil},
	OP_HALT:         {"halt", LAYOUT_UNARY, 0x0, 0x00, nil},
	OP_NOT:          {"not", LAYOUT_UNARY, 0x0, 0x01, argsR},
	OP_ROTATE_LEFT:  {"rotl", LAYOUT_UNARY, 0x0, 0x02, argsR},
	OP_ROTATE_RIGHT: {"rotr", LAYOUT_UNARY, 0x0, 0x03, argsR},
	OP_INCREMENT:    {"inc", LAYOUT_UNARY, 0x0, 0x04, argsR},
	OP_DECREMENT:    {"dec", LAYOUT_UNARY, 0x0, 0x05, argsR},
	OP_PUSH:         {"push", LAYOUT_UNARY, 0x0, 0x06, argsR},
	OP_POP:          {"pop", LAYOUT_UNARY, 0x0, 0x07, argsR},
	OP_SWAP_BR:      {"swb", LAYOUT_UNARY, 0x0, 0x08, argsR},
	OP_REV_SWAP_BR:  {"rswb", LAYOUT_UNARY, 0x0, 0x09, argsR},
	OP_IMMEDIATE:    {"imm", LAYOUT_REG_IMM8, 0x1, 0, argsRI},
	OP_SWAP:         {"swp", LAYOUT_BINARY, 0x2, 0x0, argsRR},
	OP_CNOT:         {"cnot", LAYOUT_BINARY, 0x2, 0x1, argsRR},
	OP_CADD:         {"cadd", LAYOUT_BINARY, 0x2, 0x2, argsRR},
	OP_CSUB:         {"csub", LAYOUT_BINARY, 0x2, 0x3, argsRR},
	OP_EXCHANGE:     {"exch", LAYOUT_BINARY, 0x2, 0x4, argsRR},
	OP_DEV_PUSH:     {"dpush", LAYOUT_BINARY, 0x2, 0x5, argsDR},
	OP_DEV_POP:      {"dpop", LAYOUT_BINARY, 0x2, 0x6, argsDR},
	OP_CCNOT:        {"toff", LAYOUT_TERNARY, 0x3, 0, argsRRR},
	OP_CSWAP:        {"fredk", LAYOUT_TERNARY, 0x4, 0, argsRRR},
	OP_BRANCH:       {"br", LAYOUT_IMM12, 0x5, 0, []ArgKind{ARG_OFFSET}},
	OP_BR_GEZ:       {"bgez", LAYOUT_REG_IMM8, 0x6, 0, argsRI},
	OP_BR_LZ:        {"blz", LAYOUT_REG_IMM8, 0x7, 0, argsRI},
	OP_BR_EVEN:      {"bev", LAYOUT_REG_IMM8, 0x8, 0, argsRI},
	OP_BR_ODD:       {"bod", LAYOUT_REG_IMM8, 0x9, 0, argsRI},
	OP_GOTO:         {"goto", LAYOUT_IMM12, 0xa, 0, []ArgKind{ARG_ADDRESS}},
	OP_COMEFROM:     {"cmfr", LAYOUT_IMM12, 0xb, 0, []ArgKind{ARG_ADDRESS}},
}

// mnemonicAlias maps alternate mnemonics.
var mnemonicAlias = map[string]Op{
	"ccnot": OP_CCNOT,
	"cswp":  OP_CSWAP,
}

var (
	mnemonicMap = map[string]Op{}
	classLayout [16]CodeLayout
	classUsed   [16]bool
	decodeTable [16][256]Op
)

func init() {
	for op := OP_HALT; op < op_count; op++ {
		info := &opTable[op]
		mnemonicMap[info.Mnemonic] = op
		classLayout[info.Class] = info.Layout
		classUsed[info.Class] = true
		decodeTable[info.Class][info.Sub] = op
	}
	for name, op := range mnemonicAlias {
		mnemonicMap[name] = op
	}
}

// LookupMnemonic returns the operation named by an assembler mnemonic.
func LookupMnemonic(name string) (op Op, ok bool) {
	op, ok = mnemonicMap[name]
	return
}

func (op Op) valid() bool {
	return op > OP_INVALID && op < op_count
}

// Mnemonic returns the canonical assembler mnemonic.
func (op Op) Mnemonic() string {
	if op < 0 || op >= op_count {
		return fmt.Sprintf("Op(%d)", int(op))
	}
	return opTable[op].Mnemonic
}

func (op Op) String() string {
	return op.Mnemonic()
}

// Args returns the operand kinds, in assembler order.
func (op Op) Args() []ArgKind {
	if !op.valid() {
		return nil
	}
	return opTable[op].Args
}

// Instruction is a single decoded machine instruction.
//
// Arg holds the operands in assembler order; unused operands are zero.
// For OP_INVALID, Arg[0] holds the undecodable word.
type Instruction struct {
	Op  Op
	Arg [3]uint16
}

// MakeInstruction creates an instruction from an operation and its operands.
func MakeInstruction(op Op, args ...uint16) (ins Instruction) {
	ins.Op = op
	copy(ins.Arg[:], args)
	return
}

// Validate checks operand ranges and the distinctness rules of the
// reversible gates.
func (ins Instruction) Validate() (err error) {
	if !ins.Op.valid() {
		return ErrOpcode(ins.Encode())
	}

	for n, kind := range ins.Op.Args() {
		if ins.Arg[n] > kind.Max() {
			return ErrValueRange{Word: fmt.Sprintf("%d", ins.Arg[n]), Kind: kind}
		}
	}

	a := ins.Arg
	switch ins.Op {
	case OP_CNOT, OP_CADD, OP_CSUB:
		if a[0] == a[1] {
			err = ErrOperandDistinct(ins)
		}
	case OP_CCNOT:
		// target must differ from both controls
		if a[2] == a[0] || a[2] == a[1] {
			err = ErrOperandDistinct(ins)
		}
	case OP_CSWAP:
		// control must differ from both targets
		if a[0] == a[1] || a[0] == a[2] {
			err = ErrOperandDistinct(ins)
		}
	}

	return
}

// Encode returns the 16-bit machine word for the instruction.
// Operands are masked to their field widths; range checks belong to Validate.
func (ins Instruction) Encode() (word uint16) {
	if !ins.Op.valid() {
		return ins.Arg[0]
	}

	info := &opTable[ins.Op]
	a := ins.Arg

	word = info.Class << 12
	switch info.Layout {
	case LAYOUT_UNARY:
		word |= (info.Sub & 0xff) << 4
		if len(info.Args) > 0 {
			word |= a[0] & 0xf
		}
	case LAYOUT_REG_IMM8:
		word |= ((a[0] & 0xf) << 8) | (a[1] & 0xff)
	case LAYOUT_BINARY:
		word |= ((info.Sub & 0xf) << 8) | ((a[0] & 0xf) << 4) | (a[1] & 0xf)
	case LAYOUT_TERNARY:
		word |= ((a[0] & 0xf) << 8) | ((a[1] & 0xf) << 4) | (a[2] & 0xf)
	case LAYOUT_IMM12:
		word |= a[0] & 0xfff
	}

	return
}

// Decode converts a machine word into an instruction. Every word decodes;
// words with no assigned encoding yield OP_INVALID holding the word, so that
// Decode(w).Encode() == w for all w.
func Decode(word uint16) (ins Instruction) {
	class := word >> 12
	invalid := Instruction{Op: OP_INVALID, Arg: [3]uint16{word}}

	if !classUsed[class] {
		return invalid
	}

	layout := classLayout[class]

	var sub uint16
	switch layout {
	case LAYOUT_UNARY:
		sub = (word >> 4) & 0xff
	case LAYOUT_BINARY:
		sub = (word >> 8) & 0xf
	}

	op := decodeTable[class][sub]
	if op == OP_INVALID {
		return invalid
	}

	ins.Op = op
	switch layout {
	case LAYOUT_UNARY:
		if len(op.Args()) > 0 {
			ins.Arg[0] = word & 0xf
		}
	case LAYOUT_REG_IMM8:
		ins.Arg[0] = (word >> 8) & 0xf
		ins.Arg[1] = word & 0xff
	case LAYOUT_BINARY:
		ins.Arg[0] = (word >> 4) & 0xf
		ins.Arg[1] = word & 0xf
	case LAYOUT_TERNARY:
		ins.Arg[0] = (word >> 8) & 0xf
		ins.Arg[1] = (word >> 4) & 0xf
		ins.Arg[2] = word & 0xf
	case LAYOUT_IMM12:
		ins.Arg[0] = word & 0xfff
	}

	// Reject words with stray bits in unused fields (halt's register nibble).
	if ins.Encode() != word {
		return invalid
	}

	return
}

// String returns the assembly language representation of this instruction.
func (ins Instruction) String() string {
	if !ins.Op.valid() {
		return fmt.Sprintf(".word 0x%04x", ins.Arg[0])
	}

	words := []string{ins.Op.Mnemonic()}
	for n, kind := range ins.Op.Args() {
		switch kind {
		case ARG_REG:
			words = append(words, fmt.Sprintf("r%d", ins.Arg[n]))
		default:
			words = append(words, fmt.Sprintf("%d", ins.Arg[n]))
		}
	}

	return strings.Join(words, " ")
}

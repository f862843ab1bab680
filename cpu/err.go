package cpu

import (
	"errors"

	"github.com/ezrec/rel/translate"
)

var f = translate.From

var (
	// Error classes, for use with errors.Is()
	ErrSyntaxInvalid = errors.New(f("syntax"))
	ErrValidation    = errors.New(f("validation"))

	// Cpu errors
	ErrCpuHalted    = errors.New(f("cpu halted"))
	ErrOpcodeDecode = errors.New(f("decode"))
	ErrOpcodeDevice = errors.New(f("device"))

	// Object errors
	ErrObjectTruncated = errors.New(f("object has a trailing odd byte"))
	ErrObjectTooLarge  = errors.New(f("object larger than program memory"))
	ErrObjectSource    = errors.New(f("object would overwrite its source"))

	// Assembler errors
	ErrEquateSyntax    = errors.New(f(".equ syntax"))
	ErrEquateDuplicate = errors.New(f(".equ duplicated"))
	ErrLabelDuplicate  = errors.New(f("label duplicated"))
	ErrLabelSyntax     = errors.New(f("label syntax"))
)

type ErrOpcode uint16

func (eo ErrOpcode) Error() string {
	return f("bad opcode 0x%04x %v", uint16(eo), Decode(uint16(eo)).String())
}

func (eo ErrOpcode) Is(err error) (ok bool) {
	_, ok = err.(ErrOpcode)
	return
}

type ErrSyntax struct {
	LineNo int
	Line   string
	Err    error
}

func (err ErrSyntax) Error() string {
	return f("line %d '%v' %v", err.LineNo, err.Line, err.Err)
}

func (err ErrSyntax) Unwrap() error {
	return err.Err
}

type ErrMnemonic string

func (err ErrMnemonic) Error() string {
	return f("unknown opcode mnemonic '%v'", string(err))
}

func (err ErrMnemonic) Is(target error) bool {
	return target == ErrSyntaxInvalid
}

type ErrParseRegister string

func (err ErrParseRegister) Error() string {
	return f("expected register literal, found '%v'", string(err))
}

func (err ErrParseRegister) Is(target error) bool {
	return target == ErrSyntaxInvalid
}

type ErrParseNumber string

func (err ErrParseNumber) Error() string {
	return f("'%v' is not a number", string(err))
}

func (err ErrParseNumber) Is(target error) bool {
	return target == ErrSyntaxInvalid
}

type ErrParseExpression string

func (err ErrParseExpression) Error() string {
	return f("$(%v) is not a valid expression", string(err))
}

func (err ErrParseExpression) Is(target error) bool {
	return target == ErrSyntaxInvalid
}

// ErrOperandMissing names the kind of the absent operand.
type ErrOperandMissing ArgKind

func (err ErrOperandMissing) Error() string {
	return f("%v argument not found", ArgKind(err).String())
}

func (err ErrOperandMissing) Is(target error) bool {
	return target == ErrSyntaxInvalid
}

type ErrExtraToken string

func (err ErrExtraToken) Error() string {
	return f("expected comment or line break, found '%v'", string(err))
}

func (err ErrExtraToken) Is(target error) bool {
	return target == ErrSyntaxInvalid
}

type ErrValueRange struct {
	Word string
	Kind ArgKind
}

func (err ErrValueRange) Error() string {
	return f("value '%v' too big for %v argument", err.Word, err.Kind.String())
}

func (err ErrValueRange) Is(target error) bool {
	return target == ErrValidation
}

// ErrOperandDistinct is a reversible gate whose controls alias its targets.
type ErrOperandDistinct Instruction

func (err ErrOperandDistinct) Error() string {
	return f("controlled argument used in mutable argument of '%v'", Instruction(err).String())
}

func (err ErrOperandDistinct) Is(target error) bool {
	return target == ErrValidation
}

type ErrLabelMissing string

func (el ErrLabelMissing) Error() string {
	return f("label %v missing", string(el))
}

func (el ErrLabelMissing) Is(target error) bool {
	return target == ErrValidation
}

package cpu

import (
	"encoding/binary"
	"fmt"
	"io"
	"iter"
)

// Opcode represents a line of assembled code with its source location and
// generated instruction.
type Opcode struct {
	LineNo      int
	Ip          int
	Words       []string
	Instruction Instruction
	LinkLabel   string
}

type Program struct {
	Opcodes []Opcode
}

type Debug struct {
	*Opcode
}

// Debug finds the source opcode for a program memory index.
func (prog *Program) Debug(ip uint16) (dbg Debug) {
	if prog == nil {
		return
	}

	for n := range prog.Opcodes {
		if prog.Opcodes[n].Ip == int(ip) {
			dbg.Opcode = &prog.Opcodes[n]
			break
		}
	}

	return
}

// Instructions returns an iterator of the program's instructions, by
// program memory index.
func (prog *Program) Instructions() iter.Seq2[uint16, Instruction] {
	return func(yield func(ip uint16, ins Instruction) bool) {
		for _, op := range prog.Opcodes {
			if !yield(uint16(op.Ip), op.Instruction) {
				return
			}
		}
	}
}

// Code returns the decoded program, in program order.
func (prog *Program) Code() (code []Instruction) {
	for _, ins := range prog.Instructions() {
		code = append(code, ins)
	}
	return
}

// Binary returns the encoded program words.
func (prog *Program) Binary() (bins []uint16) {
	for _, ins := range prog.Instructions() {
		bins = append(bins, ins.Encode())
	}
	return
}

// WriteTo writes the program as an object: one big-endian word per
// instruction, no header.
func (prog *Program) WriteTo(w io.Writer) (n int64, err error) {
	var data [2]byte
	for _, word := range prog.Binary() {
		binary.BigEndian.PutUint16(data[:], word)
		var wrote int
		wrote, err = w.Write(data[:])
		n += int64(wrote)
		if err != nil {
			return
		}
		if wrote != len(data) {
			err = io.ErrShortWrite
			return
		}
	}

	return
}

// String returns a listing of the assembled program.
func (prog *Program) String() (text string) {
	for _, op := range prog.Opcodes {
		text += fmt.Sprintf("%04x: %04x  %-20v ; line %d\n", op.Ip, op.Instruction.Encode(), op.Instruction, op.LineNo)
	}
	return
}

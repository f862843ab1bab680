// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package emulator

import (
	"fmt"
	"iter"
	"log"
	"strings"

	"github.com/ezrec/rel/cpu"
	"github.com/ezrec/rel/device"
	"github.com/ezrec/rel/internal"
)

// Emulator state. CPU + device bus + program listing.
type Emulator struct {
	Verbose  bool         // If set, logs every executed step.
	*cpu.Cpu              // Reference to the CPU simulation.
	Program  *cpu.Program // Listing of the loaded program, if assembled here.
	Bus      device.Bus   // Device bus.

	predefine map[string]string
}

// NewEmulator creates a new emulator with an empty program.
func NewEmulator() (emu *Emulator) {
	emu = &Emulator{
		Program: &cpu.Program{},
	}

	emu.Cpu, _ = cpu.NewCpu(nil, &emu.Bus)

	return
}

// Defines returns an iterator over all of the defines
func (emu *Emulator) Defines() iter.Seq2[string, string] {
	return internal.Concat2(
		emu.Cpu.Defines(),
		emu.Bus.Defines(),
	)
}

// Predefine adds an assembler equate, overriding the emulator defines.
func (emu *Emulator) Predefine(equ string, value string) {
	if emu.predefine == nil {
		emu.predefine = map[string]string{}
	}
	emu.predefine[equ] = value
}

// Assemble compiles a source file into an object file.
func (emu *Emulator) Assemble(src string, obj string) (err error) {
	asm := &cpu.Assembler{Verbose: emu.Verbose}
	for equ, value := range emu.Defines() {
		asm.Predefine(equ, value)
	}
	for equ, value := range emu.predefine {
		asm.Predefine(equ, value)
	}

	prog, err := asm.AssembleFile(src, obj)
	if err != nil {
		return
	}

	emu.Program = prog

	return
}

// Load reads an object file into program memory, and resets the emulator.
func (emu *Emulator) Load(obj string) (err error) {
	code, err := cpu.ReadObjectFile(obj)
	if err != nil {
		return
	}

	err = emu.Cpu.Load(code)
	if err != nil {
		return
	}

	emu.Reset()

	return
}

// Reset the CPU and all devices.
func (emu *Emulator) Reset() {
	emu.Cpu.Reset()
	emu.Bus.Reset()
}

// LineNo returns the source line number of the instruction at the program
// counter, or 0 if unknown.
func (emu *Emulator) LineNo() int {
	dbg := emu.Program.Debug(emu.Cpu.Pc)
	if dbg.Opcode == nil {
		return 0
	}

	return dbg.LineNo
}

// logStep logs a single executed step.
func (emu *Emulator) logStep(step *cpu.Step) {
	log.Printf("PC = 0x%04X: %-17v", step.Next, step.Instruction)

	stack := make([]string, len(step.Stack))
	for n, val := range step.Stack {
		stack[n] = fmt.Sprintf("0x%04X", val)
	}
	log.Printf("SP = 0x%04X: %v", step.Register[cpu.REG_SP], strings.Join(stack, ", "))

	regs := make([]string, cpu.REG_SP)
	for n := range regs {
		regs[n] = fmt.Sprintf("0x%04X", step.Register[n])
	}
	log.Printf("Registers: [%v]", strings.Join(regs, ", "))
}

// Tick performs a single tick of the emulator.
func (emu *Emulator) Tick() (done bool, err error) {
	if emu.Verbose {
		emu.Cpu.Observer = emu.logStep
	} else {
		emu.Cpu.Observer = nil
	}

	pc := emu.Cpu.Pc
	lineno := emu.LineNo()
	defer func() {
		if err != nil {
			err = &ErrRuntime{Pc: pc, LineNo: lineno, Err: err}
		}
	}()

	err = emu.Cpu.Tick()
	if err != nil {
		return
	}

	done = emu.Cpu.State == cpu.STATE_HALTED

	return
}

// Run ticks the emulator until the CPU halts or faults.
func (emu *Emulator) Run() (err error) {
	for done := false; !done; {
		done, err = emu.Tick()
		if err != nil {
			return
		}
	}

	if emu.Verbose {
		log.Printf("halted after %d steps\n%v", emu.Cpu.Ticks, emu.Cpu)
	}

	return
}

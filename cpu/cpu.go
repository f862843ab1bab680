// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package cpu

import (
	"errors"
	"fmt"
	"iter"
	"maps"
	"math/bits"
	"slices"

	"github.com/ezrec/rel/device"
)

const (
	REGISTER_COUNT = 16     // Number of general purpose registers.
	REG_SP         = 15     // Stack pointer register, by convention.
	SP_INIT        = 0xffff // Initial stack pointer.
	MEMORY_SIZE    = 65536  // Words of data memory, and of program memory.
)

var _cpu_defines = map[string]string{
	"SP":      fmt.Sprintf("r%d", REG_SP),
	"SP_INIT": fmt.Sprintf("%#x", SP_INIT),
}

//go:generate go tool stringer -linecomment -type=Direction

// Direction is the direction of program counter travel.
type Direction int

const (
	DIR_FORWARD = Direction(0) // forward
	DIR_REVERSE = Direction(1) // reverse
)

//go:generate go tool stringer -linecomment -type=State

// State is the run state of the CPU.
type State int

const (
	STATE_RUNNING = State(0) // running
	STATE_HALTED  = State(1) // halted
)

// Step is the CPU state reported to an Observer after each executed
// instruction.
type Step struct {
	Pc          uint16                 // Address the instruction was fetched from.
	Next        uint16                 // Program counter after the advance.
	Instruction Instruction            // Executed instruction.
	Register    [REGISTER_COUNT]uint16 // Register bank after execution.
	Stack       []uint16               // Data memory from the stack pointer up.
}

// Cpu is the simulation context of the reversible CPU.
type Cpu struct {
	Observer func(step *Step) // If set, called after each non-halt instruction.

	Pc       uint16                 // Program counter.
	Br       uint16                 // Branch register.
	Dir      Direction              // Direction flag.
	State    State                  // Run state.
	Register [REGISTER_COUNT]uint16 // Register bank.
	Data     [MEMORY_SIZE]uint16    // Data memory.
	Program  [MEMORY_SIZE]uint16    // Program memory.

	Ticks int         // Executed non-halt instructions since reset.
	Bus   *device.Bus // Device bus; may be nil when no devices are attached.
}

// NewCpu creates a new CPU with a decoded program loaded.
func NewCpu(code []Instruction, bus *device.Bus) (cpu *Cpu, err error) {
	cpu = &Cpu{
		Bus: bus,
	}

	err = cpu.Load(code)
	if err != nil {
		cpu = nil
		return
	}

	return
}

// Defines for the cpu
func (cpu *Cpu) Defines() iter.Seq2[string, string] {
	return maps.All(_cpu_defines)
}

// Load replaces program memory with a decoded program, and resets the CPU.
func (cpu *Cpu) Load(code []Instruction) (err error) {
	if len(code) > len(cpu.Program) {
		err = ErrObjectTooLarge
		return
	}

	clear(cpu.Program[:])
	for n, ins := range code {
		cpu.Program[n] = ins.Encode()
	}

	cpu.Reset()

	return
}

// Reset the CPU state.
// - Clears the registers, branch register and data memory.
// - Sets the stack pointer to SP_INIT.
// - Sets the program counter to 0, running forward.
// Program memory is unchanged.
func (cpu *Cpu) Reset() {
	cpu.Pc = 0
	cpu.Br = 0
	cpu.Dir = DIR_FORWARD
	cpu.State = STATE_RUNNING
	cpu.Ticks = 0

	clear(cpu.Register[:])
	cpu.Register[REG_SP] = SP_INIT
	clear(cpu.Data[:])
}

// String returns the current CPU state as a string.
func (cpu *Cpu) String() (text string) {
	text += fmt.Sprintf("   pc: 0x%04X\n", cpu.Pc)
	text += fmt.Sprintf("   br: 0x%04X\n", cpu.Br)
	text += fmt.Sprintf("  dir: %v\n", cpu.Dir)
	for n, val := range cpu.Register {
		text += fmt.Sprintf("% 5s: 0x%04X\n", fmt.Sprintf("r%d", n), val)
	}

	return
}

// Fetch returns the instruction at the program counter.
func (cpu *Cpu) Fetch() Instruction {
	return Decode(cpu.Program[cpu.Pc])
}

// advance moves the program counter by the branch register, or by 1 when
// the branch register is zero.
func (cpu *Cpu) advance() {
	step := cpu.Br
	if step == 0 {
		step = 1
	}

	if cpu.Dir == DIR_FORWARD {
		cpu.Pc += step
	} else {
		cpu.Pc -= step
	}
}

// Tick executes a single fetch, advance, execute cycle.
// A fault halts the CPU.
func (cpu *Cpu) Tick() (err error) {
	if cpu.State != STATE_RUNNING {
		err = ErrCpuHalted
		return
	}

	// No new devices once the CPU is running.
	if cpu.Bus != nil {
		cpu.Bus.Seal()
	}

	pc := cpu.Pc
	ins := cpu.Fetch()
	cpu.advance()

	err = cpu.Execute(ins)
	if err != nil {
		cpu.State = STATE_HALTED
		return
	}

	if ins.Op == OP_HALT {
		return
	}

	cpu.Ticks += 1

	if cpu.Observer != nil {
		sp := cpu.Register[REG_SP]
		cpu.Observer(&Step{
			Pc:          pc,
			Next:        cpu.Pc,
			Instruction: ins,
			Register:    cpu.Register,
			Stack:       slices.Clone(cpu.Data[sp:]),
		})
	}

	return
}

// Run ticks the CPU until it halts or faults.
func (cpu *Cpu) Run() (err error) {
	for cpu.State == STATE_RUNNING {
		err = cpu.Tick()
		if err != nil {
			return
		}
	}

	return
}

// device returns the bus device at an index.
func (cpu *Cpu) device(index uint16) (dev device.Device, err error) {
	if cpu.Bus == nil {
		err = device.ErrDeviceInvalid
		return
	}

	return cpu.Bus.Device(int(index))
}

// Execute executes a single decoded instruction.
func (cpu *Cpu) Execute(ins Instruction) (err error) {
	defer func() {
		if err != nil {
			err = errors.Join(ErrOpcode(ins.Encode()), err)
		}
	}()

	if !ins.Op.valid() {
		err = ErrOpcodeDecode
		return
	}

	// Operand ranges, and gate distinctness surviving to runtime.
	err = ins.Validate()
	if err != nil {
		return
	}

	reg := &cpu.Register
	data := &cpu.Data
	a := ins.Arg

	switch ins.Op {
	case OP_HALT:
		cpu.State = STATE_HALTED
	case OP_IMMEDIATE:
		reg[a[0]] ^= a[1]
	case OP_EXCHANGE:
		addr := reg[a[1]]
		reg[a[0]], data[addr] = data[addr], reg[a[0]]
	case OP_NOT:
		reg[a[0]] = ^reg[a[0]]
	case OP_ROTATE_LEFT:
		reg[a[0]] = bits.RotateLeft16(reg[a[0]], 1)
	case OP_ROTATE_RIGHT:
		reg[a[0]] = bits.RotateLeft16(reg[a[0]], -1)
	case OP_INCREMENT:
		reg[a[0]]++
	case OP_DECREMENT:
		reg[a[0]]--
	case OP_PUSH:
		sp := reg[REG_SP] - 1
		reg[a[0]], data[sp] = data[sp], reg[a[0]]
		reg[REG_SP] = sp
	case OP_POP:
		sp := reg[REG_SP]
		reg[a[0]], data[sp] = data[sp], reg[a[0]]
		reg[REG_SP] = sp + 1
	case OP_SWAP_BR:
		cpu.Br, reg[a[0]] = reg[a[0]], cpu.Br
	case OP_REV_SWAP_BR:
		cpu.Br, reg[a[0]] = reg[a[0]], cpu.Br
		cpu.Dir ^= 1
	case OP_SWAP:
		reg[a[0]], reg[a[1]] = reg[a[1]], reg[a[0]]
	case OP_CNOT:
		reg[a[1]] ^= reg[a[0]]
	case OP_CADD:
		reg[a[1]] += reg[a[0]]
	case OP_CSUB:
		reg[a[1]] -= reg[a[0]]
	case OP_CCNOT:
		reg[a[2]] ^= reg[a[0]] & reg[a[1]]
	case OP_CSWAP:
		s := (reg[a[1]] ^ reg[a[2]]) & reg[a[0]]
		reg[a[1]] ^= s
		reg[a[2]] ^= s
	case OP_BRANCH:
		cpu.Br += a[0]
	case OP_BR_GEZ:
		if int16(reg[a[0]]) >= 0 {
			cpu.Br += a[1]
		}
	case OP_BR_LZ:
		if int16(reg[a[0]]) < 0 {
			cpu.Br += a[1]
		}
	case OP_BR_EVEN:
		if reg[a[0]]%2 == 0 {
			cpu.Br += a[1]
		}
	case OP_BR_ODD:
		if reg[a[0]]%2 != 0 {
			cpu.Br += a[1]
		}
	case OP_GOTO:
		// Jump when running forward; a landing site when in reverse.
		if cpu.Dir == DIR_FORWARD {
			cpu.Pc = a[0]
		}
	case OP_COMEFROM:
		// Jump when running in reverse; a landing site when forward.
		if cpu.Dir == DIR_REVERSE {
			cpu.Pc = a[0]
		}
	case OP_DEV_PUSH:
		var dev device.Device
		dev, err = cpu.device(a[0])
		if err != nil {
			err = errors.Join(ErrOpcodeDevice, err)
			return
		}
		dev.Write(reg[a[1]])
		reg[a[1]] = 0
	case OP_DEV_POP:
		var dev device.Device
		dev, err = cpu.device(a[0])
		if err != nil {
			err = errors.Join(ErrOpcodeDevice, err)
			return
		}
		reg[a[1]] ^= dev.Read()
	default:
		err = ErrOpcodeDecode
		return
	}

	return
}

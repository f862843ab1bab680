package cpu

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ezrec/rel/device"
)

// runProgram assembles and runs a program from a reset CPU.
func runProgram(t *testing.T, bus *device.Bus, program ...string) (cpu *Cpu, err error) {
	asm := &Assembler{}
	prog, err := asm.Parse(strings.NewReader(strings.Join(program, "\n")))
	if err != nil {
		t.Fatal(err)
		return
	}

	cpu, err = NewCpu(prog.Code(), bus)
	if err != nil {
		t.Fatal(err)
		return
	}

	err = cpu.Run()
	return
}

func TestCpuReset(t *testing.T) {
	assert := assert.New(t)

	cpu, err := NewCpu([]Instruction{MakeInstruction(OP_NOT, 0)}, nil)
	assert.NoError(err)

	assert.Equal(uint16(0), cpu.Pc)
	assert.Equal(uint16(0), cpu.Br)
	assert.Equal(DIR_FORWARD, cpu.Dir)
	assert.Equal(STATE_RUNNING, cpu.State)
	assert.Equal(uint16(SP_INIT), cpu.Register[REG_SP])
	for n := range REG_SP {
		assert.Equal(uint16(0), cpu.Register[n])
	}
	assert.Equal(uint16(0x0010), cpu.Program[0])
	assert.Equal(uint16(0), cpu.Program[1])

	cpu.Register[0] = 0x1234
	cpu.Data[7] = 0x5678
	cpu.Pc = 9
	cpu.Br = 3
	cpu.Dir = DIR_REVERSE
	cpu.Reset()

	assert.Equal(uint16(0), cpu.Register[0])
	assert.Equal(uint16(0), cpu.Data[7])
	assert.Equal(uint16(0), cpu.Pc)
	assert.Equal(uint16(0), cpu.Br)
	assert.Equal(DIR_FORWARD, cpu.Dir)
	assert.Equal(uint16(0x0010), cpu.Program[0])
}

func TestCpuImmediate(t *testing.T) {
	assert := assert.New(t)

	cpu, err := runProgram(t, nil, "imm r0 5", "halt")
	assert.NoError(err)
	assert.Equal(uint16(5), cpu.Register[0])
	assert.Equal(STATE_HALTED, cpu.State)

	cpu, err = runProgram(t, nil, "imm r0 5", "imm r0 5", "halt")
	assert.NoError(err)
	assert.Equal(uint16(0), cpu.Register[0])
}

func TestCpuRotate(t *testing.T) {
	assert := assert.New(t)

	steps := 0
	asm := &Assembler{}
	prog, err := asm.Parse(strings.NewReader("imm r0 1\nrotl r0\nhalt\n"))
	assert.NoError(err)

	cpu, err := NewCpu(prog.Code(), nil)
	assert.NoError(err)
	cpu.Observer = func(step *Step) {
		assert.Equal(uint16(steps), step.Pc)
		assert.Equal(uint16(steps+1), step.Next)
		assert.Equal(prog.Code()[steps], step.Instruction)
		assert.Equal([]uint16{0}, step.Stack)
		steps++
	}

	err = cpu.Run()
	assert.NoError(err)
	assert.Equal(uint16(2), cpu.Register[0])
	assert.Equal(2, steps)
	assert.Equal(2, cpu.Ticks)

	err = cpu.Tick()
	assert.ErrorIs(err, ErrCpuHalted)
}

func TestCpuUnary(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name   string
		ins    Instruction
		input  uint16
		output uint16
	}){
		{"not", MakeInstruction(OP_NOT, 1), 0x00ff, 0xff00},
		{"rotl", MakeInstruction(OP_ROTATE_LEFT, 1), 0x8001, 0x0003},
		{"rotr", MakeInstruction(OP_ROTATE_RIGHT, 1), 0x8001, 0xc000},
		{"inc", MakeInstruction(OP_INCREMENT, 1), 0xffff, 0x0000},
		{"dec", MakeInstruction(OP_DECREMENT, 1), 0x0000, 0xffff},
		{"imm", MakeInstruction(OP_IMMEDIATE, 1, 0x0f), 0x00ff, 0x00f0},
	}

	for _, entry := range table {
		cpu, err := NewCpu(nil, nil)
		assert.NoError(err)
		cpu.Register[1] = entry.input
		err = cpu.Execute(entry.ins)
		assert.NoError(err, entry.name)
		assert.Equal(entry.output, cpu.Register[1], entry.name)
	}
}

func TestCpuBinary(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name string
		ins  Instruction
		a, b uint16
		x, y uint16
	}){
		{"swp", MakeInstruction(OP_SWAP, 1, 2), 0x1111, 0x2222, 0x2222, 0x1111},
		{"cnot", MakeInstruction(OP_CNOT, 1, 2), 0x0ff0, 0x00ff, 0x0ff0, 0x0f0f},
		{"cadd", MakeInstruction(OP_CADD, 1, 2), 0x0002, 0xffff, 0x0002, 0x0001},
		{"csub", MakeInstruction(OP_CSUB, 1, 2), 0x0002, 0x0001, 0x0002, 0xffff},
	}

	for _, entry := range table {
		cpu, err := NewCpu(nil, nil)
		assert.NoError(err)
		cpu.Register[1] = entry.a
		cpu.Register[2] = entry.b
		err = cpu.Execute(entry.ins)
		assert.NoError(err, entry.name)
		assert.Equal(entry.x, cpu.Register[1], entry.name)
		assert.Equal(entry.y, cpu.Register[2], entry.name)
	}

	cpu, err := NewCpu(nil, nil)
	assert.NoError(err)
	cpu.Execute(MakeInstruction(OP_SWAP, 3, 3))
	assert.Equal(uint16(0), cpu.Register[3])
}

func TestCpuExchange(t *testing.T) {
	assert := assert.New(t)

	cpu, err := NewCpu(nil, nil)
	assert.NoError(err)

	cpu.Register[0] = 0xaaaa
	cpu.Register[1] = 0x1234
	cpu.Data[0x1234] = 0x5555

	err = cpu.Execute(MakeInstruction(OP_EXCHANGE, 0, 1))
	assert.NoError(err)
	assert.Equal(uint16(0x5555), cpu.Register[0])
	assert.Equal(uint16(0xaaaa), cpu.Data[0x1234])
	assert.Equal(uint16(0x1234), cpu.Register[1])
}

func TestCpuPushPop(t *testing.T) {
	assert := assert.New(t)

	cpu, err := NewCpu(nil, nil)
	assert.NoError(err)

	cpu.Register[0] = 0xbeef
	cpu.Data[0xfffe] = 0xcafe

	err = cpu.Execute(MakeInstruction(OP_PUSH, 0))
	assert.NoError(err)
	assert.Equal(uint16(0xfffe), cpu.Register[REG_SP])
	assert.Equal(uint16(0xcafe), cpu.Register[0])
	assert.Equal(uint16(0xbeef), cpu.Data[0xfffe])

	err = cpu.Execute(MakeInstruction(OP_POP, 0))
	assert.NoError(err)
	assert.Equal(uint16(SP_INIT), cpu.Register[REG_SP])
	assert.Equal(uint16(0xbeef), cpu.Register[0])
	assert.Equal(uint16(0xcafe), cpu.Data[0xfffe])

	// pop then push touches the slot at the stack pointer
	cpu.Data[0xffff] = 0x0042
	err = cpu.Execute(MakeInstruction(OP_POP, 1))
	assert.NoError(err)
	assert.Equal(uint16(0x0042), cpu.Register[1])
	assert.Equal(uint16(0x0000), cpu.Register[REG_SP])
}

func TestCpuStackWrap(t *testing.T) {
	assert := assert.New(t)

	cpu, err := NewCpu(nil, nil)
	assert.NoError(err)

	cpu.Register[REG_SP] = 0
	cpu.Register[2] = 7
	err = cpu.Execute(MakeInstruction(OP_PUSH, 2))
	assert.NoError(err)
	assert.Equal(uint16(0xffff), cpu.Register[REG_SP])
	assert.Equal(uint16(7), cpu.Data[0xffff])

	err = cpu.Execute(MakeInstruction(OP_POP, 3))
	assert.NoError(err)
	assert.Equal(uint16(0), cpu.Register[REG_SP])
	assert.Equal(uint16(7), cpu.Register[3])
}

func TestCpuToffoli(t *testing.T) {
	assert := assert.New(t)

	ins := MakeInstruction(OP_CCNOT, 0, 1, 2)
	for _, a := range []uint16{0, 0xffff} {
		for _, b := range []uint16{0, 0xffff} {
			cpu, err := NewCpu(nil, nil)
			assert.NoError(err)
			cpu.Register[0] = a
			cpu.Register[1] = b
			cpu.Register[2] = 0x5a5a

			assert.NoError(cpu.Execute(ins))
			assert.Equal(0x5a5a^(a&b), cpu.Register[2], "a=%x b=%x", a, b)

			assert.NoError(cpu.Execute(ins))
			assert.Equal(uint16(0x5a5a), cpu.Register[2], "a=%x b=%x", a, b)
			assert.Equal(a, cpu.Register[0])
			assert.Equal(b, cpu.Register[1])
		}
	}
}

func TestCpuFredkin(t *testing.T) {
	assert := assert.New(t)

	ins := MakeInstruction(OP_CSWAP, 0, 1, 2)

	cpu, err := NewCpu(nil, nil)
	assert.NoError(err)
	cpu.Register[1] = 0x1234
	cpu.Register[2] = 0xabcd

	assert.NoError(cpu.Execute(ins))
	assert.Equal(uint16(0x1234), cpu.Register[1])
	assert.Equal(uint16(0xabcd), cpu.Register[2])

	cpu.Register[0] = 0xffff
	assert.NoError(cpu.Execute(ins))
	assert.Equal(uint16(0xabcd), cpu.Register[1])
	assert.Equal(uint16(0x1234), cpu.Register[2])

	// bitwise: only the controlled bits swap
	cpu.Register[0] = 0x00ff
	cpu.Register[1] = 0x0000
	cpu.Register[2] = 0xffff
	assert.NoError(cpu.Execute(ins))
	assert.Equal(uint16(0x00ff), cpu.Register[1])
	assert.Equal(uint16(0xff00), cpu.Register[2])
}

func TestCpuGateFault(t *testing.T) {
	assert := assert.New(t)

	table := []Instruction{
		MakeInstruction(OP_CCNOT, 0, 1, 1),
		MakeInstruction(OP_CSWAP, 2, 2, 1),
		MakeInstruction(OP_CNOT, 4, 4),
	}

	for _, ins := range table {
		cpu, err := NewCpu([]Instruction{ins}, nil)
		assert.NoError(err)
		cpu.Register[1] = 0x1111

		err = cpu.Run()
		assert.ErrorIs(err, ErrValidation, ins.String())
		assert.ErrorIs(err, ErrOpcode(0), ins.String())
		assert.Equal(STATE_HALTED, cpu.State)
		assert.Equal(uint16(0x1111), cpu.Register[1], ins.String())
		assert.Equal(0, cpu.Ticks)
	}
}

func TestCpuDecodeFault(t *testing.T) {
	assert := assert.New(t)

	cpu, err := NewCpu([]Instruction{Decode(0xc000)}, nil)
	assert.NoError(err)

	err = cpu.Run()
	assert.ErrorIs(err, ErrOpcodeDecode)
	assert.Equal(STATE_HALTED, cpu.State)
}

func TestCpuBranch(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name  string
		ins   Instruction
		value uint16
		br    uint16
	}){
		{"br", MakeInstruction(OP_BRANCH, 3), 0, 3},
		{"bgez_pos", MakeInstruction(OP_BR_GEZ, 1, 3), 0x7fff, 3},
		{"bgez_neg", MakeInstruction(OP_BR_GEZ, 1, 3), 0x8000, 0},
		{"blz_pos", MakeInstruction(OP_BR_LZ, 1, 3), 0x0000, 0},
		{"blz_neg", MakeInstruction(OP_BR_LZ, 1, 3), 0xffff, 3},
		{"bev_even", MakeInstruction(OP_BR_EVEN, 1, 3), 2, 3},
		{"bev_odd", MakeInstruction(OP_BR_EVEN, 1, 3), 3, 0},
		{"bod_even", MakeInstruction(OP_BR_ODD, 1, 3), 2, 0},
		{"bod_odd", MakeInstruction(OP_BR_ODD, 1, 3), 3, 3},
	}

	for _, entry := range table {
		cpu, err := NewCpu(nil, nil)
		assert.NoError(err)
		cpu.Register[1] = entry.value
		assert.NoError(cpu.Execute(entry.ins), entry.name)
		assert.Equal(entry.br, cpu.Br, entry.name)
	}
}

func TestCpuBranchStep(t *testing.T) {
	assert := assert.New(t)

	// br only changes the step after the instruction that set it.
	cpu, err := runProgram(t, nil,
		"br 2",   // 0: pc advances to 1, then br = 2
		"inc r0", // 1: pc advances to 3
		"inc r1", // 2: skipped
		"swb r2", // 3: pc advances to 5, br = 0, r2 = 2
		"halt",   // 4: skipped
		"inc r3", // 5
		"halt",   // 6
	)
	assert.NoError(err)
	assert.Equal(uint16(1), cpu.Register[0])
	assert.Equal(uint16(0), cpu.Register[1])
	assert.Equal(uint16(2), cpu.Register[2])
	assert.Equal(uint16(1), cpu.Register[3])
	assert.Equal(uint16(7), cpu.Pc)
}

func TestCpuReverse(t *testing.T) {
	assert := assert.New(t)

	// Reversing direction re-executes the XOR loads, undoing them. The
	// reverse run falls off the start of program memory into a zero word,
	// which is a halt.
	cpu, err := runProgram(t, nil,
		"imm r3 2",
		"imm r0 5",
		"rswb r3",
		"swb r3",
	)
	assert.NoError(err)
	assert.Equal(DIR_REVERSE, cpu.Dir)
	assert.Equal(uint16(0), cpu.Register[0])
	assert.Equal(uint16(0), cpu.Register[3])
	assert.Equal(uint16(0), cpu.Br)
	assert.Equal(uint16(0xfffe), cpu.Pc)
	assert.Equal(6, cpu.Ticks)
}

func TestCpuGotoComeFrom(t *testing.T) {
	assert := assert.New(t)

	cpu, err := runProgram(t, nil,
		"goto skip",
		"inc r0",
		"skip: cmfr 0",
		"inc r1",
		"halt",
	)
	assert.NoError(err)
	assert.Equal(uint16(0), cpu.Register[0])
	assert.Equal(uint16(1), cpu.Register[1])

	// In reverse, cmfr jumps back and goto is a landing site.
	cpu, err = NewCpu(nil, nil)
	assert.NoError(err)
	cpu.Dir = DIR_REVERSE
	assert.NoError(cpu.Execute(MakeInstruction(OP_GOTO, 0x100)))
	assert.Equal(uint16(0), cpu.Pc)
	assert.NoError(cpu.Execute(MakeInstruction(OP_COMEFROM, 0x100)))
	assert.Equal(uint16(0x100), cpu.Pc)
}

func TestCpuDevice(t *testing.T) {
	assert := assert.New(t)

	bus := &device.Bus{}
	stack := &device.Stack{}
	_, err := bus.Add(stack)
	assert.NoError(err)

	cpu, err := runProgram(t, bus,
		"imm r0 9",
		"dpush 0 r0",
		"imm r1 4",
		"dpush 0 r1",
		"dpop 0 r0",
		"halt",
	)
	assert.NoError(err)
	assert.Equal(uint16(4), cpu.Register[0])
	assert.Equal(uint16(0), cpu.Register[1])
	assert.Equal([]uint16{9}, stack.Data)
	assert.True(bus.Sealed())

	_, err = bus.Add(&device.Stack{})
	assert.ErrorIs(err, device.ErrBusSealed)

	// Unregistered devices are a fault.
	_, err = runProgram(t, bus, "dpush 1 r0", "halt")
	assert.ErrorIs(err, ErrOpcodeDevice)
	assert.ErrorIs(err, device.ErrDeviceInvalid)

	_, err = runProgram(t, nil, "dpop 0 r0", "halt")
	assert.ErrorIs(err, device.ErrDeviceInvalid)
}

func TestCpuLoadTooLarge(t *testing.T) {
	assert := assert.New(t)

	_, err := NewCpu(make([]Instruction, MEMORY_SIZE+1), nil)
	assert.ErrorIs(err, ErrObjectTooLarge)

	cpu, err := NewCpu(make([]Instruction, MEMORY_SIZE), nil)
	assert.NoError(err)
	assert.NotNil(cpu)
}

func TestCpuString(t *testing.T) {
	assert := assert.New(t)

	cpu, err := NewCpu(nil, nil)
	assert.NoError(err)
	text := cpu.String()
	assert.Contains(text, "pc: 0x0000")
	assert.Contains(text, "r15: 0xFFFF")
	assert.Contains(text, "dir: forward")
}

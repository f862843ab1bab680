// Package cpu implements the reversible CPU and assembler for the rel system.
//
// The CPU has sixteen 16-bit registers (r15 is the stack pointer by
// convention), separate 64K-word data and program memories, a branch
// register that sets the size of each program counter step, and a direction
// flag that runs the program forward or in reverse. Most of the instruction
// set is reversible: controlled-NOT, controlled add and subtract, the
// Toffoli (CCNOT) and Fredkin (CSWAP) gates, and an XOR immediate load.
//
// Each instruction is one 16-bit word. The assembler compiles line oriented
// mnemonic text into instructions, with labels, equates and compile-time
// $(...) expressions, and emits an object of big-endian words.
package cpu

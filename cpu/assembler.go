// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package cpu

import (
	"bufio"
	"io"
	"log"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Assembler is a single pass assembler for the reversible instruction set.
type Assembler struct {
	Verbose bool     // If set, verbosely logs the assembler actions.
	Opcode  []Opcode // List of generated opcodes.

	predefine map[string]string // Predefines
	Label     map[string]int    // Map of jump labels to program indexes.
	Equate    map[string]string // Map of equates.

	create func(path string) (io.WriteCloser, error) // Object file creation; os.Create if nil.
}

// Predefine defines a new equate or redefines an existing equate.
func (asm *Assembler) Predefine(equ string, value string) {
	if asm.predefine == nil {
		asm.predefine = map[string]string{equ: value}
	} else {
		asm.predefine[equ] = value
	}
}

// lineLexer splits a source line into words, $(...) expressions and a
// trailing comment.
var lineLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `[#;].*`},
	{Name: "Expression", Pattern: `\$\((?:[^()]|\([^()]*\))*\)`},
	{Name: "Word", Pattern: `[^\s#;]+`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var (
	tokenExpression = lineLexer.Symbols()["Expression"]
	tokenWord       = lineLexer.Symbols()["Word"]
)

var labelRegexp = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// tokenize returns the words of a line, with comments dropped.
func tokenize(line string) (words []string, err error) {
	lex, err := lineLexer.LexString("", line)
	if err != nil {
		return
	}

	tokens, err := lexer.ConsumeAll(lex)
	if err != nil {
		return
	}

	for _, token := range tokens {
		switch token.Type {
		case tokenWord, tokenExpression:
			words = append(words, token.Value)
		}
	}

	return
}

// parenEval does compile-time $(...) evaluations
func (asm *Assembler) parenEval(expr string) (value int64, err error) {
	thread := starlark.Thread{}
	opts := syntax.FileOptions{}
	pred := starlark.StringDict{}
	for key, str := range asm.Equate {
		v64, perr := strconv.ParseInt(str, 0, 64)
		if perr != nil {
			// Ignore non-integer equates. They may be registers.
			continue
		}
		pred[key] = starlark.MakeInt64(v64)
	}
	prog := "rc=" + expr + "\n"
	dict, err := starlark.ExecFileOptions(&opts, &thread, "expr", prog, pred)
	if err != nil {
		err = ErrParseExpression(expr)
		return
	}
	st_int, ok := dict["rc"].(starlark.Int)
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	value, ok = st_int.Int64()
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	return
}

// resolve substitutes equates and evaluates expressions in an operand word.
func (asm *Assembler) resolve(word string) (out string, err error) {
	out = word
	equate, ok := asm.Equate[out]
	if ok {
		out = equate
	}

	if strings.HasPrefix(out, "$(") && strings.HasSuffix(out, ")") {
		var value int64
		value, err = asm.parenEval(out[2 : len(out)-1])
		if err != nil {
			return
		}
		out = strconv.FormatInt(value, 10)
	}

	return
}

// parseRegister parses a r0..r15 register literal.
func parseRegister(word string) (reg uint16, err error) {
	if !strings.HasPrefix(word, "r") {
		err = ErrParseRegister(word)
		return
	}

	value, perr := strconv.ParseUint(word[1:], 10, 8)
	if perr != nil || value > uint64(ARG_REG.Max()) {
		err = ErrParseRegister(word)
		return
	}

	reg = uint16(value)
	return
}

// parseArg parses a single operand word.
func parseArg(kind ArgKind, word string) (value uint16, err error) {
	if kind == ARG_REG {
		return parseRegister(word)
	}

	v64, perr := strconv.ParseUint(word, 0, 64)
	if perr != nil {
		if numErr, ok := perr.(*strconv.NumError); ok && numErr.Err == strconv.ErrRange {
			err = ErrValueRange{Word: word, Kind: kind}
		} else {
			err = ErrParseNumber(word)
		}
		return
	}

	if v64 > uint64(kind.Max()) {
		err = ErrValueRange{Word: word, Kind: kind}
		return
	}

	value = uint16(v64)
	return
}

// Parse parses an input stream into a Program. Parsing stops at the first
// error, which is reported as an ErrSyntax with its 1-based line number.
func (asm *Assembler) Parse(input io.Reader) (prog *Program, err error) {
	scanner := bufio.NewScanner(input)

	asm.Label = make(map[string]int)
	asm.Opcode = asm.Opcode[:0]
	asm.Equate = map[string]string{}
	for attr, val := range asm.predefine {
		asm.Equate[attr] = val
	}

	var lineno int
	for scanner.Scan() {
		line := scanner.Text()
		lineno += 1

		if asm.Verbose {
			log.Printf("%v: %v\n", lineno, line)
		}

		err = asm.parseLine(line, lineno)
		if err != nil {
			err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
			return
		}
	}

	err = scanner.Err()
	if err != nil {
		err = &ErrSyntax{LineNo: lineno + 1, Err: err}
		return
	}

	// Final linking of jump labels.
	for n := range asm.Opcode {
		op := &asm.Opcode[n]

		if len(op.LinkLabel) == 0 {
			continue
		}
		label := op.LinkLabel
		ip, ok := asm.Label[label]
		if !ok {
			err = &ErrSyntax{LineNo: op.LineNo, Line: strings.Join(op.Words, " "), Err: ErrLabelMissing(label)}
			return
		}
		if ip > int(ARG_ADDRESS.Max()) {
			err = &ErrSyntax{LineNo: op.LineNo, Line: strings.Join(op.Words, " "),
				Err: ErrValueRange{Word: label, Kind: ARG_ADDRESS}}
			return
		}
		op.Instruction.Arg[0] = uint16(ip)
	}

	prog = &Program{
		Opcodes: slices.Clone(asm.Opcode),
	}

	return
}

// Defines returns the equates in effect after the last Parse.
func (asm *Assembler) Defines() map[string]string {
	return maps.Clone(asm.Equate)
}

// parseLine parses a single line of assembly text.
func (asm *Assembler) parseLine(line string, lineno int) (err error) {
	words, err := tokenize(line)
	if err != nil {
		return
	}

	if len(words) == 0 {
		return
	}

	// .equ CONST VALUE
	if words[0] == ".equ" {
		if len(words) != 3 || !labelRegexp.MatchString(words[1]) {
			err = ErrEquateSyntax
			return
		}
		_, ok := asm.Equate[words[1]]
		if ok {
			err = ErrEquateDuplicate
			return
		}
		var value string
		value, err = asm.resolve(words[2])
		if err != nil {
			return
		}
		asm.Equate[words[1]] = value
		return
	}

	for strings.HasSuffix(words[0], ":") {
		label := words[0][:len(words[0])-1]
		if !labelRegexp.MatchString(label) {
			err = ErrLabelSyntax
			return
		}
		_, ok := asm.Label[label]
		if ok {
			err = ErrLabelDuplicate
			return
		}
		asm.Label[label] = len(asm.Opcode)
		words = words[1:]
		if len(words) == 0 {
			return
		}
	}

	return asm.parseWords(words, lineno)
}

// parseWords evaluates the words of a single instruction.
func (asm *Assembler) parseWords(words []string, lineno int) (err error) {
	op, ok := LookupMnemonic(words[0])
	if !ok {
		err = ErrMnemonic(words[0])
		return
	}

	ins := Instruction{Op: op}
	var label string

	args := words[1:]
	kinds := op.Args()
	for n, kind := range kinds {
		if n >= len(args) {
			err = ErrOperandMissing(kind)
			return
		}

		var word string
		word, err = asm.resolve(args[n])
		if err != nil {
			return
		}

		if kind == ARG_ADDRESS && labelRegexp.MatchString(word) {
			label = word
			continue
		}

		ins.Arg[n], err = parseArg(kind, word)
		if err != nil {
			return
		}
	}

	if len(args) > len(kinds) {
		err = ErrExtraToken(args[len(kinds)])
		return
	}

	err = ins.Validate()
	if err != nil {
		return
	}

	if len(asm.Opcode) >= MEMORY_SIZE {
		err = ErrObjectTooLarge
		return
	}

	asm.Opcode = append(asm.Opcode, Opcode{
		LineNo:      lineno,
		Ip:          len(asm.Opcode),
		Words:       slices.Clone(words),
		Instruction: ins,
		LinkLabel:   label,
	})

	if asm.Verbose {
		log.Printf("%03x: %v", len(asm.Opcode)-1, ins)
	}

	return
}

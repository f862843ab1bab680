package cpu

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectPath(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("prog.o", ObjectPath("prog.rel"))
	assert.Equal("dir/prog.o", ObjectPath("dir/prog.asm"))
	assert.Equal("prog.o", ObjectPath("prog"))
}

func TestReadObject(t *testing.T) {
	assert := assert.New(t)

	code, err := ReadObject(bytes.NewReader([]byte{0x10, 0x05, 0xc0, 0x00, 0x00, 0x00}))
	assert.NoError(err)
	assert.Equal([]Instruction{
		MakeInstruction(OP_IMMEDIATE, 0, 5),
		Decode(0xc000),
		MakeInstruction(OP_HALT),
	}, code)
	assert.Equal(OP_INVALID, code[1].Op)

	code, err = ReadObject(bytes.NewReader(nil))
	assert.NoError(err)
	assert.Empty(code)

	_, err = ReadObject(bytes.NewReader([]byte{0x10, 0x05, 0x00}))
	assert.ErrorIs(err, ErrObjectTruncated)

	_, err = ReadObject(bytes.NewReader(make([]byte, (MEMORY_SIZE+1)*2)))
	assert.ErrorIs(err, ErrObjectTooLarge)

	code, err = ReadObject(bytes.NewReader(make([]byte, MEMORY_SIZE*2)))
	assert.NoError(err)
	assert.Len(code, MEMORY_SIZE)
}

func TestAssembleFile(t *testing.T) {
	assert := assert.New(t)

	dir := t.TempDir()
	src := filepath.Join(dir, "prog.rel")
	obj := ObjectPath(src)

	err := os.WriteFile(src, []byte("imm r0 1\nrotl r0\nhalt\n"), 0o644)
	assert.NoError(err)

	asm := &Assembler{}
	prog, err := asm.AssembleFile(src, obj)
	assert.NoError(err)
	assert.NotNil(prog)

	data, err := os.ReadFile(obj)
	assert.NoError(err)
	assert.Equal([]byte{0x10, 0x01, 0x00, 0x20, 0x00, 0x00}, data)

	code, err := ReadObjectFile(obj)
	assert.NoError(err)
	assert.Equal(prog.Code(), code)
}

func TestAssembleFileError(t *testing.T) {
	assert := assert.New(t)

	dir := t.TempDir()
	src := filepath.Join(dir, "bad.rel")
	obj := ObjectPath(src)

	err := os.WriteFile(src, []byte("imm r0 1\nimm r16 1\n"), 0o644)
	assert.NoError(err)

	asm := &Assembler{}
	prog, err := asm.AssembleFile(src, obj)
	assert.Nil(prog)
	assert.ErrorIs(err, ErrSyntaxInvalid)

	var syntax *ErrSyntax
	assert.ErrorAs(err, &syntax)
	assert.Equal(2, syntax.LineNo)

	_, err = os.Stat(obj)
	assert.True(os.IsNotExist(err))

	_, err = asm.AssembleFile(filepath.Join(dir, "missing.rel"), obj)
	assert.ErrorIs(err, os.ErrNotExist)

	_, err = ReadObjectFile(filepath.Join(dir, "missing.o"))
	assert.ErrorIs(err, os.ErrNotExist)
}

func TestAssembleFileSameObject(t *testing.T) {
	assert := assert.New(t)

	dir := t.TempDir()
	src := filepath.Join(dir, "prog.o")
	source := []byte("imm r0 5\nhalt\n")

	err := os.WriteFile(src, source, 0o644)
	assert.NoError(err)
	assert.Equal(src, ObjectPath(src))

	asm := &Assembler{}
	prog, err := asm.AssembleFile(src, ObjectPath(src))
	assert.Nil(prog)
	assert.ErrorIs(err, ErrObjectSource)

	// Same file, spelled differently.
	_, err = asm.AssembleFile(src, filepath.Join(dir, ".", "prog.o"))
	assert.ErrorIs(err, ErrObjectSource)

	link := filepath.Join(dir, "link.o")
	err = os.Link(src, link)
	assert.NoError(err)
	_, err = asm.AssembleFile(src, link)
	assert.ErrorIs(err, ErrObjectSource)

	data, err := os.ReadFile(src)
	assert.NoError(err)
	assert.Equal(source, data)
}

// failingObject writes through to a file until it is told to fail.
type failingObject struct {
	*os.File
	short bool
}

func (fo *failingObject) Write(data []byte) (n int, err error) {
	if fo.short {
		return fo.File.Write(data[:1])
	}
	return 0, os.ErrClosed
}

func TestAssembleFileWriteError(t *testing.T) {
	assert := assert.New(t)

	dir := t.TempDir()
	src := filepath.Join(dir, "prog.rel")
	obj := ObjectPath(src)

	err := os.WriteFile(src, []byte("imm r0 1\nrotl r0\nhalt\n"), 0o644)
	assert.NoError(err)

	table := [](struct {
		short bool
		err   error
	}){
		{false, os.ErrClosed},
		{true, io.ErrShortWrite},
	}

	for _, entry := range table {
		asm := &Assembler{}
		asm.create = func(path string) (io.WriteCloser, error) {
			file, err := os.Create(path)
			if err != nil {
				return nil, err
			}
			return &failingObject{File: file, short: entry.short}, nil
		}

		prog, err := asm.AssembleFile(src, obj)
		assert.Nil(prog)
		assert.ErrorIs(err, entry.err)

		_, err = os.Stat(obj)
		assert.True(os.IsNotExist(err))
	}
}

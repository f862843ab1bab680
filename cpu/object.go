// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package cpu

import (
	"bufio"
	"encoding/binary"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// OBJECT_EXT is the file extension of assembled objects.
const OBJECT_EXT = ".o"

// ObjectPath derives the object path from a source path by replacing its
// extension.
func ObjectPath(src string) string {
	return strings.TrimSuffix(src, filepath.Ext(src)) + OBJECT_EXT
}

// ReadObject reads and decodes an object stream.
func ReadObject(r io.Reader) (code []Instruction, err error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return
	}

	if len(data)%2 != 0 {
		err = ErrObjectTruncated
		return
	}

	if len(data)/2 > MEMORY_SIZE {
		err = ErrObjectTooLarge
		return
	}

	code = make([]Instruction, len(data)/2)
	for n := range code {
		code[n] = Decode(binary.BigEndian.Uint16(data[n*2:]))
	}

	return
}

// ReadObjectFile reads and decodes an object file.
func ReadObjectFile(path string) (code []Instruction, err error) {
	inf, err := os.Open(path)
	if err != nil {
		return
	}
	defer inf.Close()

	return ReadObject(inf)
}

// createObject creates the object file at path.
func (asm *Assembler) createObject(path string) (io.WriteCloser, error) {
	if asm.create != nil {
		return asm.create(path)
	}
	return os.Create(path)
}

// sameFile returns true if the open source file is also the object path.
func sameFile(inf *os.File, src string, obj string) bool {
	if filepath.Clean(src) == filepath.Clean(obj) {
		return true
	}

	ost, err := os.Stat(obj)
	if err != nil {
		return false
	}

	ist, err := inf.Stat()
	if err != nil {
		return false
	}

	return os.SameFile(ist, ost)
}

// AssembleFile assembles the source file at src into the object file at
// obj. On any error the partial object is removed.
func (asm *Assembler) AssembleFile(src string, obj string) (prog *Program, err error) {
	inf, err := os.Open(src)
	if err != nil {
		return
	}
	defer inf.Close()

	// Creating the object would truncate the source.
	if sameFile(inf, src, obj) {
		err = ErrObjectSource
		return
	}

	ouf, err := asm.createObject(obj)
	if err != nil {
		return
	}

	defer func() {
		cerr := ouf.Close()
		if err == nil {
			err = cerr
		}
		if err != nil {
			prog = nil
			rerr := os.Remove(obj)
			if rerr != nil {
				log.Printf("%v: could not delete incomplete file: %v", obj, rerr)
			}
		}
	}()

	prog, err = asm.Parse(inf)
	if err != nil {
		return
	}

	w := bufio.NewWriter(ouf)
	_, err = prog.WriteTo(w)
	if err != nil {
		return
	}

	err = w.Flush()

	return
}

// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/ezrec/rel/cpu"
	"github.com/ezrec/rel/device"
	"github.com/ezrec/rel/emulator"
)

const VERSION = "0.6.0"

const usage = `Usage:
    rel [--version] [--help]
    rel [--verbose] [--garbage-stack] [-o file.o] [-D NAME=VALUE]... <file>

`

func main() {
	var version bool
	var verbose bool
	var garbageStack bool
	var output string

	defines := map[string]string{}

	flag.BoolVar(&version, "V", false, "Print program version")
	flag.BoolVar(&version, "version", false, "Print program version")
	flag.BoolVar(&verbose, "v", false, "Log each step the VM takes")
	flag.BoolVar(&verbose, "verbose", false, "Log each step the VM takes")
	flag.BoolVar(&garbageStack, "garbage-stack", false, "Add garbage stack device to the device bus")
	flag.StringVar(&output, "o", "", "Object file (default: input with "+cpu.OBJECT_EXT+" extension)")
	flag.Func("D", "Predefine assembler equate NAME=VALUE", func(arg string) error {
		name, value, ok := strings.Cut(arg, "=")
		if !ok || len(name) == 0 {
			return fmt.Errorf("expected NAME=VALUE, found '%v'", arg)
		}
		defines[name] = value
		return nil
	})

	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}

	flag.Parse()

	if version {
		fmt.Printf("rel %v\n", VERSION)
		return
	}

	if flag.NArg() != 1 {
		fmt.Fprintf(flag.CommandLine.Output(), "Error: Missing input file.\n\n")
		flag.Usage()
		os.Exit(2)
	}

	src := flag.Arg(0)
	if len(output) == 0 {
		output = cpu.ObjectPath(src)
	}

	emu := emulator.NewEmulator()
	emu.Verbose = verbose

	if garbageStack {
		_, err := emu.Bus.Add(&device.Stack{})
		if err != nil {
			log.Fatalf("garbage-stack: %v", err)
		}
	}

	for name, value := range defines {
		emu.Predefine(name, value)
	}

	err := emu.Assemble(src, output)
	if err != nil {
		log.Fatalf("%v: %v", src, err)
	}

	err = emu.Load(output)
	if err != nil {
		log.Fatalf("%v: %v", output, err)
	}

	err = emu.Run()

	derr := emu.Bus.DebugDump(os.Stdout)
	if derr != nil {
		log.Printf("device dump: %v", derr)
	}

	if err != nil {
		log.Fatalf("%v: %v", src, err)
	}
}

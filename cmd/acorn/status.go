package main

import (
	"flag"
	"fmt"

	"github.com/gentam/acorn"
)

func statusCommand(cfg *acorn.Config, args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	fs.Parse(args)

	d := openDevice(cfg)
	defer d.Close()

	st, err := d.Sequence.Status()
	if err != nil {
		d.Close()
		fatalf("%v", err)
	}
	fmt.Printf("Bridge:    %s\n", d.Bridge)
	fmt.Printf("GPIO:      %04b\n", st.GPIO)
	fmt.Printf("PROGRAMN:  %t\n", st.ProgramN())
	fmt.Printf("DONE:      %t\n", st.Done())
}

package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"github.com/gentam/acorn"
)

func readCommand(cfg *acorn.Config, args []string) {
	fs := flag.NewFlagSet("read", flag.ExitOnError)
	var (
		nread      int
		addr       int
		idOnly     bool
		statusOnly bool
		outFile    string
	)
	fs.IntVar(&nread, "n", 256, "number of bytes to read")
	fs.IntVar(&addr, "a", 0, "start address")
	fs.BoolVar(&idOnly, "id", false, "just print flash ID")
	fs.BoolVar(&statusOnly, "s", false, "just print flash status register")
	fs.StringVar(&outFile, "o", "", "output file (default: hexdump)")
	fs.Parse(args)

	if nread <= 0 {
		fatalUsage("-n must be positive")
	}

	d := openDevice(cfg)
	defer d.Close()

	if err := readFlash(d.Sequence, addr, nread, idOnly, statusOnly, outFile); err != nil {
		d.Close()
		fatalf("%v", err)
	}
}

func readFlash(s *acorn.Sequence, addr, nread int, idOnly, statusOnly bool, outFile string) (err error) {
	if err := s.EnableProgramming(); err != nil {
		return err
	}
	defer func() {
		if dErr := s.DisableProgramming(); dErr != nil && err == nil {
			err = dErr
		}
	}()

	f := s.Flash()
	if err := f.PowerUp(); err != nil {
		return fmt.Errorf("flash power up failed: %w", err)
	}
	defer f.PowerDown()

	if statusOnly {
		sr, err := f.ReadStatusRegister()
		if err != nil {
			return fmt.Errorf("read flash status register failed: %w", err)
		}
		fmt.Println(sr)
		return nil
	}

	flashID, name, err := f.ReadID()
	if err != nil {
		return fmt.Errorf("read flash ID failed: %w", err)
	}
	if idOnly {
		fmt.Printf("%X\t%s\n", flashID, name)
		return nil
	}
	if name == "" {
		fmt.Fprintf(os.Stderr, "unknown flash ID (%X)\n", flashID)
	}

	data, err := f.Read(addr, nread)
	if err != nil {
		return fmt.Errorf("read flash failed: %w", err)
	}
	if outFile == "" {
		fmt.Println(hex.Dump(data))
		return nil
	}
	return os.WriteFile(outFile, data, 0644)
}

// sondbus-masterctl is an interactive bus-master REPL: a bufio.Scanner
// loop dispatching on command name, driving a host/master.Client.
package main

import (
	"bufio"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"sondbus/host/master"
	"sondbus/host/serial"
)

var (
	device = flag.String("device", "/dev/ttyUSB0", "Serial device path")
	baud   = flag.Int("baud", 1000000, "Baud rate")
)

func main() {
	flag.Parse()
	log.SetFlags(0)

	cfg := serial.DefaultConfig(*device)
	cfg.Baud = *baud
	port, err := serial.Open(cfg)
	if err != nil {
		log.Fatalf("failed to open %s: %v", *device, err)
	}
	defer port.Close()

	client := master.NewClient(port)
	fmt.Printf("sondbus-masterctl connected to %s at %d baud\n", *device, *baud)
	fmt.Println("Type 'help' for available commands, 'quit' to exit.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "quit", "exit", "q":
			fmt.Println("Goodbye!")
			return

		case "help", "?":
			printHelp()

		case "syn":
			if err := client.Syn(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				continue
			}
			fmt.Println("Synchronized.")

		case "bwr":
			if err := runBwr(client, args); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}

		case "pwr":
			if err := runPwr(client, args); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}

		case "lwr":
			if err := runLwr(client, args); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}

		case "prd":
			if err := runPrd(client, args); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}

		case "lrd":
			if err := runLrd(client, args); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}

		default:
			fmt.Printf("Unknown command: %s (type 'help' for available commands)\n", cmd)
		}
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println(`
Available commands:
  syn                              - (re)establish bus synchronization
  bwr <offset> <hex-data>          - broadcast write
  pwr <hex-addr6> <offset> <hex>   - physical write
  lwr <hex-addr2> <offset> <hex>   - logical write
  prd <hex-addr6> <offset> <size>  - physical read
  lrd <hex-addr2> <offset> <size>  - logical read
  help                             - show this help message
  quit/exit/q                      - exit the program
`)
}

func runBwr(c *master.Client, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: bwr <offset> <hex-data>")
	}
	offset, err := parseUint16(args[0])
	if err != nil {
		return err
	}
	data, err := hex.DecodeString(args[1])
	if err != nil {
		return fmt.Errorf("bad hex data: %w", err)
	}
	if err := c.Bwr(offset, data); err != nil {
		return err
	}
	fmt.Println("Write accepted.")
	return nil
}

func runPwr(c *master.Client, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: pwr <hex-addr6> <offset> <hex-data>")
	}
	addr, err := parseAddr6(args[0])
	if err != nil {
		return err
	}
	offset, err := parseUint16(args[1])
	if err != nil {
		return err
	}
	data, err := hex.DecodeString(args[2])
	if err != nil {
		return fmt.Errorf("bad hex data: %w", err)
	}
	if err := c.Pwr(addr, offset, data); err != nil {
		return err
	}
	fmt.Println("Write accepted.")
	return nil
}

func runLwr(c *master.Client, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: lwr <hex-addr2> <offset> <hex-data>")
	}
	addr, err := parseAddr2(args[0])
	if err != nil {
		return err
	}
	offset, err := parseUint16(args[1])
	if err != nil {
		return err
	}
	data, err := hex.DecodeString(args[2])
	if err != nil {
		return fmt.Errorf("bad hex data: %w", err)
	}
	if err := c.Lwr(addr, offset, data); err != nil {
		return err
	}
	fmt.Println("Write accepted.")
	return nil
}

func runPrd(c *master.Client, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: prd <hex-addr6> <offset> <size>")
	}
	addr, err := parseAddr6(args[0])
	if err != nil {
		return err
	}
	offset, err := parseUint16(args[1])
	if err != nil {
		return err
	}
	size, err := parseUint16(args[2])
	if err != nil {
		return err
	}
	data, err := c.Prd(addr, offset, size)
	if err != nil {
		return err
	}
	fmt.Printf("%s\n", hex.EncodeToString(data))
	return nil
}

func runLrd(c *master.Client, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: lrd <hex-addr2> <offset> <size>")
	}
	addr, err := parseAddr2(args[0])
	if err != nil {
		return err
	}
	offset, err := parseUint16(args[1])
	if err != nil {
		return err
	}
	size, err := parseUint16(args[2])
	if err != nil {
		return err
	}
	data, err := c.Lrd(addr, offset, size)
	if err != nil {
		return err
	}
	fmt.Printf("%s\n", hex.EncodeToString(data))
	return nil
}

func parseUint16(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("bad number %q: %w", s, err)
	}
	return uint16(v), nil
}

func parseAddr6(s string) ([6]byte, error) {
	var addr [6]byte
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 6 {
		return addr, fmt.Errorf("expected 12 hex digits for a physical address, got %q", s)
	}
	copy(addr[:], b)
	return addr, nil
}

func parseAddr2(s string) ([2]byte, error) {
	var addr [2]byte
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 2 {
		return addr, fmt.Errorf("expected 4 hex digits for a logical address, got %q", s)
	}
	copy(addr[:], b)
	return addr, nil
}

package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"
)

// shell reads commands line by line until quit or end of input. A failing
// command is reported and the loop carries on.
func (a *app) shell() error {
	fmt.Fprintln(a.out, "ustar shell. Type 'help' for commands, 'quit' to leave.")
	for {
		fmt.Fprint(a.out, "> ")
		line, err := a.in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		fields := strings.Fields(line)
		if len(fields) > 0 {
			if fields[0] == "quit" || fields[0] == "exit" {
				fmt.Fprintln(a.out, "Exiting...")
				return nil
			}
			if fields[0] == "shell" {
				fmt.Fprintln(a.out, "Already in the shell.")
			} else if cmdErr := a.dispatch(fields[0], fields[1:]); cmdErr != nil && !errors.Is(cmdErr, pflag.ErrHelp) {
				fmt.Fprintln(a.out, "Error:", cmdErr)
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
	}
}

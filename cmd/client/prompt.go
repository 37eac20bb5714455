package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// promptCredentials asks for a student id and password on in.
// Arguments already given on the command line are not asked again.
func promptCredentials(in *bufio.Scanner, out io.Writer, args []string) (id, secret string, ok bool) {
	if len(args) > 0 {
		id = args[0]
	} else {
		fmt.Fprint(out, "Student ID: ")
		if !in.Scan() {
			return "", "", false
		}
		id = strings.TrimSpace(in.Text())
	}

	if len(args) > 1 {
		secret = args[1]
	} else {
		fmt.Fprint(out, "Password: ")
		if !in.Scan() {
			return "", "", false
		}
		secret = in.Text()
	}
	return id, secret, true
}

package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/ardnew/synccom/pkg"
	"github.com/ardnew/synccom/register"
)

// Output formats.
const (
	formatTable = "table"
	formatYAML  = "yaml"
)

// parseSwitch parses an on/off argument.
func parseSwitch(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "yes", "1":
		return true, nil
	case "off", "false", "no", "0":
		return false, nil
	}
	return false, fmt.Errorf("%w: %q is not on or off", pkg.ErrInvalidParameter, s)
}

// switchString renders a setting.
func switchString(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

// assignment is one name=value argument of "registers set".
type assignment struct {
	name  string
	addr  register.Address
	value uint32
}

// parseAssignment parses name=value where value is decimal, 0x hex, 0o
// octal or 0b binary.
func parseAssignment(s string) (assignment, error) {
	name, val, ok := strings.Cut(s, "=")
	if !ok {
		return assignment{}, fmt.Errorf("%w: %q is not name=value", pkg.ErrInvalidParameter, s)
	}
	name = strings.ToLower(strings.TrimSpace(name))

	addr, ok := register.Lookup(name)
	if !ok {
		return assignment{}, fmt.Errorf("%w: unknown register %q", pkg.ErrInvalidParameter, name)
	}
	if register.IsReadOnly(addr.BAR, addr.Offset) {
		return assignment{}, fmt.Errorf("%w: register %q is read-only", pkg.ErrNotSupported, name)
	}

	v, err := strconv.ParseUint(strings.TrimSpace(val), 0, 32)
	if err != nil {
		return assignment{}, fmt.Errorf("%w: %s: %v", pkg.ErrInvalidParameter, name, err)
	}
	return assignment{name: name, addr: addr, value: uint32(v)}, nil
}

// registerValue is one row of "registers get".
type registerValue struct {
	Name  string
	Value uint32
}

// writeRegisters prints values as a table or as a YAML mapping.
func writeRegisters(w io.Writer, format string, values []registerValue) error {
	switch format {
	case formatYAML:
		m := make(map[string]string, len(values))
		for _, v := range values {
			m[v.Name] = fmt.Sprintf("0x%08x", v.Value)
		}
		b, err := yaml.Marshal(m)
		if err != nil {
			return err
		}
		_, err = w.Write(b)
		return err
	case formatTable, "":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tVALUE")
		for _, v := range values {
			fmt.Fprintf(tw, "%s\t0x%08x\n", v.Name, v.Value)
		}
		return tw.Flush()
	}
	return fmt.Errorf("%w: output format %q", pkg.ErrInvalidParameter, format)
}

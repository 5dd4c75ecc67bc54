package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v2"
)

const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// table renders rows for the table output
type table interface {
	header() []string
	rows() [][]string
}

// printObject writes an object in the output format. Tables are used when the object supports them.
func printObject(w io.Writer, obj interface{}) error {
	switch dwsFlags.root.output {
	case outputJSON:
		b, err := json.MarshalIndent(obj, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	case outputYAML:
		b, err := yaml.Marshal(obj)
		if err != nil {
			return err
		}
		_, err = w.Write(b)
		return err
	case outputTable, "":
		t, ok := obj.(table)
		if !ok {
			b, err := yaml.Marshal(obj)
			if err != nil {
				return err
			}
			_, err = w.Write(b)
			return err
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, strings.Join(t.header(), "\t"))
		for _, row := range t.rows() {
			fmt.Fprintln(tw, strings.Join(row, "\t"))
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown output format %q", dwsFlags.root.output)
	}
}

var stdin io.Reader = os.Stdin

// confirm asks before a destructive operation, unless in batch mode
func confirm(w io.Writer, prompt string) bool {
	if dwsFlags.root.batch {
		return true
	}
	fmt.Fprintf(w, "%s [y/N] ", prompt)
	answer, _ := bufio.NewReader(stdin).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

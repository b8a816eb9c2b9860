// Command tinywasm loads a .wasm module, validates it, and optionally
// invokes one of its exported functions — a CLI wrapper around the
// validate/vm packages.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tinywasm/tinywasm/validate"
	"github.com/tinywasm/tinywasm/vm"
	"github.com/tinywasm/tinywasm/wasm"
)

var gasLimit uint64

func main() {
	root := &cobra.Command{
		Use:   "tinywasm",
		Short: "A Wasm MVP decoder, validator and interpreter",
	}
	root.PersistentFlags().Uint64Var(&gasLimit, "gas-limit", 0, "gas limit for invocation (0 = unmetered)")
	root.AddCommand(validateCmd(), runCmd())

	if err := root.Execute(); err != nil {
		color.Red("error: %v", err)
		os.Exit(1)
	}
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file.wasm>",
		Short: "Decode and type-check a module without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bytes, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			info, err := validate.Validate(bytes)
			if err != nil {
				return err
			}
			color.Green("valid module: %d functions, %d globals, %d memories, %d exports",
				len(info.Funcs), len(info.Globals), len(info.Mems), len(info.Exports))
			return nil
		},
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <file.wasm> <function> [args...]",
		Short: "Validate, instantiate, and invoke an exported function",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			bytes, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			info, err := validate.Validate(bytes)
			if err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}

			ri, err := vm.NewRuntimeInstance(info, vm.WithGasPolicy(&vm.SimpleGasPolicy{}), vm.WithGasLimit(gasLimit))
			if err != nil {
				return fmt.Errorf("instantiation failed: %w", err)
			}

			idx, ok := ri.GetFunctionByName(args[1])
			if !ok {
				return fmt.Errorf("no exported function %q", args[1])
			}

			vals, err := parseArgs(args[2:])
			if err != nil {
				return err
			}

			results, err := ri.Invoke(idx, vals...)
			if err != nil {
				return fmt.Errorf("trap: %w", err)
			}

			for _, r := range results {
				fmt.Println(formatValue(r))
			}
			if gasLimit > 0 {
				color.Yellow("gas used: %d / %d", ri.GasUsed(), gasLimit)
			}
			return nil
		},
	}
}

// parseArgs treats every CLI argument as an i32 literal: the MVP's other
// value types (i64/f32/f64) aren't reachable from a shell invocation without
// a richer --type flag, which is out of scope for this demo wrapper.
func parseArgs(raw []string) ([]validate.Value, error) {
	vals := make([]validate.Value, 0, len(raw))
	for _, a := range raw {
		n, err := strconv.ParseInt(a, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", a, err)
		}
		vals = append(vals, validate.Value{Type: wasm.I32, Bits: uint64(uint32(n))})
	}
	return vals, nil
}

func formatValue(v validate.Value) string {
	return fmt.Sprintf("%d", int32(uint32(v.Bits)))
}

package driveoptimizer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

var _ pflag.Value = (*boolChoiceValue)(nil)

// boolChoiceValue is a pflag.Value accepting yes/no style booleans so that
// --dry-run, --dry-run=no and a trailing "--dry-run no" all parse.
type boolChoiceValue struct {
	target *bool
}

func newBoolChoiceValue(target *bool) *boolChoiceValue {
	return &boolChoiceValue{target: target}
}

func (value *boolChoiceValue) String() string {
	if value == nil || value.target == nil {
		return ""
	}
	return strconv.FormatBool(*value.target)
}

func (value *boolChoiceValue) Set(input string) error {
	boolValue, ok := parseBoolChoice(input)
	if !ok {
		return fmt.Errorf("invalid boolean value %q", input)
	}
	*value.target = boolValue
	return nil
}

func (value *boolChoiceValue) Type() string {
	return "bool"
}

// addBoolChoiceFlag registers a boolean flag that may be given bare, inline
// (--name=no) or followed by a separate boolean word.
func addBoolChoiceFlag(flags *pflag.FlagSet, target *bool, name string, usage string) {
	flags.Var(newBoolChoiceValue(target), name, usage)
	if flag := flags.Lookup(name); flag != nil {
		flag.NoOptDefVal = "true"
		flag.DefValue = strconv.FormatBool(*target)
	}
}

func parseBoolChoice(input string) (bool, bool) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		trimmed = "true"
	}
	switch strings.ToLower(trimmed) {
	case "true", "t", "1", "yes", "y", "on":
		return true, true
	case "false", "f", "0", "no", "n", "off":
		return false, true
	default:
		return false, false
	}
}

// splitDryRunArgument peels a trailing boolean positional off args when
// --dry-run was given without an inline value.
func splitDryRunArgument(args []string, dryRunFlagChanged bool) ([]string, *bool) {
	trimmed := make([]string, len(args))
	copy(trimmed, args)
	if !dryRunFlagChanged || len(args) == 0 {
		return trimmed, nil
	}
	if boolValue, ok := parseBoolChoice(args[len(args)-1]); ok {
		return trimmed[:len(trimmed)-1], &boolValue
	}
	return trimmed, nil
}

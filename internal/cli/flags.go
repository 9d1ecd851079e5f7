package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

var (
	_ pflag.Value = (*OptionalDuration)(nil)
	_ pflag.Value = (*OptionalInt)(nil)
	_ pflag.Value = (*OptionalString)(nil)
	_ pflag.Value = (*OptionalBool)(nil)
	_ pflag.Value = (*OptionalLogLevel)(nil)
)

// OptionalDuration records a duration flag and whether it was set.
type OptionalDuration struct {
	value time.Duration
	set   bool
}

func (o *OptionalDuration) Set(s string) error {
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	o.value = v
	o.set = true
	return nil
}

func (o *OptionalDuration) String() string {
	if !o.set {
		return ""
	}
	return o.value.String()
}

func (o *OptionalDuration) Type() string {
	return "duration"
}

func (o *OptionalDuration) Value() (time.Duration, bool) {
	return o.value, o.set
}

// OptionalInt records an int flag and whether it was set.
type OptionalInt struct {
	value int
	set   bool
}

func (o *OptionalInt) Set(s string) error {
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	o.value = v
	o.set = true
	return nil
}

func (o *OptionalInt) String() string {
	if !o.set {
		return ""
	}
	return strconv.Itoa(o.value)
}

func (o *OptionalInt) Type() string {
	return "int"
}

func (o *OptionalInt) Value() (int, bool) {
	return o.value, o.set
}

// OptionalString records a string flag and whether it was set to a
// non-empty value. Setting "" clears it.
type OptionalString struct {
	value string
	set   bool
}

func (o *OptionalString) Set(s string) error {
	o.value = s
	o.set = s != ""
	return nil
}

func (o *OptionalString) String() string {
	if !o.set {
		return ""
	}
	return o.value
}

func (o *OptionalString) Type() string {
	return "string"
}

func (o *OptionalString) Value() (string, bool) {
	return o.value, o.set
}

// OptionalBool records a bool flag and whether it was set. Register it
// with NoOptDefVal "true" so a bare --flag works.
type OptionalBool struct {
	value bool
	set   bool
}

func (o *OptionalBool) Set(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	o.value = v
	o.set = true
	return nil
}

func (o *OptionalBool) String() string {
	if !o.set {
		return ""
	}
	if o.value {
		return "true"
	}
	return "false"
}

func (o *OptionalBool) Type() string {
	return "bool"
}

func (o *OptionalBool) IsBoolFlag() bool {
	return true
}

func (o *OptionalBool) Value() (bool, bool) {
	return o.value, o.set
}

// OptionalLogLevel records a log level flag and whether it was set.
type OptionalLogLevel struct {
	value string
	set   bool
}

func (o *OptionalLogLevel) Set(s string) error {
	level := strings.ToLower(strings.TrimSpace(s))
	switch level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %q (valid values: debug, info, warn, error)", s)
	}
	o.value = level
	o.set = true
	return nil
}

func (o *OptionalLogLevel) String() string {
	if !o.set {
		return ""
	}
	return o.value
}

func (o *OptionalLogLevel) Type() string {
	return "level"
}

func (o *OptionalLogLevel) Value() (string, bool) {
	return o.value, o.set
}

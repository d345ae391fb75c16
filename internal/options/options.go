/* Developed by Jeffrey D. Spiegler
 * Copyright (c) 2018 Scimitar Global Systems Corp. All rights reserved.
 */

// Package options implements the CLI option table: mapping argv tokens to
// parameter assignments or misc actions, including size- and
// time-suffix parsing.
package options

import (
	"fmt"
	"strconv"
	"strings"
)

// Side selects which half of a local/remote parameter pair an option
// assignment touches.
type Side int

const (
	Local Side = iota
	Remote
	Both
)

// Kind is the semantic type a field's option handler parses its argument
// as.
type Kind int

const (
	KLong Kind = iota
	KString
	KSize
	KTime
)

// FieldSpec names one registry-backed tunable and how its CLI argument is
// parsed. This is the single source of truth for parameter declaration
// order: the registry builder assigns each field's local/remote pair of
// indices by walking this slice, so index i of the registry is always
// derived from FieldOrder[i/2].
type FieldSpec struct {
	Name string
	Kind Kind
}

// FieldOrder is the dense, declaration-ordered list of per-test tunables.
var FieldOrder = []FieldSpec{
	{"access_recv", KLong},
	{"affinity", KLong},
	{"flip", KLong},
	{"msg_size", KSize},
	{"mtu_size", KSize},
	{"no_msgs", KLong},
	{"poll_mode", KLong},
	{"port", KLong},
	{"rd_atomic", KLong},
	{"sock_buf_size", KSize},
	{"time", KTime},
	{"timeout", KTime},
	{"id", KString},
}

// Setter is how the parser applies a resolved assignment; the session
// package's Context implements it against its concrete parameter
// registry.
type Setter interface {
	SetU64(field string, side Side, v uint64) error
	SetStr(field string, side Side, s string) error
	Use(field string, side Side)
}

// Result carries everything parsed from argv that is not itself a
// Setter-routed field assignment.
type Result struct {
	ServerHost string
	TestName   string
	ClientMode bool

	Precision     int
	UnifyUnits    bool
	UnifyNodes    bool
	VerboseConf   int
	VerboseStat   int
	VerboseTime   int
	VerboseUsed   int
	Debug         bool
	ListenPort    int
	ServerTimeout int
	Wait          int
	Version       bool
	Help          bool
	HelpCategory  string
	Progress      bool
}

// DefaultListenPort and DefaultServerTimeout are the out-of-the-box
// server bind port and accept-wait budget.
const (
	DefaultListenPort    = 19765
	DefaultServerTimeout = 5
)

// UserError marks a user-facing option error (bad option, missing
// argument, unknown test, bad numeric suffix): print and exit 1, no
// retry.
type UserError struct {
	msg string
}

func (e *UserError) Error() string { return e.msg }

func userErrorf(format string, args ...interface{}) error {
	return &UserError{msg: fmt.Sprintf(format, args...)}
}

// Parse walks argv, applying per-field assignments through s and
// collecting everything else into a Result.
func Parse(argv []string, s Setter) (*Result, error) {
	res := &Result{Precision: 3, ListenPort: DefaultListenPort, ServerTimeout: DefaultServerTimeout}

	fieldByLong := make(map[string]FieldSpec, len(FieldOrder))
	for _, f := range FieldOrder {
		fieldByLong[f.Name] = f
	}

	var positionals []string

	i := 0
	for i < len(argv) {
		arg := argv[i]
		i++

		if !strings.HasPrefix(arg, "-") {
			positionals = append(positionals, arg)
			continue
		}

		switch arg {
		case "-e":
			v, err := nextArg(argv, &i, "-e")
			if err != nil {
				return nil, err
			}
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				return nil, userErrorf("invalid precision: %q", v)
			}
			res.Precision = n
			continue
		case "-u":
			res.UnifyUnits = true
			continue
		case "-U":
			res.UnifyNodes = true
			continue
		case "-D":
			res.Debug = true
			continue
		case "-H":
			v, err := nextArg(argv, &i, "-H")
			if err != nil {
				return nil, err
			}
			res.ServerHost = v
			res.ClientMode = true
			continue
		case "-lp":
			v, err := nextArg(argv, &i, "-lp")
			if err != nil {
				return nil, err
			}
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				return nil, userErrorf("invalid listen port: %q", v)
			}
			res.ListenPort = n
			continue
		case "-st":
			v, err := nextArg(argv, &i, "-st")
			if err != nil {
				return nil, err
			}
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return nil, userErrorf("invalid server timeout: %q", v)
			}
			res.ServerTimeout = n
			continue
		case "-W":
			v, err := nextArg(argv, &i, "-W")
			if err != nil {
				return nil, err
			}
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return nil, userErrorf("invalid wait budget: %q", v)
			}
			res.Wait = n
			res.ClientMode = true
			continue
		case "-V":
			res.Version = true
			continue
		case "-h":
			res.Help = true
			if i < len(argv) && !strings.HasPrefix(argv[i], "-") {
				res.HelpCategory = argv[i]
				i++
			}
			continue
		case "-vv":
			res.VerboseConf, res.VerboseStat, res.VerboseTime, res.VerboseUsed = 2, 2, 2, 2
			continue
		case "--progress":
			res.Progress = true
			continue
		}

		if lvl, cat, ok := verboseFlag(arg); ok {
			applyVerbose(res, cat, lvl)
			continue
		}

		field, side, ok := matchFieldOption(arg, fieldByLong)
		if !ok {
			return nil, userErrorf("unknown option: %s", arg)
		}
		v, err := nextArg(argv, &i, arg)
		if err != nil {
			return nil, err
		}
		if err := applyField(s, field, side, v); err != nil {
			return nil, err
		}
	}

	if len(positionals) > 0 {
		res.ServerHost = positionals[0]
	}
	if len(positionals) > 1 {
		res.TestName = positionals[1]
		res.ClientMode = true
	}
	if res.TestName == "" && res.ClientMode && !res.Version && !res.Help {
		return nil, userErrorf("client mode requires a test name")
	}

	return res, nil
}

func nextArg(argv []string, i *int, opt string) (string, error) {
	if *i >= len(argv) {
		return "", userErrorf("%s: missing argument", opt)
	}
	v := argv[*i]
	*i++
	return v, nil
}

// verboseFlag recognizes -v/-vc/-vs/-vt/-vu and their uppercase level-2
// siblings.
func verboseFlag(arg string) (level int, category byte, ok bool) {
	if arg == "-v" {
		return 1, 'c', true // bare -v means conf verbosity level 1
	}
	if len(arg) == 3 && arg[0] == '-' && arg[1] == 'v' {
		cat := arg[2]
		switch cat {
		case 'c', 's', 't', 'u':
			return 1, cat, true
		case 'C', 'S', 'T', 'U':
			return 2, cat - 'A' + 'a', true
		}
	}
	return 0, 0, false
}

func applyVerbose(res *Result, cat byte, lvl int) {
	switch cat {
	case 'c':
		res.VerboseConf = lvl
	case 's':
		res.VerboseStat = lvl
	case 't':
		res.VerboseTime = lvl
	case 'u':
		res.VerboseUsed = lvl
	}
}

// matchFieldOption recognizes --name (both sides), --loc_name (local
// only), --rem_name (remote only) for every registered field.
func matchFieldOption(arg string, fields map[string]FieldSpec) (FieldSpec, Side, bool) {
	trimmed := strings.TrimPrefix(arg, "--")
	if trimmed == arg {
		return FieldSpec{}, 0, false
	}
	if strings.HasPrefix(trimmed, "loc_") {
		name := strings.TrimPrefix(trimmed, "loc_")
		if f, ok := fields[name]; ok {
			return f, Local, true
		}
		return FieldSpec{}, 0, false
	}
	if strings.HasPrefix(trimmed, "rem_") {
		name := strings.TrimPrefix(trimmed, "rem_")
		if f, ok := fields[name]; ok {
			return f, Remote, true
		}
		return FieldSpec{}, 0, false
	}
	if f, ok := fields[trimmed]; ok {
		return f, Both, true
	}
	return FieldSpec{}, 0, false
}

func applyField(s Setter, field FieldSpec, side Side, raw string) error {
	switch field.Kind {
	case KString:
		return applySides(side, func(sd Side) error { return s.SetStr(field.Name, sd, raw) })
	case KSize:
		v, err := ParseSize(raw)
		if err != nil {
			return userErrorf("%s: %v", field.Name, err)
		}
		return applySides(side, func(sd Side) error { return s.SetU64(field.Name, sd, v) })
	case KTime:
		v, err := ParseTime(raw)
		if err != nil {
			return userErrorf("%s: %v", field.Name, err)
		}
		return applySides(side, func(sd Side) error { return s.SetU64(field.Name, sd, v) })
	default: // KLong
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return userErrorf("%s: invalid integer %q", field.Name, raw)
		}
		return applySides(side, func(sd Side) error { return s.SetU64(field.Name, sd, v) })
	}
}

func applySides(side Side, f func(Side) error) error {
	if side == Both {
		if err := f(Local); err != nil {
			return err
		}
		return f(Remote)
	}
	return f(side)
}

// ParseSize parses a non-negative decimal size with an optional suffix:
// "" x1, k/kb x1e3, m/mb x1e6, g/gb x1e9 (decimal); K/kib x2^10,
// M/mib x2^20, G/gib x2^30 (binary). The single-letter form is
// case-sensitive; the two/three-letter form is case-insensitive.
func ParseSize(raw string) (uint64, error) {
	numPart, suffix, err := splitNumericSuffix(raw)
	if err != nil {
		return 0, err
	}
	val, err := strconv.ParseFloat(numPart, 64)
	if err != nil || val < 0 {
		return 0, fmt.Errorf("invalid size %q", raw)
	}
	mult, err := sizeMultiplier(suffix)
	if err != nil {
		return 0, err
	}
	return uint64(val * mult), nil
}

func sizeMultiplier(suffix string) (float64, error) {
	switch suffix {
	case "":
		return 1, nil
	case "k":
		return 1e3, nil
	case "m":
		return 1e6, nil
	case "g":
		return 1e9, nil
	case "K":
		return 1 << 10, nil
	case "M":
		return 1 << 20, nil
	case "G":
		return 1 << 30, nil
	}
	switch strings.ToLower(suffix) {
	case "kb":
		return 1e3, nil
	case "mb":
		return 1e6, nil
	case "gb":
		return 1e9, nil
	case "kib":
		return 1 << 10, nil
	case "mib":
		return 1 << 20, nil
	case "gib":
		return 1 << 30, nil
	}
	return 0, fmt.Errorf("invalid size suffix %q", suffix)
}

// ParseTime parses a non-negative decimal duration in seconds with an
// optional suffix: "" or s/S seconds, m/M x60, h/H x3600, d/D x86400.
func ParseTime(raw string) (uint64, error) {
	numPart, suffix, err := splitNumericSuffix(raw)
	if err != nil {
		return 0, err
	}
	val, err := strconv.ParseFloat(numPart, 64)
	if err != nil || val < 0 {
		return 0, fmt.Errorf("invalid time %q", raw)
	}
	mult, err := timeMultiplier(suffix)
	if err != nil {
		return 0, err
	}
	return uint64(val * mult), nil
}

func timeMultiplier(suffix string) (float64, error) {
	switch suffix {
	case "", "s", "S":
		return 1, nil
	case "m", "M":
		return 60, nil
	case "h", "H":
		return 3600, nil
	case "d", "D":
		return 86400, nil
	}
	return 0, fmt.Errorf("invalid time suffix %q", suffix)
}

// splitNumericSuffix splits raw into its leading decimal (digits and at
// most one '.') and a trailing suffix, tolerating whitespace between
// them.
func splitNumericSuffix(raw string) (numPart, suffix string, err error) {
	s := strings.TrimSpace(raw)
	i := 0
	for i < len(s) && (s[i] == '.' || (s[i] >= '0' && s[i] <= '9')) {
		i++
	}
	numPart = s[:i]
	suffix = strings.TrimSpace(s[i:])
	if numPart == "" {
		return "", "", fmt.Errorf("no numeric value in %q", raw)
	}
	return numPart, suffix, nil
}

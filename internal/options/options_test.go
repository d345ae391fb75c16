package options

import "testing"

func TestParseSizeDecimalSuffixes(t *testing.T) {
	cases := map[string]uint64{
		"1k":  1000,
		"1m":  1000000,
		"1g":  1000000000,
		"1kb": 1000,
		"1Kb": 1000,
	}
	for raw, want := range cases {
		got, err := ParseSize(raw)
		if err != nil {
			t.Fatalf("ParseSize(%q): %v", raw, err)
		}
		if got != want {
			t.Fatalf("ParseSize(%q) = %d, want %d", raw, got, want)
		}
	}
}

func TestParseSizeBinarySuffixes(t *testing.T) {
	cases := map[string]uint64{
		"1K":      1 << 10,
		"1M":      1 << 20,
		"1G":      1 << 30,
		"1.5 KiB": 1536,
		"1kib":    1 << 10,
	}
	for raw, want := range cases {
		got, err := ParseSize(raw)
		if err != nil {
			t.Fatalf("ParseSize(%q): %v", raw, err)
		}
		if got != want {
			t.Fatalf("ParseSize(%q) = %d, want %d", raw, got, want)
		}
	}
}

func TestParseSizeRejectsGarbageSuffix(t *testing.T) {
	if _, err := ParseSize("1xyz"); err == nil {
		t.Fatalf("expected error for invalid suffix")
	}
}

func TestParseTimeSuffixes(t *testing.T) {
	cases := map[string]uint64{
		"5":   5,
		"5s":  5,
		"2m":  120,
		"1h":  3600,
		"1d":  86400,
		"1H":  3600,
	}
	for raw, want := range cases {
		got, err := ParseTime(raw)
		if err != nil {
			t.Fatalf("ParseTime(%q): %v", raw, err)
		}
		if got != want {
			t.Fatalf("ParseTime(%q) = %d, want %d", raw, got, want)
		}
	}
}

type fakeSetter struct {
	u64 map[string]uint64
	str map[string]string
	use map[string]bool
}

func newFakeSetter() *fakeSetter {
	return &fakeSetter{u64: map[string]uint64{}, str: map[string]string{}, use: map[string]bool{}}
}

func key(field string, side Side) string {
	switch side {
	case Local:
		return "loc_" + field
	case Remote:
		return "rem_" + field
	default:
		return field
	}
}

func (f *fakeSetter) SetU64(field string, side Side, v uint64) error {
	f.u64[key(field, side)] = v
	return nil
}

func (f *fakeSetter) SetStr(field string, side Side, s string) error {
	f.str[key(field, side)] = s
	return nil
}

func (f *fakeSetter) Use(field string, side Side) {
	f.use[key(field, side)] = true
}

func TestParseBothSidesAssignment(t *testing.T) {
	s := newFakeSetter()
	res, err := Parse([]string{"--msg_size", "64K", "host1", "tcp_bw"}, s)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if s.u64["loc_msg_size"] != 64<<10 || s.u64["rem_msg_size"] != 64<<10 {
		t.Fatalf("expected both sides set to 64KiB, got %+v", s.u64)
	}
	if res.ServerHost != "host1" || res.TestName != "tcp_bw" || !res.ClientMode {
		t.Fatalf("unexpected positionals parse: %+v", res)
	}
}

func TestParseLocAndRemPrefixedAssignment(t *testing.T) {
	s := newFakeSetter()
	_, err := Parse([]string{"--loc_time", "2m", "--rem_time", "30", "h", "udp_lat"}, s)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if s.u64["loc_time"] != 120 {
		t.Fatalf("loc_time = %d, want 120", s.u64["loc_time"])
	}
	if s.u64["rem_time"] != 30 {
		t.Fatalf("rem_time = %d, want 30", s.u64["rem_time"])
	}
}

func TestParseMiscFlags(t *testing.T) {
	s := newFakeSetter()
	res, err := Parse([]string{"-u", "-U", "-e", "5", "-vc", "host1", "tcp_bw"}, s)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !res.UnifyUnits || !res.UnifyNodes || res.Precision != 5 || res.VerboseConf != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestParseServerModeHasNoTestName(t *testing.T) {
	s := newFakeSetter()
	res, err := Parse(nil, s)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if res.ClientMode {
		t.Fatalf("expected server mode with no args")
	}
}

func TestParseUnknownOptionIsUserError(t *testing.T) {
	s := newFakeSetter()
	_, err := Parse([]string{"--no-such-option"}, s)
	if err == nil {
		t.Fatalf("expected error")
	}
	if _, ok := err.(*UserError); !ok {
		t.Fatalf("expected *UserError, got %T", err)
	}
}

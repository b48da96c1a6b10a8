package tile

import (
	"errors"
	"strings"
	"testing"
)

func validConfig() Config {
	return Config{
		CellsPerBlock: 32, ThreadsPerCell: 1,
		T1Row: 6, T1Col: 3, T2Row: 3, T2Col: 6,
	}
}

func TestConfigValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		field  string
		mutate func(*Config)
	}{
		{"cells_per_block", func(c *Config) { c.CellsPerBlock = 0 }},
		{"threads_per_cell", func(c *Config) { c.ThreadsPerCell = -1 }},
		{"t1_row", func(c *Config) { c.T1Row = 0 }},
		{"t1_col", func(c *Config) { c.T1Col = 0 }},
		{"t2_row", func(c *Config) { c.T2Row = 0 }},
		{"t2_col", func(c *Config) { c.T2Col = 0 }},
	}
	for _, c := range cases {
		cfg := validConfig()
		c.mutate(&cfg)
		err := cfg.Validate()
		if err == nil {
			t.Errorf("%s: zero value accepted", c.field)
			continue
		}
		var ce *ConfigurationError
		if !errors.As(err, &ce) {
			t.Errorf("%s: error type %T", c.field, err)
			continue
		}
		if ce.Field != c.field {
			t.Errorf("error names field %q, want %q", ce.Field, c.field)
		}
	}
}

func TestConfigString(t *testing.T) {
	s := validConfig().String()
	for _, want := range []string{"cells=32", "threads=1", "t1=6x3", "t2=3x6"} {
		if !strings.Contains(s, want) {
			t.Errorf("String() = %q, missing %q", s, want)
		}
	}
}

package config

import (
	"testing"
	"time"

	kit "flowkeeper/internal/platform/testkit"
)

func TestPrefixAndKey(t *testing.T) {
	c := New().Prefix("FLOWMAINT_").Prefix("X_")
	if got := c.Key("A"); got != "FLOWMAINT_X_A" {
		t.Fatalf("Key = %q", got)
	}
}

func TestMust_PanicsWhenMissing(t *testing.T) {
	t.Setenv("CFGT_MISSING", "")
	c := New().Prefix("CFGT_")
	kit.MustPanic(t, func() { _ = c.MustString("MISSING") })
	kit.MustPanic(t, func() { _ = c.MustInt("MISSING") })
	kit.MustPanic(t, func() { _ = c.MustDuration("MISSING") })

	t.Setenv("CFGT_BAD", "abc")
	kit.MustPanic(t, func() { _ = c.MustInt("BAD") })
	kit.MustPanic(t, func() { _ = c.MustDuration("BAD") })
}

func TestMust_Values(t *testing.T) {
	t.Setenv("CFGT_S", " v ")
	t.Setenv("CFGT_I", "7")
	t.Setenv("CFGT_D", "2s")
	c := New().Prefix("CFGT_")
	if c.MustString("S") != "v" || c.MustInt("I") != 7 || c.MustDuration("D") != 2*time.Second {
		t.Fatal("unexpected Must* values")
	}
}

func TestMay_FallBackOnInvalid(t *testing.T) {
	t.Setenv("CFGT_I", "x")
	t.Setenv("CFGT_B", "maybe")
	t.Setenv("CFGT_D", "soon")
	c := New().Prefix("CFGT_")

	if c.MayInt("I", 5) != 5 {
		t.Fatal("MayInt should fall back")
	}
	if !c.MayBool("B", true) {
		t.Fatal("MayBool should fall back")
	}
	if c.MayDuration("D", time.Minute) != time.Minute {
		t.Fatal("MayDuration should fall back")
	}
	if c.MayString("UNSET", "def") != "def" {
		t.Fatal("MayString should fall back")
	}
}

func TestMayEnum(t *testing.T) {
	c := New().Prefix("CFGT_")
	t.Setenv("CFGT_MODE", "Hourly")
	if got := c.MayEnum("MODE", "daily", "daily", "hourly"); got != "hourly" {
		t.Fatalf("MayEnum = %q", got)
	}
	t.Setenv("CFGT_MODE", "")
	if got := c.MayEnum("MODE", "daily", "daily", "hourly"); got != "daily" {
		t.Fatalf("MayEnum default = %q", got)
	}
	t.Setenv("CFGT_MODE", "weekly")
	kit.MustPanic(t, func() { _ = c.MayEnum("MODE", "daily", "daily", "hourly") })
}

func TestMayLocation(t *testing.T) {
	c := New().Prefix("CFGT_")
	t.Setenv("CFGT_TZ", "UTC")
	if got := c.MayLocation("TZ", time.Local); got != time.UTC {
		t.Fatalf("MayLocation = %v", got)
	}
	t.Setenv("CFGT_TZ", "Mars/Olympus")
	if got := c.MayLocation("TZ", time.Local); got != time.Local {
		t.Fatalf("unknown zone should fall back, got %v", got)
	}
}

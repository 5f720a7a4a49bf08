package config

import "testing"

func TestLoadDefaultOverride(t *testing.T) {
	p, err := Load([]byte(`channels = 8
slc_bypass = false
write_buffer_management = "mod"
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Channels != 8 {
		t.Fatalf("Channels = %d, want 8", p.Channels)
	}
	if p.SLCBypass {
		t.Fatal("SLCBypass should be false after override")
	}
	if p.PageSize != LoadDefault().PageSize {
		t.Fatalf("unspecified field PageSize should retain default, got %d", p.PageSize)
	}
}

func TestLoadRejectsBadEnum(t *testing.T) {
	if _, err := Load([]byte(`write_buffer_management = "bogus"`)); err == nil {
		t.Fatal("expected error for unknown write_buffer_management")
	}
}

func TestMarshalDefaultRoundTrips(t *testing.T) {
	b, err := MarshalDefault()
	if err != nil {
		t.Fatalf("MarshalDefault: %v", err)
	}
	p, err := Load(b)
	if err != nil {
		t.Fatalf("Load(MarshalDefault()): %v", err)
	}
	if p.Channels != LoadDefault().Channels {
		t.Fatalf("round trip changed Channels: %d", p.Channels)
	}
}

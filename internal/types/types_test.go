package types

import "testing"

func TestDriverTypeName(t *testing.T) {
	tests := []struct {
		driver DriverType
		want   string
	}{
		{DriverAddress, "address_driver"},
		{DriverNFT, "nft_driver"},
		{DriverUnknown, ""},
		{DriverType(99), ""},
	}

	for _, tt := range tests {
		if got := tt.driver.Name(); got != tt.want {
			t.Errorf("DriverType(%d).Name() = %q, want %q", tt.driver, got, tt.want)
		}
	}
}

func TestValidateAddress(t *testing.T) {
	valid := []string{
		"0x1",
		"0xab",
		"0x" + "f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0",
		"0xABCDEF",
	}
	for _, addr := range valid {
		if err := ValidateAddress(addr); err != nil {
			t.Errorf("ValidateAddress(%q) = %v, want nil", addr, err)
		}
	}

	invalid := []string{
		"",
		"0x",
		"1234",
		"0xzz",
		"0x" + "f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0" + "00",
	}
	for _, addr := range invalid {
		if err := ValidateAddress(addr); err == nil {
			t.Errorf("ValidateAddress(%q) = nil, want error", addr)
		}
	}
}

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0x1", "0x0000000000000000000000000000000000000000000000000000000000000001"},
		{"0xAB", "0x00000000000000000000000000000000000000000000000000000000000000ab"},
		{
			"0xf0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0",
			"0xf0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0f0",
		},
	}

	for _, tt := range tests {
		if got := NormalizeAddress(tt.in); got != tt.want {
			t.Errorf("NormalizeAddress(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeAddressIdempotent(t *testing.T) {
	addr := NormalizeAddress("0xDeAdBeEf")
	if NormalizeAddress(addr) != addr {
		t.Errorf("NormalizeAddress is not idempotent for %q", addr)
	}
}

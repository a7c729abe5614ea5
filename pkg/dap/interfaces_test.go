package dap

import (
	"context"
	"os"
	"testing"
)

func TestInterfaceLabel(t *testing.T) {
	tests := []struct {
		info InterfaceInfo
		want string
	}{
		{InterfaceInfo{Kind: InterfaceKindSim, Description: "Simulator (no hardware)"}, "Simulator (no hardware)"},
		{InterfaceInfo{Kind: InterfaceKindCMSISDAP, VendorID: 0x0D28, ProductID: 0x0204}, "cmsis-dap (0D28:0204)"},
		{InterfaceInfo{VendorID: 0x1234, ProductID: 0x5678}, "Interface 1234:5678"},
	}

	for _, tt := range tests {
		if got := tt.info.Label(); got != tt.want {
			t.Errorf("Label() = %q, want %q", got, tt.want)
		}
	}
}

func TestLookupKnownProbe(t *testing.T) {
	known, ok := lookupKnownProbe(VendorIDRaspberryPi, ProductIDCMSISDAP)
	if !ok || known.Description == "" {
		t.Fatalf("Raspberry Pi probe not known")
	}
	if _, ok := lookupKnownProbe(0xFFFF, 0xFFFF); ok {
		t.Fatal("unknown VID:PID matched")
	}
}

// Integration test - needs libusb and access to the USB bus
func TestDiscoverInterfacesIncludesSimulator(t *testing.T) {
	if os.Getenv("FMC_USB_TESTS") == "" {
		t.Skip("set FMC_USB_TESTS=1 to enumerate USB devices")
	}

	infos, err := DiscoverInterfaces(context.Background())
	if err != nil {
		t.Fatalf("DiscoverInterfaces() error = %v", err)
	}
	if len(infos) == 0 || infos[len(infos)-1].Kind != InterfaceKindSim {
		t.Fatalf("simulator entry missing: %+v", infos)
	}
	for _, info := range infos {
		t.Logf("  %s", info.Label())
	}
}

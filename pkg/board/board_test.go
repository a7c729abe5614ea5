package board

import (
	"errors"
	"strings"
	"testing"

	"github.com/OpenTraceLab/OpenTraceFMC/pkg/dts"
	"github.com/OpenTraceLab/OpenTraceFMC/pkg/fmc"
)

const h7Board = `
/dts-v1/;
#include <dt-bindings/memory/stm32-sdram.h>

/ {
	#address-cells = <1>;
	#size-cells = <1>;

	soc {
		#address-cells = <1>;
		#size-cells = <1>;

		syscfg: syscon@58000400 {
			compatible = "st,stm32-syscfg", "syscon";
			reg = <0x58000400 0x400>;
		};

		fmc: memory-controller@52004000 {
			compatible = "st,stm32h7-fmc";
			reg = <0x52004000 0x1000>;
			#address-cells = <1>;
			#size-cells = <0>;
			st,syscfg = <&syscfg>;
			st,mem_remap = <4>;
			st,swp_fmc = <1>;

			bank@0 {
				reg = <0>;
				st,norsram-control = /bits/ 8 <NORSRAM_BANK_1
							NORSRAM_DATA_ADDR_MUX_DIS
							NORSRAM_TYPE_NOR
							MWIDTH_16
							NORSRAM_WAIT_SIGNAL_DIS
							NORSRAM_WAIT_SIGNAL_POLARITY_LOW
							NORSRAM_WAIT_SIGNAL_TIMING_BEFORE_WS
							NORSRAM_WRAP_MODE_DIS
							NORSRAM_WRITE_OP_EN
							NORSRAM_EXTENDED_MODE_DIS
							NORSRAM_ASYNCHRONOUS_WAIT_DIS
							NORSRAM_BURST_ACCESS_MODE_DIS
							NORSRAM_WRITE_BURST_DIS
							NORSRAM_PAGE_SIZE_NONE>;
				st,norsram-timing = /bits/ 8 <2 0 5 1 2 2 NORSRAM_ACCESS_MODE_A>;
			};

			bank@1 {
				reg = <1>;
				st,sdram-control = /bits/ 8 <NO_COL_8 NO_ROW_12 MWIDTH_16 BANKS_4
							CAS_3 SDCLK_2 RD_BURST_DIS RD_PIPE_DL_1>;
				st,sdram-timing = /bits/ 8 <TMRD_2 TXSR_7 TRAS_4 TRC_6
							TRP_2 TWR_2 TRCD_2>;
				st,sdram-refcount = <1292>;
			};

			bank@3 {
				reg = <3>;
			};
		};
	};
};
`

func loadString(t *testing.T, src string) (*Board, error) {
	t.Helper()

	parser, err := dts.NewParser(dts.WithDefines(Bindings))
	if err != nil {
		t.Fatalf("Failed to create parser: %v", err)
	}
	tree, err := parser.ParseString(src)
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}
	return Load(tree)
}

func TestLoadH7Board(t *testing.T) {
	b, err := loadString(t, h7Board)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if b.Family != fmc.FamilyH7 {
		t.Errorf("Family = %v, want %v", b.Family, fmc.FamilyH7)
	}
	if b.Base != 0x52004000 {
		t.Errorf("Base = 0x%X", b.Base)
	}
	if b.Syscfg != 0x58000400 {
		t.Errorf("Syscfg = 0x%X", b.Syscfg)
	}
	if b.Remap.MemMode == nil || *b.Remap.MemMode != 4 {
		t.Errorf("MemMode = %v", b.Remap.MemMode)
	}
	if b.Remap.SwapFMC == nil || *b.Remap.SwapFMC != 1 {
		t.Errorf("SwapFMC = %v", b.Remap.SwapFMC)
	}

	if len(b.Config.Norsram) != 1 {
		t.Fatalf("NOR/SRAM banks = %d, want 1", len(b.Config.Norsram))
	}
	wantNor := fmc.NorsramControl{
		Bank:           0,
		MemoryType:     fmc.MemoryNOR,
		DataWidth:      fmc.BusWidth16,
		WriteOperation: true,
	}
	if got := *b.Config.Norsram[0].Control; got != wantNor {
		t.Errorf("NOR control = %+v, want %+v", got, wantNor)
	}
	wantNorTiming := fmc.NorsramTiming{
		AddrSetup:     2,
		DataSetup:     5,
		BusTurnaround: 1,
		ClkDiv:        2,
		DataLatency:   2,
		AccessMode:    fmc.AccessModeA,
	}
	if got := *b.Config.Norsram[0].Timing; got != wantNorTiming {
		t.Errorf("NOR timing = %+v, want %+v", got, wantNorTiming)
	}

	if len(b.Config.Sdram) != 1 {
		t.Fatalf("SDRAM banks = %d, want 1 (bank@3 is ignored)", len(b.Config.Sdram))
	}
	sd := b.Config.Sdram[0]
	if sd.Slot != fmc.SdramSlot1 {
		t.Errorf("Slot = %v", sd.Slot)
	}
	if sd.RefreshCount != 1292 {
		t.Errorf("RefreshCount = %d", sd.RefreshCount)
	}
	wantControl := fmc.SdramControl{
		Columns:       fmc.Columns8,
		Rows:          fmc.Rows12,
		MemoryWidth:   fmc.BusWidth16,
		InternalBanks: fmc.InternalBanks4,
		CASLatency:    3,
		SDClock:       fmc.SDClockDiv2,
		ReadPipeDelay: 1,
	}
	if *sd.Control != wantControl {
		t.Errorf("SDRAM control = %+v, want %+v", *sd.Control, wantControl)
	}
	wantTiming := fmc.SdramTiming{
		LoadModeToActive: 1,
		ExitSelfRefresh:  6,
		SelfRefreshTime:  3,
		RowCycle:         5,
		WriteRecovery:    1,
		RowPrecharge:     1,
		RowToColumn:      1,
	}
	if *sd.Timing != wantTiming {
		t.Errorf("SDRAM timing = %+v, want %+v", *sd.Timing, wantTiming)
	}
}

// sdramBoard wraps bank nodes into a minimal F4 board.
func sdramBoard(banks string) string {
	return `
/ {
	#address-cells = <1>;
	#size-cells = <1>;
	fmc: memory-controller@a0000000 {
		compatible = "st,stm32f4-fmc";
		reg = <0xa0000000 0x1000>;
		st,mem_remap = <4>;
` + banks + `
	};
};
`
}

const goodSdram = `
		st,sdram-control = /bits/ 8 <NO_COL_8 NO_ROW_12 MWIDTH_16 BANKS_4 CAS_3 SDCLK_2 RD_BURST_DIS RD_PIPE_DL_1>;
		st,sdram-timing = [01 06 03 05 01 01 01];
`

func TestLoadSdramDefaults(t *testing.T) {
	b, err := loadString(t, sdramBoard("bank@2 {"+goodSdram+"};"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if b.Family != fmc.FamilyF4 || b.Base != 0xA0000000 {
		t.Errorf("Family %v base 0x%X", b.Family, b.Base)
	}
	if len(b.Config.Sdram) != 1 || b.Config.Sdram[0].Slot != fmc.SdramSlot2 {
		t.Fatalf("Sdram = %+v", b.Config.Sdram)
	}
	if b.Config.Sdram[0].RefreshCount != fmc.DefaultRefreshCount {
		t.Errorf("RefreshCount = %d, want %d", b.Config.Sdram[0].RefreshCount, fmc.DefaultRefreshCount)
	}
	if b.Syscfg != 0 || !b.Remap.Empty() {
		t.Errorf("remap without st,syscfg: base 0x%X remap %+v", b.Syscfg, b.Remap)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name  string
		banks string
		want  error
	}{
		{"missing index", "bank {" + goodSdram + "};", ErrBankName},
		{"index too large", "bank@4 {" + goodSdram + "};", ErrBankName},
		{"hex index", "bank@0x1 {" + goodSdram + "};", ErrBankName},
		{"missing timing", "bank@1 { st,sdram-control = [00 01 01 01 03 02 00 01]; };", ErrMissingProperty},
		{"missing control", "bank@1 { st,sdram-timing = [01 06 03 05 01 01 01]; };", ErrMissingProperty},
		{"short control", "bank@1 { st,sdram-control = [00 01 01 01 03 02 00]; st,sdram-timing = [01 06 03 05 01 01 01]; };", ErrMissingProperty},
		{"missing norsram timing", "bank@0 { st,norsram-control = [00 00 02 01 00 00 00 00 01 00 00 00 00 00]; };", ErrMissingProperty},
		{"cell control", "bank@1 { st,sdram-control = <0 1 1 1 3 2 0 1>; st,sdram-timing = [01 06 03 05 01 01 01]; };", dts.ErrBadValue},
		{"flag out of range", "bank@1 { st,sdram-control = [00 01 01 01 03 02 02 01]; st,sdram-timing = [01 06 03 05 01 01 01]; };", ErrBadProperty},
		{"bad cas", "bank@1 { st,sdram-control = [00 01 01 01 04 02 00 01]; st,sdram-timing = [01 06 03 05 01 01 01]; };", fmc.ErrInvalidConfig},
		{"bad refcount", "bank@1 {" + goodSdram + " st,sdram-refcount = \"x\"; };", dts.ErrBadValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadString(t, sdramBoard(tt.banks))
			if !errors.Is(err, tt.want) {
				t.Errorf("Load error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoadControllerSelection(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want error
	}{
		{"none", `/ { uart@40011000 { compatible = "st,stm32-uart"; }; };`, ErrNoController},
		{"disabled", `/ { fmc@a0000000 { compatible = "st,stm32f7-fmc"; reg = <0xa0000000 0x1000>; status = "disabled"; }; };`, ErrNoController},
		{"two", `/ { #address-cells = <1>; #size-cells = <1>;
			a@a0000000 { compatible = "st,stm32f7-fmc"; reg = <0xa0000000 0x1000>; };
			b@a0001000 { compatible = "st,stm32f7-fmc"; reg = <0xa0001000 0x1000>; }; };`, ErrMultipleController},
		{"no reg", `/ { fmc { compatible = "st,stm32f7-fmc"; }; };`, nil},
		{"zero base", `/ { #address-cells = <1>; #size-cells = <1>; fmc@0 { compatible = "st,stm32f7-fmc"; reg = <0 0x1000>; }; };`, fmc.ErrInvalidBase},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadString(t, tt.src)
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("Load error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoadEmptyController(t *testing.T) {
	src := `/ { #address-cells = <1>; #size-cells = <1>;
		fmc@a0000000 { compatible = "vendor,other", "st,stm32f7-fmc"; reg = <0xa0000000 0x1000>; }; };`

	b, err := loadString(t, src)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if b.Family != fmc.FamilyF7 || !b.Config.Empty() {
		t.Errorf("Family %v config %+v", b.Family, b.Config)
	}
}

func TestBankErrorNamesNode(t *testing.T) {
	_, err := loadString(t, sdramBoard("bank@7 { };"))
	if err == nil || !strings.Contains(err.Error(), "/memory-controller@a0000000/bank@7") {
		t.Errorf("error %v should name the node path", err)
	}
}

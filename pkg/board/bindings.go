package board

// Bindings are the constants of dt-bindings/memory/stm32-sdram.h. Board files
// include that header; the parser elides #include, so the values are
// predefined instead.
var Bindings = map[string]uint32{
	"NORSRAM_BANK_1": 0x0,
	"NORSRAM_BANK_2": 0x1,
	"NORSRAM_BANK_3": 0x2,
	"NORSRAM_BANK_4": 0x3,

	"NORSRAM_DATA_ADDR_MUX_EN":  0x1,
	"NORSRAM_DATA_ADDR_MUX_DIS": 0x0,

	"NORSRAM_TYPE_SRAM":  0x0,
	"NORSRAM_TYPE_PSRAM": 0x1,
	"NORSRAM_TYPE_NOR":   0x2,

	"NORSRAM_WAIT_SIGNAL_DIS": 0x0,
	"NORSRAM_WAIT_SIGNAL_EN":  0x1,

	"NORSRAM_WAIT_SIGNAL_POLARITY_LOW":  0x0,
	"NORSRAM_WAIT_SIGNAL_POLARITY_HIGH": 0x1,

	"NORSRAM_WAIT_SIGNAL_TIMING_BEFORE_WS": 0x0,
	"NORSRAM_WAIT_SIGNAL_TIMING_DURING_WS": 0x1,

	"NORSRAM_WRAP_MODE_EN":  0x1,
	"NORSRAM_WRAP_MODE_DIS": 0x0,

	"NORSRAM_WRITE_OP_DIS": 0x0,
	"NORSRAM_WRITE_OP_EN":  0x1,

	"NORSRAM_EXTENDED_MODE_EN":  0x1,
	"NORSRAM_EXTENDED_MODE_DIS": 0x0,

	"NORSRAM_ASYNCHRONOUS_WAIT_EN":  0x1,
	"NORSRAM_ASYNCHRONOUS_WAIT_DIS": 0x0,

	"NORSRAM_BURST_ACCESS_MODE_EN":  0x1,
	"NORSRAM_BURST_ACCESS_MODE_DIS": 0x0,

	"NORSRAM_WRITE_BURST_EN":  0x1,
	"NORSRAM_WRITE_BURST_DIS": 0x0,

	"NORSRAM_PAGE_SIZE_NONE": 0x0,
	"NORSRAM_PAGE_SIZE_128":  0x1,
	"NORSRAM_PAGE_SIZE_256":  0x2,
	"NORSRAM_PAGE_SIZE_512":  0x3,
	"NORSRAM_PAGE_SIZE_1024": 0x4,

	"NORSRAM_ACCESS_MODE_A": 0x0,
	"NORSRAM_ACCESS_MODE_B": 0x1,
	"NORSRAM_ACCESS_MODE_C": 0x2,
	"NORSRAM_ACCESS_MODE_D": 0x3,

	"NO_COL_8":  0x0,
	"NO_COL_9":  0x1,
	"NO_COL_10": 0x2,
	"NO_COL_11": 0x3,

	"NO_ROW_11": 0x0,
	"NO_ROW_12": 0x1,
	"NO_ROW_13": 0x2,

	"MWIDTH_8":  0x0,
	"MWIDTH_16": 0x1,
	"MWIDTH_32": 0x2,

	"BANKS_2": 0x0,
	"BANKS_4": 0x1,

	"CAS_1": 0x1,
	"CAS_2": 0x2,
	"CAS_3": 0x3,

	"SDCLK_DIS": 0x0,
	"SDCLK_2":   0x2,
	"SDCLK_3":   0x3,

	"RD_BURST_EN":  0x1,
	"RD_BURST_DIS": 0x0,

	"RD_PIPE_DL_0": 0x0,
	"RD_PIPE_DL_1": 0x1,
	"RD_PIPE_DL_2": 0x2,

	// Timings are stored as cycles minus one.
	"TMRD_1": 1 - 1,
	"TMRD_2": 2 - 1,
	"TMRD_3": 3 - 1,
	"TXSR_1": 1 - 1,
	"TXSR_6": 6 - 1,
	"TXSR_7": 7 - 1,
	"TXSR_8": 8 - 1,
	"TRAS_1": 1 - 1,
	"TRAS_4": 4 - 1,
	"TRAS_6": 6 - 1,
	"TRC_6":  6 - 1,
	"TWR_1":  1 - 1,
	"TWR_2":  2 - 1,
	"TRP_2":  2 - 1,
	"TRCD_1": 1 - 1,
	"TRCD_2": 2 - 1,
}

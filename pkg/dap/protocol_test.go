package dap

import (
	"bytes"
	"errors"
	"testing"
)

func TestProtocolEncodeInfo(t *testing.T) {
	proto := NewProtocol(64)

	tests := []struct {
		name   string
		infoID byte
		want   []byte
	}{
		{"Vendor ID", InfoVendorID, []byte{0x00, 0x01}},
		{"Product ID", InfoProductID, []byte{0x00, 0x02}},
		{"Serial Number", InfoSerialNum, []byte{0x00, 0x03}},
		{"Firmware Version", InfoFirmwareVer, []byte{0x00, 0x04}},
		{"Packet Size", InfoPacketSize, []byte{0x00, 0xFF}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := proto.EncodeInfo(tt.infoID)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("EncodeInfo() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProtocolDecodeInfo(t *testing.T) {
	proto := NewProtocol(64)

	tests := []struct {
		name    string
		resp    []byte
		want    string
		wantErr bool
	}{
		{
			name: "valid vendor",
			resp: []byte{0x00, 0x04, 'T', 'e', 's', 't'},
			want: "Test",
		},
		{
			name: "nul terminated",
			resp: []byte{0x00, 0x05, 'T', 'e', 's', 't', 0x00},
			want: "Test",
		},
		{
			name: "empty",
			resp: []byte{0x00, 0x00},
			want: "",
		},
		{
			name:    "too short",
			resp:    []byte{0x00},
			wantErr: true,
		},
		{
			name:    "wrong command",
			resp:    []byte{0x01, 0x04, 'T', 'e', 's', 't'},
			wantErr: true,
		},
		{
			name:    "incomplete string",
			resp:    []byte{0x00, 0x10, 'T', 'e', 's', 't'},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := proto.DecodeInfo(tt.resp)
			if (err != nil) != tt.wantErr {
				t.Errorf("DecodeInfo() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("DecodeInfo() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProtocolDecodeInfoUint16(t *testing.T) {
	proto := NewProtocol(64)

	got, err := proto.DecodeInfoUint16([]byte{0x00, 0x02, 0x00, 0x02})
	if err != nil {
		t.Fatalf("DecodeInfoUint16() error = %v", err)
	}
	if got != 512 {
		t.Errorf("DecodeInfoUint16() = %d, want 512", got)
	}
	if _, err := proto.DecodeInfoUint16([]byte{0x00, 0x01, 0x40}); err == nil {
		t.Error("DecodeInfoUint16() accepted a 1-byte value")
	}
}

func TestProtocolConnect(t *testing.T) {
	proto := NewProtocol(64)

	if got := proto.EncodeConnect(PortSWD); !bytes.Equal(got, []byte{0x02, 0x01}) {
		t.Errorf("EncodeConnect(SWD) = %v", got)
	}

	tests := []struct {
		name    string
		resp    []byte
		want    byte
		wantErr bool
	}{
		{name: "SWD connected", resp: []byte{0x02, 0x01}, want: PortSWD},
		{name: "JTAG connected", resp: []byte{0x02, 0x02}, want: PortJTAG},
		{name: "connection failed", resp: []byte{0x02, 0x00}, wantErr: true},
		{name: "wrong command", resp: []byte{0x03, 0x01}, wantErr: true},
		{name: "too short", resp: []byte{0x02}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := proto.DecodeConnect(tt.resp)
			if (err != nil) != tt.wantErr {
				t.Errorf("DecodeConnect() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("DecodeConnect() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProtocolStatusResponses(t *testing.T) {
	proto := NewProtocol(64)

	tests := []struct {
		name   string
		decode func([]byte) error
		cmd    byte
	}{
		{"disconnect", proto.DecodeDisconnect, CmdDisconnect},
		{"set clock", proto.DecodeSetClock, CmdSWJClock},
		{"swj sequence", proto.DecodeSWJSequence, CmdSWJSequence},
		{"transfer configure", proto.DecodeTransferConfigure, CmdTransferConfigure},
		{"reset target", proto.DecodeResetTarget, CmdResetTarget},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.decode([]byte{tt.cmd, StatusOK}); err != nil {
				t.Errorf("OK response: %v", err)
			}
			if err := tt.decode([]byte{tt.cmd, StatusError}); err == nil {
				t.Error("error status accepted")
			}
			if err := tt.decode([]byte{tt.cmd ^ 0x40, StatusOK}); !errors.Is(err, ErrResponse) {
				t.Errorf("wrong command ID: err = %v, want ErrResponse", err)
			}
		})
	}
}

func TestProtocolEncodeSetClock(t *testing.T) {
	proto := NewProtocol(64)
	got := proto.EncodeSetClock(1_000_000)
	want := []byte{0x11, 0x40, 0x42, 0x0F, 0x00}
	if !bytes.Equal(got, want) {
		t.Errorf("EncodeSetClock() = %v, want %v", got, want)
	}
}

func TestProtocolEncodeSWJSequence(t *testing.T) {
	proto := NewProtocol(64)

	tests := []struct {
		name    string
		bits    int
		data    []byte
		want    []byte
		wantErr bool
	}{
		{"switch", 16, []byte{0x9E, 0xE7}, []byte{0x12, 0x10, 0x9E, 0xE7}, false},
		{"line reset", 51, bytes.Repeat([]byte{0xFF}, 7), append([]byte{0x12, 51}, bytes.Repeat([]byte{0xFF}, 7)...), false},
		{"256 bits", 256, make([]byte, 32), append([]byte{0x12, 0x00}, make([]byte, 32)...), false},
		{"trailing data ignored", 8, []byte{0x00, 0xAA}, []byte{0x12, 0x08, 0x00}, false},
		{"zero bits", 0, nil, nil, true},
		{"too many bits", 257, make([]byte, 33), nil, true},
		{"short data", 16, []byte{0x9E}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := proto.EncodeSWJSequence(tt.bits, tt.data)
			if (err != nil) != tt.wantErr {
				t.Fatalf("EncodeSWJSequence() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !bytes.Equal(got, tt.want) {
				t.Errorf("EncodeSWJSequence() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProtocolEncodeTransferConfigure(t *testing.T) {
	proto := NewProtocol(64)
	got := proto.EncodeTransferConfigure(0, 64, 0)
	want := []byte{0x04, 0x00, 0x40, 0x00, 0x00, 0x00}
	if !bytes.Equal(got, want) {
		t.Errorf("EncodeTransferConfigure() = %v, want %v", got, want)
	}
}

func TestTransferRequests(t *testing.T) {
	tests := []struct {
		name string
		req  TransferRequest
		want byte
		read bool
		ap   bool
	}{
		{"DP read IDR", DPRead(DPIDRReg), 0x02, true, false},
		{"DP write SELECT", DPWrite(DPSelect, 0), 0x08, false, false},
		{"DP read RDBUFF", DPRead(DPRdBuff), 0x0E, true, false},
		{"AP write TAR", APWrite(APTAR, 0xA0000000), 0x05, false, true},
		{"AP read DRW", APRead(APDRW), 0x0F, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.req.Request != tt.want {
				t.Errorf("request byte = 0x%02X, want 0x%02X", tt.req.Request, tt.want)
			}
			if tt.req.IsRead() != tt.read || tt.req.IsAP() != tt.ap {
				t.Errorf("IsRead=%v IsAP=%v, want %v %v", tt.req.IsRead(), tt.req.IsAP(), tt.read, tt.ap)
			}
		})
	}
}

func TestProtocolEncodeTransfer(t *testing.T) {
	proto := NewProtocol(64)

	got, err := proto.EncodeTransfer([]TransferRequest{
		APWrite(APTAR, 0xA0000140),
		APRead(APDRW),
	})
	if err != nil {
		t.Fatalf("EncodeTransfer() error = %v", err)
	}
	want := []byte{0x05, 0x00, 0x02, 0x05, 0x40, 0x01, 0x00, 0xA0, 0x0F}
	if !bytes.Equal(got, want) {
		t.Errorf("EncodeTransfer() = % X, want % X", got, want)
	}

	if _, err := proto.EncodeTransfer(nil); err == nil {
		t.Error("EncodeTransfer(nil) succeeded")
	}

	many := make([]TransferRequest, 20)
	for i := range many {
		many[i] = APWrite(APDRW, uint32(i))
	}
	if _, err := proto.EncodeTransfer(many); err == nil {
		t.Error("EncodeTransfer() accepted a command larger than the packet")
	}
}

func TestProtocolDecodeTransfer(t *testing.T) {
	proto := NewProtocol(64)
	reqs := []TransferRequest{APWrite(APTAR, 0x1000), APRead(APDRW)}

	tests := []struct {
		name    string
		resp    []byte
		want    uint32
		wantErr error
	}{
		{"ok", []byte{0x05, 0x02, 0x01, 0x78, 0x56, 0x34, 0x12}, 0x12345678, nil},
		{"wait", []byte{0x05, 0x01, 0x02}, 0, ErrWait},
		{"fault", []byte{0x05, 0x01, 0x04}, 0, ErrFault},
		{"no ack", []byte{0x05, 0x00, 0x07}, 0, ErrNoAck},
		{"protocol error", []byte{0x05, 0x00, 0x08}, 0, ErrResponse},
		{"short count", []byte{0x05, 0x01, 0x01}, 0, ErrResponse},
		{"missing data", []byte{0x05, 0x02, 0x01, 0x78}, 0, ErrResponse},
		{"wrong command", []byte{0x04, 0x02, 0x01}, 0, ErrResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := proto.DecodeTransfer(tt.resp, reqs)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("DecodeTransfer() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeTransfer() error = %v", err)
			}
			if len(data) != 1 || data[0] != tt.want {
				t.Errorf("DecodeTransfer() = %X, want [%X]", data, tt.want)
			}
		})
	}
}

package json

import (
	"strings"
	"testing"
)

type rdpArgs struct {
	Host       string `json:"host"`
	Username   string
	Port       Int
	Fullscreen Bool
}

func TestDecodeCaseInsensitive(t *testing.T) {
	result, err := Decode[rdpArgs]([]byte(`{"HOST":"srv","username":"admin","port":"3389","fullscreen":"yes","extra":1}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Host != "srv" {
		t.Errorf("expected host 'srv', got '%s'", result.Host)
	}
	if result.Username != "admin" {
		t.Errorf("expected username 'admin', got '%s'", result.Username)
	}
	if result.Port != 3389 {
		t.Errorf("expected port 3389, got %d", result.Port)
	}
	if !result.Fullscreen {
		t.Error("expected fullscreen to be true")
	}
}

func TestDecodeMissingPropertiesKeepDefaults(t *testing.T) {
	result, err := Decode[rdpArgs]([]byte(`{}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != (rdpArgs{}) {
		t.Errorf("expected zero value, got %+v", result)
	}
}

func TestDecodeFlexibleScalars(t *testing.T) {
	tests := []struct {
		input   string
		port    Int
		full    Bool
		wantErr bool
	}{
		{input: `{"port":22,"fullscreen":true}`, port: 22, full: true},
		{input: `{"port":"","fullscreen":"0"}`, port: 0, full: false},
		{input: `{"port":null,"fullscreen":null}`, port: 0, full: false},
		{input: `{"port":"abc"}`, wantErr: true},
		{input: `{"fullscreen":"maybe"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := Decode[rdpArgs]([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Decode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if result.Port != tt.port || result.Fullscreen != tt.full {
				t.Errorf("got port=%d full=%v, want port=%d full=%v", result.Port, result.Fullscreen, tt.port, tt.full)
			}
		})
	}
}

func TestDecodeInvalidJSON(t *testing.T) {
	err := DecodeInto([]byte(`{"host":`), &rdpArgs{})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "failed to unmarshal arguments") {
		t.Errorf("unexpected error text: %v", err)
	}
}

func TestEncode(t *testing.T) {
	data, err := Encode(rdpArgs{Host: "srv", Port: 22})
	if err != nil {
		t.Fatal(err)
	}
	back, err := Decode[rdpArgs](data)
	if err != nil {
		t.Fatal(err)
	}
	if back.Host != "srv" || back.Port != 22 {
		t.Errorf("unexpected value after encode/decode: %+v", back)
	}
}

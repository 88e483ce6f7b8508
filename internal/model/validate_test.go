package model

import (
	"errors"
	"testing"
)

type joinForm struct {
	PlayerName string `validate:"required"`
	RoomID     string `validate:"required,alphanum"`
}

func TestValidateReportsFirstField(t *testing.T) {
	err := Validate(joinForm{RoomID: "ABCD"})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if ve.Field != "player-name" {
		t.Fatalf("unexpected field %q", ve.Field)
	}
	if ve.Reason != "must not be empty" {
		t.Fatalf("unexpected reason %q", ve.Reason)
	}
	err = Validate(joinForm{PlayerName: "ann", RoomID: "AB-1"})
	if !errors.As(err, &ve) || ve.Field != "room-id" {
		t.Fatalf("expected room-id alphanum failure, got %v", err)
	}
	if err := Validate(joinForm{PlayerName: "ann", RoomID: "AB-1"}); !IsValidation(err) {
		t.Fatalf("expected alphanum failure, got %v", err)
	}
	if err := Validate(joinForm{PlayerName: "ann", RoomID: "AB1"}); err != nil {
		t.Fatalf("expected valid form, got %v", err)
	}
}

func TestValidateTargetRanges(t *testing.T) {
	cases := []struct {
		mode  Mode
		value int
		ok    bool
	}{
		{ModeTimer, 0, false},
		{ModeTimer, 1, true},
		{ModeTimer, 300, true},
		{ModeTimer, 301, false},
		{ModeWords, 500, true},
		{ModeWords, 501, false},
		{Mode("zen"), 10, false},
	}
	for _, tc := range cases {
		err := ValidateTarget(tc.mode, tc.value)
		if tc.ok && err != nil {
			t.Fatalf("%s %d: unexpected error %v", tc.mode, tc.value, err)
		}
		if !tc.ok && !IsValidation(err) {
			t.Fatalf("%s %d: expected validation error, got %v", tc.mode, tc.value, err)
		}
	}
}

func TestValidateConfig(t *testing.T) {
	cfg := Config{Mode: ModeTimer, Duration: 30, Words: 25, Supplier: "local"}
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
	cfg.Supplier = "carrier-pigeon"
	var ve *ValidationError
	if err := Validate(cfg); !errors.As(err, &ve) || ve.Field != "supplier" {
		t.Fatalf("expected supplier failure, got %v", err)
	}

	srv := ServerConfig{
		APIURL:    "http://localhost:8080/api",
		WSURL:     "ws://localhost:8080/ws",
		NATSURL:   "nats://127.0.0.1:4222",
		Transport: "websocket",
	}
	if err := Validate(srv); err != nil {
		t.Fatalf("expected valid server config, got %v", err)
	}
	srv.Transport = "smoke"
	if err := Validate(srv); !errors.As(err, &ve) || ve.Field != "transport" {
		t.Fatalf("expected transport failure, got %v", err)
	}
}
